// Package resolver implements the lookup flow: resolve a query against the
// cache, decide whether the cached profile is sufficient, and fall through
// to enrichment and upsert when it is not.
package resolver

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-lookup/internal/enrich"
	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/normalize"
	"github.com/sells-group/company-lookup/internal/parser"
	"github.com/sells-group/company-lookup/internal/store"
)

// ErrEmptyQuery is returned for queries that are blank after trimming.
var ErrEmptyQuery = eris.New("resolver: empty query")

// Service resolves company lookups against the store, enriching on miss.
type Service struct {
	store  store.Store
	client enrich.Client
}

// New creates a lookup service.
func New(s store.Store, c enrich.Client) *Service {
	return &Service{store: s, client: c}
}

// Lookup resolves query to a company profile. hint is optional free text
// that disambiguates the query (a known city, domain, product) and is passed
// through to the enrichment provider verbatim. A cached profile that passes
// the sufficiency check is returned as-is; otherwise the query is enriched,
// parsed, and merged into the store. Enrichment failure degrades to the
// cached profile when one exists and to a failed result otherwise.
func (s *Service) Lookup(ctx context.Context, query, hint string) (*model.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	cached, err := s.resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	var cachedEmployees []model.Employee
	if cached != nil {
		cachedEmployees, err = s.store.ListEmployees(ctx, cached.ID)
		if err != nil {
			return nil, err
		}
		if !NeedsRefresh(cached, len(cachedEmployees)) {
			zap.L().Debug("cache hit", zap.String("query", query), zap.String("company_id", cached.ID))
			return &model.Result{Company: cached, Employees: cachedEmployees, Source: model.SourceCache}, nil
		}
	}

	raw, err := s.client.Research(ctx, enrich.Request{Query: query, Context: hint})
	if err != nil {
		if !errors.Is(err, enrich.ErrUnavailable) {
			return nil, err
		}
		if cached != nil {
			zap.L().Warn("enrichment unavailable, serving stale cache",
				zap.String("query", query), zap.Error(err))
			return &model.Result{
				Company:   cached,
				Employees: cachedEmployees,
				Source:    model.SourceCache,
				Reason:    "enrichment unavailable",
			}, nil
		}
		return &model.Result{Source: model.SourceFailed, Reason: err.Error()}, nil
	}

	rec := parser.Parse(raw, query)
	company, err := s.store.Upsert(ctx, rec, query)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: upsert")
	}

	employees, err := s.store.ListEmployees(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &model.Result{Company: company, Employees: employees, Source: model.SourceEnriched}, nil
}

// AddManual inserts or merges an operator-supplied entry without enrichment.
func (s *Service) AddManual(ctx context.Context, entry model.ManualEntry) (*model.Result, error) {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return nil, ErrEmptyQuery
	}

	rec := &model.ParsedRecord{Company: model.ParsedCompany{
		Name:     name,
		Industry: entry.Industry,
		Domain:   entry.Domain,
		Email:    entry.Email,
	}}
	if entry.EmployeeSize > 0 {
		rec.Company.EmployeeSize = strconv.Itoa(entry.EmployeeSize)
	}

	company, err := s.store.Upsert(ctx, rec, name)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: manual upsert")
	}

	employees, err := s.store.ListEmployees(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	return &model.Result{Company: company, Employees: employees, Source: model.SourceManual}, nil
}

// resolve tries the three match strategies in priority order: normalized
// key, exact name, case-insensitive name. A miss on all three returns
// (nil, nil).
func (s *Service) resolve(ctx context.Context, query string) (*model.Company, error) {
	if key := normalize.Key(query); key != "" {
		c, err := s.store.GetCompanyByKey(ctx, key)
		if err != nil || c != nil {
			return c, err
		}
	}

	c, err := s.store.GetCompanyByName(ctx, query)
	if err != nil || c != nil {
		return c, err
	}

	return s.store.GetCompanyByNameFold(ctx, query)
}

// NeedsRefresh reports whether a cached profile is too sparse to serve
// without re-enrichment: any core field still at its zero value, or no
// employees on record.
func NeedsRefresh(c *model.Company, employeeCount int) bool {
	if c == nil {
		return true
	}
	return c.Industry == "" || c.Domain == "" || c.EmployeeSize == 0 || employeeCount == 0
}
