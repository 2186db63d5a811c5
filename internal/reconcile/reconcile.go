// Package reconcile holds the merge policy applied when parsed enrichment
// data meets persisted records. The functions are pure; the store backends
// apply them inside their own transactions.
//
// Policy summary: company soft fields are overwrite-if-nonempty (the latest
// enrichment wins), employee fields are fill-only-if-unknown (the first
// confirmed value wins). The asymmetry is deliberate: company facts drift and
// should track the freshest pass, while employee facts are frequently noisy
// and an earlier, possibly hand-verified value must not be degraded.
package reconcile

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/normalize"
)

// MergeCompany applies parsed data to an existing company. Industry, domain,
// and email are overwritten when the parsed value is non-empty. Employee size
// is overwritten only when integer-parseable; anything else is dropped
// silently. The normalized key is refreshed from query (the alias the caller
// actually used) so repeated spellings converge on one record. Returns the
// updated copy and whether anything changed.
func MergeCompany(existing model.Company, parsed model.ParsedCompany, query string) (model.Company, bool) {
	out := existing
	if v := strings.TrimSpace(parsed.Industry); v != "" {
		out.Industry = v
	}
	if v := strings.TrimSpace(parsed.Domain); v != "" {
		out.Domain = v
	}
	if v := strings.TrimSpace(parsed.Email); v != "" {
		out.Email = v
	}
	if n, ok := ParseSize(parsed.EmployeeSize); ok {
		out.EmployeeSize = n
	}
	if key := preferredKey(query, parsed.Name); key != "" {
		out.NameNormalized = key
	}

	changed := out != existing
	if changed {
		out.UpdatedAt = time.Now().UTC()
	}
	return out, changed
}

// NewCompany builds a company row from parsed data. The display name falls
// back to the query text when the response carried none; the normalized key
// prefers the query, the name the human trusted.
func NewCompany(parsed model.ParsedCompany, query string) model.Company {
	name := strings.TrimSpace(parsed.Name)
	if name == "" {
		name = strings.TrimSpace(query)
	}
	now := time.Now().UTC()
	c := model.Company{
		ID:             uuid.New().String(),
		Name:           name,
		NameNormalized: preferredKey(query, name),
		Industry:       strings.TrimSpace(parsed.Industry),
		Domain:         strings.TrimSpace(parsed.Domain),
		Email:          strings.TrimSpace(parsed.Email),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if n, ok := ParseSize(parsed.EmployeeSize); ok {
		c.EmployeeSize = n
	}
	return c
}

// FillEmployee merges parsed data into an existing employee row. A field is
// written only when the parsed value is non-empty and the stored value still
// holds the unknown sentinel. Returns the updated copy and whether anything
// changed.
func FillEmployee(existing model.Employee, parsed model.ParsedEmployee) (model.Employee, bool) {
	out := existing
	fill(&out.Title, parsed.Title)
	fill(&out.Department, parsed.Department)
	fill(&out.Seniority, parsed.Seniority)
	fill(&out.ProfileURL, parsed.ProfileURL)
	fill(&out.Email, parsed.Email)
	return out, out != existing
}

// NewEmployee builds an employee row for a company. Fields the response did
// not supply are stored as the unknown sentinel so later fill-only merges
// have a stable value to compare against.
func NewEmployee(companyID string, parsed model.ParsedEmployee) model.Employee {
	return model.Employee{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		FullName:   strings.TrimSpace(parsed.FullName),
		Title:      orUnknown(parsed.Title),
		Department: orUnknown(parsed.Department),
		Seniority:  orUnknown(parsed.Seniority),
		ProfileURL: orUnknown(parsed.ProfileURL),
		Email:      orUnknown(parsed.Email),
		CreatedAt:  time.Now().UTC(),
	}
}

// DedupeEmployees drops entries with empty names and collapses entries whose
// normalized names repeat within the batch, keeping the first occurrence.
// Guards against a single response listing the same person twice.
func DedupeEmployees(in []model.ParsedEmployee) []model.ParsedEmployee {
	seen := make(map[string]bool, len(in))
	var out []model.ParsedEmployee
	for _, e := range in {
		key := normalize.Key(e.FullName)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// ParseSize coerces a textual employee size to a non-negative int. Reports
// false for empty, non-integer, or negative input.
func ParseSize(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// preferredKey derives the normalized key, preferring the caller's query
// over the parsed name.
func preferredKey(query, name string) string {
	if key := normalize.Key(query); key != "" {
		return key
	}
	return normalize.Key(name)
}

func fill(dst *string, v string) {
	v = strings.TrimSpace(v)
	if v != "" && *dst == model.Unknown {
		*dst = v
	}
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Unknown
	}
	return v
}
