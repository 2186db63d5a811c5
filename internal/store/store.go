package store

import (
	"context"

	"github.com/sells-group/company-lookup/internal/model"
)

// Store defines persistence for companies and their employees. Lookup
// methods return (nil, nil) on a miss so callers can distinguish absence
// from failure.
type Store interface {
	// Companies
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	GetCompanyByKey(ctx context.Context, key string) (*model.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*model.Company, error)
	GetCompanyByNameFold(ctx context.Context, name string) (*model.Company, error)
	ListCompanies(ctx context.Context, limit, offset int) ([]model.Company, error)

	// Employees
	ListEmployees(ctx context.Context, companyID string) ([]model.Employee, error)

	// Upsert merges a parsed record into the store as one atomic unit:
	// company created or updated, employees created or filled, all in a
	// single transaction. query is the caller's original lookup string.
	Upsert(ctx context.Context, rec *model.ParsedRecord, query string) (*model.Company, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
