package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/normalize"
	"github.com/sells-group/company-lookup/internal/reconcile"
)

// Pool abstracts pgxpool.Pool so the Postgres store can run against
// pgxmock in tests.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL UNIQUE,
	industry        TEXT NOT NULL DEFAULT '',
	employee_size   INTEGER NOT NULL DEFAULT 0,
	domain          TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS employees (
	id                   TEXT PRIMARY KEY,
	company_id           TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	full_name            TEXT NOT NULL,
	full_name_normalized TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT 'unknown',
	department           TEXT NOT NULL DEFAULT 'unknown',
	seniority            TEXT NOT NULL DEFAULT 'unknown',
	profile_url          TEXT NOT NULL DEFAULT 'unknown',
	email                TEXT NOT NULL DEFAULT 'unknown',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(company_id, full_name_normalized)
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
CREATE INDEX IF NOT EXISTS idx_companies_name_lower ON companies(lower(name));
CREATE INDEX IF NOT EXISTS idx_employees_company_id ON employees(company_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgCompanyCols = `id, name, name_normalized, industry, employee_size, domain, email, created_at, updated_at`

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE id = $1`, id)
	return scanCompanyPg(row, "postgres: get company")
}

func (s *PostgresStore) GetCompanyByKey(ctx context.Context, key string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE name_normalized = $1`, key)
	return scanCompanyPg(row, "postgres: get company by key")
}

func (s *PostgresStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE name = $1`, name)
	return scanCompanyPg(row, "postgres: get company by name")
}

func (s *PostgresStore) GetCompanyByNameFold(ctx context.Context, name string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE lower(name) = lower($1)`, name)
	return scanCompanyPg(row, "postgres: get company by name fold")
}

func (s *PostgresStore) ListCompanies(ctx context.Context, limit, offset int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgCompanyCols+` FROM companies ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Industry,
			&c.EmployeeSize, &c.Domain, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) ListEmployees(ctx context.Context, companyID string) ([]model.Employee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, full_name, title, department, seniority, profile_url, email, created_at
		 FROM employees WHERE company_id = $1 ORDER BY full_name`,
		companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list employees")
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.FullName, &e.Title,
			&e.Department, &e.Seniority, &e.ProfileURL, &e.Email, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan employee")
		}
		employees = append(employees, e)
	}
	return employees, eris.Wrap(rows.Err(), "postgres: list employees iterate")
}

// Upsert merges a parsed record inside a single transaction, mirroring the
// SQLite backend's target resolution and conflict degradation.
func (s *PostgresStore) Upsert(ctx context.Context, rec *model.ParsedRecord, query string) (*model.Company, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	company, err := upsertCompanyPgTx(ctx, tx, rec.Company, query)
	if err != nil {
		return nil, err
	}

	if err := upsertEmployeesPgTx(ctx, tx, company.ID, rec.Employees); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit upsert")
	}
	return company, nil
}

func upsertCompanyPgTx(ctx context.Context, tx pgx.Tx, parsed model.ParsedCompany, query string) (*model.Company, error) {
	existing, err := findCompanyPgTx(ctx, tx, parsed.Name, query)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		merged, changed := reconcile.MergeCompany(*existing, parsed, query)
		if changed {
			if err := updateCompanyPgTx(ctx, tx, merged); err != nil {
				return nil, err
			}
		}
		return &merged, nil
	}

	// ON CONFLICT DO NOTHING keeps the transaction usable when a concurrent
	// insert wins the race; a failed statement would abort the whole tx.
	created := reconcile.NewCompany(parsed, query)
	tag, err := tx.Exec(ctx,
		`INSERT INTO companies (id, name, name_normalized, industry, employee_size, domain, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (name_normalized) DO NOTHING`,
		created.ID, created.Name, created.NameNormalized, created.Industry,
		created.EmployeeSize, created.Domain, created.Email, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert company")
	}
	if tag.RowsAffected() > 0 {
		return &created, nil
	}

	row := tx.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE name_normalized = $1`,
		created.NameNormalized)
	existing, err = scanCompanyPg(row, "postgres: re-select after conflict")
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, eris.New("postgres: company vanished after unique conflict")
	}
	merged, changed := reconcile.MergeCompany(*existing, parsed, query)
	if changed {
		if err := updateCompanyPgTx(ctx, tx, merged); err != nil {
			return nil, err
		}
	}
	return &merged, nil
}

func upsertEmployeesPgTx(ctx context.Context, tx pgx.Tx, companyID string, parsed []model.ParsedEmployee) error {
	for _, pe := range reconcile.DedupeEmployees(parsed) {
		key := normalize.Key(pe.FullName)

		var existing model.Employee
		err := tx.QueryRow(ctx,
			`SELECT id, company_id, full_name, title, department, seniority, profile_url, email, created_at
			 FROM employees WHERE company_id = $1 AND full_name_normalized = $2`,
			companyID, key,
		).Scan(&existing.ID, &existing.CompanyID, &existing.FullName, &existing.Title,
			&existing.Department, &existing.Seniority, &existing.ProfileURL, &existing.Email, &existing.CreatedAt)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			emp := reconcile.NewEmployee(companyID, pe)
			if _, err := tx.Exec(ctx,
				`INSERT INTO employees (id, company_id, full_name, full_name_normalized, title, department, seniority, profile_url, email, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				emp.ID, emp.CompanyID, emp.FullName, key, emp.Title, emp.Department,
				emp.Seniority, emp.ProfileURL, emp.Email, emp.CreatedAt); err != nil {
				return eris.Wrapf(err, "postgres: insert employee %s", emp.FullName)
			}
		case err != nil:
			return eris.Wrap(err, "postgres: select employee")
		default:
			merged, changed := reconcile.FillEmployee(existing, pe)
			if !changed {
				continue
			}
			if _, err := tx.Exec(ctx,
				`UPDATE employees SET title = $1, department = $2, seniority = $3, profile_url = $4, email = $5 WHERE id = $6`,
				merged.Title, merged.Department, merged.Seniority, merged.ProfileURL, merged.Email, merged.ID); err != nil {
				return eris.Wrapf(err, "postgres: update employee %s", merged.ID)
			}
		}
	}
	return nil
}

func findCompanyPgTx(ctx context.Context, tx pgx.Tx, parsedName, query string) (*model.Company, error) {
	if key := normalize.Key(query); key != "" {
		row := tx.QueryRow(ctx,
			`SELECT `+pgCompanyCols+` FROM companies WHERE name_normalized = $1`, key)
		c, err := scanCompanyPg(row, "postgres: find by query key")
		if err != nil || c != nil {
			return c, err
		}
	}

	name := strings.TrimSpace(parsedName)
	if name == "" {
		return nil, nil
	}

	row := tx.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE name = $1`, name)
	c, err := scanCompanyPg(row, "postgres: find by parsed name")
	if err != nil || c != nil {
		return c, err
	}

	row = tx.QueryRow(ctx,
		`SELECT `+pgCompanyCols+` FROM companies WHERE lower(name) = lower($1)`, name)
	return scanCompanyPg(row, "postgres: find by parsed name fold")
}

func updateCompanyPgTx(ctx context.Context, tx pgx.Tx, c model.Company) error {
	_, err := tx.Exec(ctx,
		`UPDATE companies SET name_normalized = $1, industry = $2, employee_size = $3, domain = $4, email = $5, updated_at = $6 WHERE id = $7`,
		c.NameNormalized, c.Industry, c.EmployeeSize, c.Domain, c.Email, c.UpdatedAt, c.ID)
	return eris.Wrapf(err, "postgres: update company %s", c.ID)
}

func scanCompanyPg(row pgx.Row, wrap string) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Industry,
		&c.EmployeeSize, &c.Domain, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, wrap)
	}
	return &c, nil
}
