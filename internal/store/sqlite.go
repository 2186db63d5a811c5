package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/normalize"
	"github.com/sells-group/company-lookup/internal/reconcile"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL UNIQUE,
	industry        TEXT NOT NULL DEFAULT '',
	employee_size   INTEGER NOT NULL DEFAULT 0,
	domain          TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(company_id, full_name_normalized)
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
CREATE INDEX IF NOT EXISTS idx_employees_company_id ON employees(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteCompanyCols = `id, name, name_normalized, industry, employee_size, domain, email, created_at, updated_at`

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE id = ?`, id)
	return scanCompany(row, "sqlite: get company")
}

func (s *SQLiteStore) GetCompanyByKey(ctx context.Context, key string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE name_normalized = ?`, key)
	return scanCompany(row, "sqlite: get company by key")
}

func (s *SQLiteStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE name = ?`, name)
	return scanCompany(row, "sqlite: get company by name")
}

func (s *SQLiteStore) GetCompanyByNameFold(ctx context.Context, name string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE lower(name) = lower(?)`, name)
	return scanCompany(row, "sqlite: get company by name fold")
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, limit, offset int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies ORDER BY name LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Industry,
			&c.EmployeeSize, &c.Domain, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) ListEmployees(ctx context.Context, companyID string) ([]model.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, full_name, title, department, seniority, profile_url, email, created_at
		 FROM employees WHERE company_id = ? ORDER BY full_name`,
		companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list employees")
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.FullName, &e.Title,
			&e.Department, &e.Seniority, &e.ProfileURL, &e.Email, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan employee")
		}
		employees = append(employees, e)
	}
	return employees, eris.Wrap(rows.Err(), "sqlite: list employees iterate")
}

// Upsert merges a parsed record inside a single transaction. Target
// resolution: normalized query key, then exact parsed name, then
// case-insensitive parsed name, then insert. A unique-key race on insert
// degrades to re-select and merge.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *model.ParsedRecord, query string) (*model.Company, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	company, err := s.upsertCompanyTx(ctx, tx, rec.Company, query)
	if err != nil {
		return nil, err
	}

	if err := s.upsertEmployeesTx(ctx, tx, company.ID, rec.Employees); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}
	return company, nil
}

func (s *SQLiteStore) upsertCompanyTx(ctx context.Context, tx *sql.Tx, parsed model.ParsedCompany, query string) (*model.Company, error) {
	existing, err := findCompanyTx(ctx, tx, parsed.Name, query)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		merged, changed := reconcile.MergeCompany(*existing, parsed, query)
		if changed {
			if err := updateCompanyTx(ctx, tx, merged); err != nil {
				return nil, err
			}
		}
		return &merged, nil
	}

	created := reconcile.NewCompany(parsed, query)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO companies (id, name, name_normalized, industry, employee_size, domain, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name, created.NameNormalized, created.Industry,
		created.EmployeeSize, created.Domain, created.Email, created.CreatedAt, created.UpdatedAt)
	if err == nil {
		return &created, nil
	}
	if !isSQLiteUniqueViolation(err) {
		return nil, eris.Wrap(err, "sqlite: insert company")
	}

	// Lost the first-insert race: another writer created the row for this
	// key. Re-select and merge into it instead.
	row := tx.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE name_normalized = ?`,
		created.NameNormalized)
	existing, err = scanCompany(row, "sqlite: re-select after conflict")
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, eris.New("sqlite: company vanished after unique conflict")
	}
	merged, changed := reconcile.MergeCompany(*existing, parsed, query)
	if changed {
		if err := updateCompanyTx(ctx, tx, merged); err != nil {
			return nil, err
		}
	}
	return &merged, nil
}

func (s *SQLiteStore) upsertEmployeesTx(ctx context.Context, tx *sql.Tx, companyID string, parsed []model.ParsedEmployee) error {
	for _, pe := range reconcile.DedupeEmployees(parsed) {
		key := normalize.Key(pe.FullName)

		var existing model.Employee
		err := tx.QueryRowContext(ctx,
			`SELECT id, company_id, full_name, title, department, seniority, profile_url, email, created_at
			 FROM employees WHERE company_id = ? AND full_name_normalized = ?`,
			companyID, key,
		).Scan(&existing.ID, &existing.CompanyID, &existing.FullName, &existing.Title,
			&existing.Department, &existing.Seniority, &existing.ProfileURL, &existing.Email, &existing.CreatedAt)

		switch {
		case err == sql.ErrNoRows:
			emp := reconcile.NewEmployee(companyID, pe)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO employees (id, company_id, full_name, full_name_normalized, title, department, seniority, profile_url, email, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				emp.ID, emp.CompanyID, emp.FullName, key, emp.Title, emp.Department,
				emp.Seniority, emp.ProfileURL, emp.Email, emp.CreatedAt); err != nil {
				return eris.Wrapf(err, "sqlite: insert employee %s", emp.FullName)
			}
		case err != nil:
			return eris.Wrap(err, "sqlite: select employee")
		default:
			merged, changed := reconcile.FillEmployee(existing, pe)
			if !changed {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE employees SET title = ?, department = ?, seniority = ?, profile_url = ?, email = ? WHERE id = ?`,
				merged.Title, merged.Department, merged.Seniority, merged.ProfileURL, merged.Email, merged.ID); err != nil {
				return eris.Wrapf(err, "sqlite: update employee %s", merged.ID)
			}
		}
	}
	return nil
}

// findCompanyTx resolves the merge target inside the transaction, in the
// same priority order the resolver uses.
func findCompanyTx(ctx context.Context, tx *sql.Tx, parsedName, query string) (*model.Company, error) {
	if key := normalize.Key(query); key != "" {
		row := tx.QueryRowContext(ctx,
			`SELECT `+sqliteCompanyCols+` FROM companies WHERE name_normalized = ?`, key)
		c, err := scanCompany(row, "sqlite: find by query key")
		if err != nil || c != nil {
			return c, err
		}
	}

	name := strings.TrimSpace(parsedName)
	if name == "" {
		return nil, nil
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE name = ?`, name)
	c, err := scanCompany(row, "sqlite: find by parsed name")
	if err != nil || c != nil {
		return c, err
	}

	row = tx.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyCols+` FROM companies WHERE lower(name) = lower(?)`, name)
	return scanCompany(row, "sqlite: find by parsed name fold")
}

func updateCompanyTx(ctx context.Context, tx *sql.Tx, c model.Company) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE companies SET name_normalized = ?, industry = ?, employee_size = ?, domain = ?, email = ?, updated_at = ? WHERE id = ?`,
		c.NameNormalized, c.Industry, c.EmployeeSize, c.Domain, c.Email, c.UpdatedAt, c.ID)
	return eris.Wrapf(err, "sqlite: update company %s", c.ID)
}

// isSQLiteUniqueViolation reports whether err is a UNIQUE constraint
// failure. modernc.org/sqlite does not export a typed error for this, so
// match the stable message prefix.
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable, wrap string) (*model.Company, error) {
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Industry,
		&c.EmployeeSize, &c.Domain, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, wrap)
	}
	return &c, nil
}
