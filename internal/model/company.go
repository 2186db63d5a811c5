package model

import "time"

// Unknown is the sentinel stored in employee fields whose value has not yet
// been determined by any enrichment pass. Fill-only merge logic compares
// against this value, never against the empty string.
const Unknown = "unknown"

// Company is a cached company profile. NameNormalized is the canonical
// lookup key (whitespace-collapsed, case-folded) and is unique in the store.
// Optional fields use the zero value when not yet known.
type Company struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NameNormalized string    `json:"name_normalized"`
	Industry       string    `json:"industry,omitempty"`
	EmployeeSize   int       `json:"employee_size,omitempty"`
	Domain         string    `json:"domain,omitempty"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Employee is a person associated with exactly one company. Optional fields
// hold the Unknown sentinel until an enrichment pass supplies a value;
// (CompanyID, normalized FullName) is unique in the store.
type Employee struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	FullName   string    `json:"full_name"`
	Title      string    `json:"title"`
	Department string    `json:"department"`
	Seniority  string    `json:"seniority"`
	ProfileURL string    `json:"profile_url"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// Source indicates where a lookup result came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceEnriched Source = "enriched"
	SourceManual   Source = "manual"
	SourceFailed   Source = "failed"
)

// Result is the caller-facing outcome of a lookup. The caller always receives
// a result: on failure Company may be nil and Reason explains why.
type Result struct {
	Company   *Company   `json:"company,omitempty"`
	Employees []Employee `json:"employees"`
	Source    Source     `json:"source"`
	Reason    string     `json:"reason,omitempty"`
}

// ManualEntry holds operator-supplied company fields for direct insertion.
type ManualEntry struct {
	Name         string `json:"name"`
	Industry     string `json:"industry,omitempty"`
	EmployeeSize int    `json:"employee_size,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Email        string `json:"email,omitempty"`
}
