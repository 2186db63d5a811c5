package model

// ParsedRecord is the structured output of the response parser: one company
// plus zero or more employees, exactly as claimed by the enrichment response.
// All fields are raw strings; coercion (e.g. employee size to int) happens in
// the reconciliation layer so a bad value never fails the parse.
type ParsedRecord struct {
	Company   ParsedCompany
	Employees []ParsedEmployee
}

// ParsedCompany holds company fields as parsed from an enrichment response.
// EmployeeSize stays textual until merge time; non-integer values are
// discarded there rather than treated as parse errors.
type ParsedCompany struct {
	Name         string
	Industry     string
	EmployeeSize string
	Domain       string
	Email        string
}

// ParsedEmployee holds employee fields as parsed from an enrichment response.
// An empty field means the response did not supply a value.
type ParsedEmployee struct {
	FullName   string
	Title      string
	Department string
	Seniority  string
	ProfileURL string
	Email      string
}
