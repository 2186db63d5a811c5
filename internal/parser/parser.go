// Package parser turns raw enrichment responses into structured records.
//
// Providers are asked for strict JSON but routinely return it wrapped in
// markdown fences, surrounded by commentary, or with trailing commas. Each
// stage here is a pure attempt: fence-stripped direct parse, brace-matched
// substring, trailing-comma repair, then a line-oriented extractor. Parse
// never fails; the last resort is a name-only record with no employees.
package parser

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/company-lookup/internal/model"
)

// envelope mirrors the JSON shape requested from the enrichment provider.
type envelope struct {
	Company   *companyJSON   `json:"company"`
	Employees []employeeJSON `json:"employees"`
}

type companyJSON struct {
	Name         *string `json:"name"`
	Industry     *string `json:"industry"`
	EmployeeSize any     `json:"employee_size"`
	Domain       *string `json:"domain"`
	Email        *string `json:"email"`
}

type employeeJSON struct {
	FullName   *string `json:"full_name"`
	Title      *string `json:"title"`
	Department *string `json:"department"`
	Seniority  *string `json:"seniority"`
	ProfileURL *string `json:"profile_url"`
	Email      *string `json:"email"`
}

var (
	// Field delimiters recognized by the line extractor: pipe, semicolon,
	// tab runs, hyphen with whitespace on at least one side, or two-plus
	// spaces. A hyphen tight on both sides ("Jean-Luc") is not a delimiter.
	delimRe = regexp.MustCompile(`\s*\|\s*|\s*;\s*|\t+|\s+-\s*|\s*-\s+| {2,}`)

	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// Parse extracts a company record from raw response text. query is the
// original lookup string, used to synthesize a company when the response
// carries none.
func Parse(raw, query string) *model.ParsedRecord {
	if env, ok := tryJSON(stripFences(raw)); ok {
		return fromEnvelope(env)
	}

	if obj, ok := firstObject(raw); ok {
		if env, ok := tryJSON(obj); ok {
			return fromEnvelope(env)
		}
		if env, ok := tryJSON(trailingCommaRe.ReplaceAllString(obj, "$1")); ok {
			return fromEnvelope(env)
		}
	}

	zap.L().Warn("parser: no JSON object found, falling back to line extraction",
		zap.String("query", query),
		zap.Int("response_len", len(raw)),
	)

	return &model.ParsedRecord{
		Company:   model.ParsedCompany{Name: strings.TrimSpace(query)},
		Employees: extractEmployeeLines(raw),
	}
}

// tryJSON attempts to decode text as a top-level JSON object. Arrays,
// scalars, and null are rejected.
func tryJSON(text string) (*envelope, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, false
	}
	return &env, true
}

// stripFences removes a leading markdown code fence (with optional language
// tag) and its closing fence. Text without fences passes through untouched.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// firstObject finds the first '{' and returns the substring through its
// matching '}', tracking nesting and skipping braces inside JSON strings.
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// extractEmployeeLines is the last-resort extractor for prose responses.
// Each non-blank, non-comment line is split into positional fields
// (full_name, title, department, seniority, url-or-email); a line counts
// only if it yields a non-empty name.
func extractEmployeeLines(raw string) []model.ParsedEmployee {
	var out []model.ParsedEmployee
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		parts := delimRe.Split(line, -1)
		var emp model.ParsedEmployee
		for i, p := range parts {
			p = strings.TrimSpace(p)
			switch i {
			case 0:
				emp.FullName = p
			case 1:
				emp.Title = p
			case 2:
				emp.Department = p
			case 3:
				emp.Seniority = p
			case 4:
				if strings.Contains(p, "@") {
					emp.Email = p
				} else {
					emp.ProfileURL = p
				}
			}
		}

		// The line may carry an email outside the positional fields.
		if emp.Email == "" {
			emp.Email = emailRe.FindString(line)
		}

		if emp.FullName == "" {
			continue
		}
		out = append(out, emp)
	}
	return out
}

func fromEnvelope(env *envelope) *model.ParsedRecord {
	rec := &model.ParsedRecord{}
	if env.Company != nil {
		rec.Company = model.ParsedCompany{
			Name:         deref(env.Company.Name),
			Industry:     deref(env.Company.Industry),
			EmployeeSize: sizeString(env.Company.EmployeeSize),
			Domain:       deref(env.Company.Domain),
			Email:        deref(env.Company.Email),
		}
	}
	for _, e := range env.Employees {
		rec.Employees = append(rec.Employees, model.ParsedEmployee{
			FullName:   deref(e.FullName),
			Title:      deref(e.Title),
			Department: deref(e.Department),
			Seniority:  deref(e.Seniority),
			ProfileURL: deref(e.ProfileURL),
			Email:      deref(e.Email),
		})
	}
	return rec
}

// deref trims and filters placeholder text. Providers are told to write
// "unknown" for fields they cannot determine; treating those as absent here
// keeps one unknown representation downstream (zero value for companies,
// the stored sentinel for employees).
func deref(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "unknown", "not found", "n/a", "none", "null":
		return ""
	}
	return v
}

// sizeString renders the employee_size value textually. Providers return it
// as a number, a numeric string, or prose; coercion to int happens at merge
// time so a bad value degrades to unknown instead of failing the parse.
func sizeString(v any) string {
	switch n := v.(type) {
	case string:
		return deref(&n)
	case float64:
		if n == math.Trunc(n) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}
