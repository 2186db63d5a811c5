// Package enrich produces raw research text about a company from an AI
// provider. Providers return unstructured text; turning it into records
// is the parser's job.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnavailable indicates the enrichment provider could not be reached
// or refused the request. Callers degrade to cached data when they see it.
var ErrUnavailable = eris.New("enrichment unavailable")

// Request describes a single enrichment query.
type Request struct {
	// Query is the raw company name as the caller supplied it.
	Query string
	// Context carries optional caller hints, e.g. a known domain or city.
	Context string
}

// Client produces research text for a company query.
type Client interface {
	Research(ctx context.Context, req Request) (string, error)
}

const systemPrompt = `You are a company research assistant. You respond with a single JSON object and nothing else: no markdown fences, no commentary.`

// extractionTemperature keeps provider output reproducible; the answers
// feed a parser, not a reader.
var extractionTemperature = 0.0

// BuildPrompt renders the user prompt asking for a structured company
// profile with at most maxEmployees notable employees.
func BuildPrompt(req Request, maxEmployees int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the company %q.", req.Query)
	if req.Context != "" {
		fmt.Fprintf(&b, " Additional context: %s.", req.Context)
	}
	fmt.Fprintf(&b, `

Respond with one JSON object in exactly this shape:
{
  "company": {
    "name": "official company name",
    "industry": "primary industry",
    "employee_size": "approximate headcount as an integer",
    "domain": "primary website domain",
    "email": "general contact email"
  },
  "employees": [
    {
      "full_name": "...",
      "title": "...",
      "department": "...",
      "seniority": "...",
      "profile_url": "...",
      "email": "..."
    }
  ]
}

List at most %d notable employees. Use the string "unknown" for any field you cannot determine.`, maxEmployees)
	return b.String()
}
