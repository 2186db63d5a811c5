// Package normalize builds canonical lookup keys from display names.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// Key collapses internal whitespace runs to single spaces, trims the ends,
// and applies full Unicode case folding. Differently cased variants of the
// same name produce the same key ("Straße" and "STRASSE" compare equal,
// which plain lowercasing misses). Empty input yields the empty key.
func Key(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return cases.Fold().String(strings.Join(fields, " "))
}
