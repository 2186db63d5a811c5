package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Acme Corp", "acme corp"},
		{"collapses whitespace", "  Acme \t  Corp ", "acme corp"},
		{"all caps", "ACME CORP", "acme corp"},
		{"empty", "", ""},
		{"whitespace only", "   \t\n ", ""},
		{"unicode fold", "Straße AG", "strasse ag"},
		{"mixed case unicode", "İstanbul Holding", Key("i̇stanbul holding")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.in))
		})
	}
}

func TestKey_Stable(t *testing.T) {
	// The property the cache depends on: spacing and case never change the key.
	assert.Equal(t, Key("  Acme   Corp "), Key("ACME CORP"))
	assert.Equal(t, Key("acme corp"), Key("Acme\tCorp"))
}
