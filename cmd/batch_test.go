package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-lookup/internal/resolver"
	"github.com/sells-group/company-lookup/internal/store"
)

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"Acme Corp\n\n# a comment\n  Globex  \n"), 0o644))

	queries, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp", "Globex"}, queries)

	_, err = readQueries(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestProcessBatch(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	svc := resolver.New(st, &stubEnrich{text: stubResearch})

	queries := []string{"Acme Corp", "acme corp", "ACME CORP"}
	require.NoError(t, processBatch(context.Background(), svc, queries, 0, 2))

	// All three aliases collapse onto one cached row.
	companies, err := st.ListCompanies(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

func TestProcessBatch_LimitAndEmpty(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	svc := resolver.New(st, &stubEnrich{text: stubResearch})

	require.NoError(t, processBatch(context.Background(), svc, nil, 0, 2))

	require.NoError(t, processBatch(context.Background(), svc,
		[]string{"Acme Corp", "Globex"}, 1, 2))
	companies, err := st.ListCompanies(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}
