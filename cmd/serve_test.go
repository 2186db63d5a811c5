package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-lookup/internal/enrich"
	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/resolver"
	"github.com/sells-group/company-lookup/internal/store"
)

type stubEnrich struct {
	text string
	err  error
}

func (s *stubEnrich) Research(context.Context, enrich.Request) (string, error) {
	return s.text, s.err
}

const stubResearch = `{
	"company": {
		"name": "Acme Corp",
		"industry": "Manufacturing",
		"employee_size": 250,
		"domain": "acme.example",
		"email": "info@acme.example"
	},
	"employees": [
		{"full_name": "Jane Doe", "title": "CEO"}
	]
}`

func newTestServer(t *testing.T, en enrich.Client) *httptest.Server {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(newRouter(resolver.New(st, en), st))
	t.Cleanup(srv.Close)
	return srv
}

func TestServeHealth(t *testing.T) {
	srv := newTestServer(t, &stubEnrich{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeLookup(t *testing.T) {
	srv := newTestServer(t, &stubEnrich{text: stubResearch})

	resp, err := http.Post(srv.URL+"/lookup", "application/json",
		strings.NewReader(`{"query": "Acme Corp"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, model.SourceEnriched, result.Source)
	require.NotNil(t, result.Company)
	assert.Equal(t, "Acme Corp", result.Company.Name)
	assert.Len(t, result.Employees, 1)

	// Second identical lookup is served from cache.
	resp2, err := http.Post(srv.URL+"/lookup", "application/json",
		strings.NewReader(`{"query": "acme corp"}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&result))
	assert.Equal(t, model.SourceCache, result.Source)
}

func TestServeLookup_BadRequests(t *testing.T) {
	srv := newTestServer(t, &stubEnrich{})

	resp, err := http.Post(srv.URL+"/lookup", "application/json",
		strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/lookup", "application/json",
		strings.NewReader(`{"query": "  "}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeLookup_EnrichmentDown(t *testing.T) {
	srv := newTestServer(t, &stubEnrich{err: enrich.ErrUnavailable})

	resp, err := http.Post(srv.URL+"/lookup", "application/json",
		strings.NewReader(`{"query": "Nowhere Inc"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var result model.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, model.SourceFailed, result.Source)
	assert.NotEmpty(t, result.Reason)
}

func TestShutdownGracefully_DrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln) //nolint:errcheck

	type reply struct {
		status int
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			done <- reply{err: err}
			return
		}
		resp.Body.Close()
		done <- reply{status: resp.StatusCode}
	}()

	// Shut down while the request is in flight; it must still complete.
	<-started
	shutdownGracefully(srv)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, http.StatusOK, r.status)
}

func TestServeCompanies(t *testing.T) {
	srv := newTestServer(t, &stubEnrich{})

	// Manual add, then read back through the list and detail endpoints.
	resp, err := http.Post(srv.URL+"/companies", "application/json",
		strings.NewReader(`{"name": "Acme Corp", "industry": "Manufacturing", "employee_size": 250}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, model.SourceManual, created.Source)

	resp, err = http.Get(srv.URL + "/companies")
	require.NoError(t, err)
	var companies []model.Company
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&companies))
	resp.Body.Close()
	require.Len(t, companies, 1)

	resp, err = http.Get(srv.URL + "/companies/" + companies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/companies/no-such-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
