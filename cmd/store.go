package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-lookup/internal/enrich"
	"github.com/sells-group/company-lookup/internal/resolver"
	"github.com/sells-group/company-lookup/internal/store"
	anthropicpkg "github.com/sells-group/company-lookup/pkg/anthropic"
	"github.com/sells-group/company-lookup/pkg/perplexity"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "companies.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnrichClient picks the provider. Grounded mode routes through
// Perplexity so answers come from live web search.
func initEnrichClient() (enrich.Client, error) {
	if cfg.Enrich.Grounded || cfg.Enrich.Provider == "perplexity" {
		if cfg.Perplexity.Key == "" {
			return nil, eris.New("perplexity API key is required (LOOKUP_PERPLEXITY_KEY)")
		}
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model))
		return enrich.NewPerplexity(client, cfg.Perplexity.Model, cfg.Perplexity.Recency,
			cfg.Enrich.MaxTokens, cfg.Enrich.MaxEmployees, cfg.Enrich.RequestsPerMinute), nil
	}

	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (LOOKUP_ANTHROPIC_KEY)")
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return enrich.NewAnthropic(client, cfg.Anthropic.Model,
		int64(cfg.Enrich.MaxTokens), cfg.Enrich.MaxEmployees, cfg.Enrich.RequestsPerMinute), nil
}

// initService builds the lookup service: migrated store plus enrichment
// client. The caller owns the returned store's lifetime.
func initService(ctx context.Context) (*resolver.Service, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	client, err := initEnrichClient()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	return resolver.New(st, client), st, nil
}
