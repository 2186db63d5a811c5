package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-lookup/pkg/perplexity"
)

// PerplexityClient enriches companies through Perplexity's search-grounded
// chat completions, so answers reflect the live web rather than model
// training data.
type PerplexityClient struct {
	client       perplexity.Client
	model        string
	recency      string
	maxTokens    int
	maxEmployees int
	limiter      *rate.Limiter
}

// NewPerplexity wraps a Perplexity client. recency restricts the web
// search window ("day", "week", "month", "year"); empty disables it.
func NewPerplexity(client perplexity.Client, model, recency string, maxTokens int, maxEmployees int, requestsPerMinute int) *PerplexityClient {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &PerplexityClient{
		client:       client,
		model:        model,
		recency:      recency,
		maxTokens:    maxTokens,
		maxEmployees: maxEmployees,
		limiter:      limiter,
	}
}

func (c *PerplexityClient) Research(ctx context.Context, req Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "enrich: rate limit wait")
		}
	}

	creq := perplexity.ChatCompletionRequest{
		Model:               c.model,
		Temperature:         &extractionTemperature,
		SearchRecencyFilter: c.recency,
		Messages: []perplexity.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req, c.maxEmployees)},
		},
	}
	if c.maxTokens > 0 {
		creq.MaxTokens = &c.maxTokens
	}

	resp, err := c.client.ChatCompletion(ctx, creq)
	if err != nil {
		zap.L().Warn("perplexity enrichment failed",
			zap.String("query", req.Query), zap.Error(err))
		return "", eris.Wrap(ErrUnavailable, err.Error())
	}

	answer := resp.Answer()
	if answer == "" {
		return "", eris.Wrap(ErrUnavailable, "empty response")
	}

	zap.L().Debug("perplexity enrichment",
		zap.String("query", req.Query),
		zap.Int("citations", len(resp.Citations)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return answer, nil
}
