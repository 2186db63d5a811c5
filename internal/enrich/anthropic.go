package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/company-lookup/pkg/anthropic"
)

// AnthropicClient enriches companies through the Anthropic Messages API.
type AnthropicClient struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	maxEmployees int
	limiter      *rate.Limiter
}

// NewAnthropic wraps an Anthropic client. requestsPerMinute caps the
// steady request rate; zero disables the limiter.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64, maxEmployees int, requestsPerMinute int) *AnthropicClient {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &AnthropicClient{
		client:       client,
		model:        model,
		maxTokens:    maxTokens,
		maxEmployees: maxEmployees,
		limiter:      limiter,
	}
}

func (c *AnthropicClient) Research(ctx context.Context, req Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "enrich: rate limit wait")
		}
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      systemPrompt,
		Temperature: &extractionTemperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: BuildPrompt(req, c.maxEmployees)},
		},
	})
	if err != nil {
		zap.L().Warn("anthropic enrichment failed",
			zap.String("query", req.Query), zap.Error(err))
		return "", eris.Wrap(ErrUnavailable, err.Error())
	}

	resp.Usage.LogCost(c.model, req.Query)

	text := resp.Text()
	if text == "" {
		return "", eris.Wrap(ErrUnavailable, "empty response")
	}
	return text, nil
}
