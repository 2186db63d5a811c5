package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-lookup/pkg/anthropic"
	"github.com/sells-group/company-lookup/pkg/perplexity"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(Request{Query: "Acme Corp", Context: "anvil maker in Tucson"}, 10)

	assert.Contains(t, p, `"Acme Corp"`)
	assert.Contains(t, p, "anvil maker in Tucson")
	assert.Contains(t, p, "at most 10 notable employees")
	assert.Contains(t, p, `"employee_size"`)
	assert.Contains(t, p, `"unknown"`)

	p = BuildPrompt(Request{Query: "Acme Corp"}, 5)
	assert.NotContains(t, p, "Additional context")
	assert.Contains(t, p, "at most 5 notable employees")
}

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestAnthropicResearch(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" && len(req.Messages) == 1 &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"company": {"name": "Acme"}}`}},
	}, nil)

	c := NewAnthropic(mc, "claude-haiku-4-5-20251001", 4096, 10, 0)
	text, err := c.Research(context.Background(), Request{Query: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, `{"company": {"name": "Acme"}}`, text)
	mc.AssertExpectations(t)
}

func TestAnthropicResearch_ErrorIsUnavailable(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("api: overloaded"))

	c := NewAnthropic(mc, "claude-haiku-4-5-20251001", 4096, 10, 0)
	_, err := c.Research(context.Background(), Request{Query: "Acme"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnthropicResearch_EmptyResponseIsUnavailable(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{}, nil)

	c := NewAnthropic(mc, "claude-haiku-4-5-20251001", 4096, 10, 0)
	_, err := c.Research(context.Background(), Request{Query: "Acme"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

type fakePerplexity struct {
	resp *perplexity.ChatCompletionResponse
	err  error
	got  perplexity.ChatCompletionRequest
}

func (f *fakePerplexity) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestPerplexityResearch(t *testing.T) {
	fake := &fakePerplexity{resp: &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Content: `{"company": {}}`}}},
	}}

	c := NewPerplexity(fake, "sonar", "month", 4096, 10, 0)
	text, err := c.Research(context.Background(), Request{Query: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, `{"company": {}}`, text)
	assert.Equal(t, "sonar", fake.got.Model)
	assert.Equal(t, "month", fake.got.SearchRecencyFilter)
	require.NotNil(t, fake.got.Temperature)
	assert.Zero(t, *fake.got.Temperature)
	require.Len(t, fake.got.Messages, 2)
	assert.Equal(t, "system", fake.got.Messages[0].Role)
}

func TestPerplexityResearch_ErrorIsUnavailable(t *testing.T) {
	fake := &fakePerplexity{err: errors.New("dial tcp: timeout")}

	c := NewPerplexity(fake, "sonar", "", 0, 10, 0)
	_, err := c.Research(context.Background(), Request{Query: "Acme"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
