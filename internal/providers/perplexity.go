package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// PerplexityProvider queries the Perplexity search-grounded chat API.
type PerplexityProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *resty.Client
}

var _ Provider = (*PerplexityProvider)(nil)

type perplexityResponse struct {
	Citations []string `json:"citations"`
	Choices   []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewPerplexityProvider creates a new Perplexity provider
func NewPerplexityProvider(endpoint, model, apiKey string) *PerplexityProvider {
	return &PerplexityProvider{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   resty.New().SetTimeout(60 * time.Second),
	}
}

func (p *PerplexityProvider) Name() string {
	return "perplexity"
}

func (p *PerplexityProvider) IsEnabled() bool {
	return p.apiKey != "" && p.endpoint != ""
}

func (p *PerplexityProvider) Query(ctx context.Context, prompt string) (*Response, error) {
	if !p.IsEnabled() {
		return nil, fmt.Errorf("perplexity provider disabled - missing credentials")
	}

	start := time.Now()
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(chatCompletionRequest{
			Model: p.model,
			Messages: []chatMessage{
				{Role: "user", Content: prompt},
			},
		}).
		Post(p.endpoint)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return nil, fmt.Errorf("perplexity request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("perplexity API returned status %d", resp.StatusCode())
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse perplexity response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		logrus.Debug("Perplexity returned no choices")
		return &Response{LatencyMs: latency}, nil
	}

	return &Response{
		Content:   parsed.Choices[0].Message.Content,
		Citations: parsed.Citations,
		LatencyMs: latency,
	}, nil
}
