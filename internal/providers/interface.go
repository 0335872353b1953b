package providers

import "context"

// Response is the normalized answer from one provider query.
type Response struct {
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
	LatencyMs int64    `json:"latency_ms"`
}

// Provider interface defines the contract for all answer providers
type Provider interface {
	Name() string
	Query(ctx context.Context, prompt string) (*Response, error)
	IsEnabled() bool
}
