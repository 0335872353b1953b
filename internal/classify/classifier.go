package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Classifier assigns a category to a cited URL. The real
// classification service is external; this package only holds the
// client and a heuristic stand-in for when the service is not
// configured.
type Classifier interface {
	Classify(ctx context.Context, rawURL string) (string, error)
}

// HTTPClassifier calls the external classification service.
type HTTPClassifier struct {
	endpoint string
	client   *resty.Client
}

var _ Classifier = (*HTTPClassifier)(nil)

type classifyRequest struct {
	URL string `json:"url"`
}

type classifyResponse struct {
	Category string `json:"category"`
}

// NewHTTPClassifier creates a classifier client for the given endpoint.
func NewHTTPClassifier(endpoint string) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		client:   resty.New().SetTimeout(15 * time.Second),
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(classifyRequest{URL: rawURL}).
		Post(c.endpoint)

	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}

	var parsed classifyResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse classifier response: %w", err)
	}

	if parsed.Category == "" {
		return "other", nil
	}
	return parsed.Category, nil
}

// HostClassifier buckets URLs by hostname keywords. Used when no
// classification service endpoint is configured.
type HostClassifier struct{}

var _ Classifier = (*HostClassifier)(nil)

func (HostClassifier) Classify(_ context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid citation URL %q", rawURL)
	}

	host := strings.ToLower(parsed.Host)
	switch {
	case strings.Contains(host, "reddit") || strings.Contains(host, "quora"):
		return "community", nil
	case strings.Contains(host, "youtube") || strings.Contains(host, "vimeo"):
		return "video", nil
	case strings.Contains(host, "wikipedia"):
		return "reference", nil
	case strings.Contains(host, "news") || strings.Contains(host, "blog") || strings.Contains(host, "medium"):
		return "editorial", nil
	default:
		return "other", nil
	}
}
