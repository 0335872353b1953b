package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ChatGPTProvider queries an OpenAI-compatible chat completions API
// with web search enabled.
type ChatGPTProvider struct {
	endpoint string
	model    string
	apiKey   string
	client   *resty.Client
}

var _ Provider = (*ChatGPTProvider)(nil)

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content     string `json:"content"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatGPTProvider creates a new ChatGPT provider
func NewChatGPTProvider(endpoint, model, apiKey string) *ChatGPTProvider {
	return &ChatGPTProvider{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   resty.New().SetTimeout(60 * time.Second),
	}
}

func (p *ChatGPTProvider) Name() string {
	return "chatgpt"
}

func (p *ChatGPTProvider) IsEnabled() bool {
	return p.apiKey != "" && p.endpoint != ""
}

func (p *ChatGPTProvider) Query(ctx context.Context, prompt string) (*Response, error) {
	if !p.IsEnabled() {
		return nil, fmt.Errorf("chatgpt provider disabled - missing credentials")
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
		return nil, fmt.Errorf("chatgpt request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("chatgpt API returned status %d", resp.StatusCode())
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		return nil, fmt.Errorf("failed to parse chatgpt response: %w", err)
	}

	if len(completion.Choices) == 0 {
		logrus.Debug("ChatGPT returned no choices")
		return &Response{LatencyMs: latency}, nil
	}

	message := completion.Choices[0].Message
	var citations []string
	for _, annotation := range message.Annotations {
		if annotation.Type == "url_citation" && annotation.URLCitation.URL != "" {
			citations = append(citations, annotation.URLCitation.URL)
		}
	}

	return &Response{
		Content:   message.Content,
		Citations: citations,
		LatencyMs: latency,
	}, nil
}
