package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// Anthropic talks to the Messages API.
type Anthropic struct {
	model  string
	client *resty.Client
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(baseURL, apiKey, model string, timeout time.Duration) *Anthropic {
	client := newRestyClient(strings.TrimRight(baseURL, "/"), timeout).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion)
	return &Anthropic{model: model, client: client}
}

func (p *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat implements Provider. System messages are lifted into the top-level
// system field.
func (p *Anthropic) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	body := anthropicRequest{Model: model, MaxTokens: maxTokens, Temperature: req.Temperature}
	var system []string
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, m)
	}
	body.System = strings.Join(system, "\n\n")

	var resp anthropicResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post("/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("anthropic chat request failed: %w", err)
	}
	if httpResp.IsError() {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("anthropic API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("anthropic API error: status %d", httpResp.StatusCode())
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return &Response{
		Content:  strings.TrimSpace(text.String()),
		Model:    model,
		Provider: p.Name(),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// ListModels implements Provider.
func (p *Anthropic) ListModels(ctx context.Context) ([]string, error) {
	var list openAIModelList
	httpResp, err := p.client.R().SetContext(ctx).SetResult(&list).Get("/v1/models")
	if err != nil {
		return nil, fmt.Errorf("anthropic list models failed: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("anthropic list models: status %d", httpResp.StatusCode())
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
