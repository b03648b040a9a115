package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAICompatible speaks the /chat/completions dialect shared by DeepSeek,
// OpenAI, DashScope, Qianfan v2 and Zhipu.
type OpenAICompatible struct {
	name   string
	model  string
	client *resty.Client
}

// NewOpenAICompatible creates a provider for an OpenAI-style endpoint.
func NewOpenAICompatible(name, baseURL, apiKey, model string, timeout time.Duration) *OpenAICompatible {
	client := newRestyClient(strings.TrimRight(baseURL, "/"), timeout)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &OpenAICompatible{name: name, model: model, client: client}
}

func (p *OpenAICompatible) Name() string { return p.name }

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat implements Provider.
func (p *OpenAICompatible) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var resp openAIChatResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(openAIChatRequest{
			Model:       model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("%s chat request failed: %w", p.name, err)
	}
	if httpResp.IsError() {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("%s API error: %s", p.name, resp.Error.Message)
		}
		return nil, fmt.Errorf("%s API error: status %d", p.name, httpResp.StatusCode())
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", p.name)
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return &Response{
		Content:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:    model,
		Provider: p.name,
		Usage:    resp.Usage,
	}, nil
}

type openAIModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels implements Provider.
func (p *OpenAICompatible) ListModels(ctx context.Context) ([]string, error) {
	var list openAIModelList
	httpResp, err := p.client.R().SetContext(ctx).SetResult(&list).Get("/models")
	if err != nil {
		return nil, fmt.Errorf("%s list models failed: %w", p.name, err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("%s list models: status %d", p.name, httpResp.StatusCode())
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
