package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Ollama talks to a local Ollama daemon.
type Ollama struct {
	model  string
	client *resty.Client
}

// NewOllama creates an Ollama provider. An empty model uses the first model
// the daemon reports.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	return &Ollama{model: model, client: newRestyClient(strings.TrimRight(baseURL, "/"), timeout)}
}

func (p *Ollama) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error,omitempty"`
}

// Chat implements Provider.
func (p *Ollama) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		models, err := p.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		if len(models) == 0 {
			return nil, fmt.Errorf("ollama has no models installed")
		}
		model = models[0]
	}

	var resp ollamaChatResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(ollamaChatRequest{
			Model:    model,
			Messages: req.Messages,
			Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
		}).
		SetResult(&resp).
		SetError(&resp).
		Post("/api/chat")
	if err != nil {
		return nil, fmt.Errorf("ollama chat request failed: %w", err)
	}
	if httpResp.IsError() {
		if resp.Error != "" {
			return nil, fmt.Errorf("ollama API error: %s", resp.Error)
		}
		return nil, fmt.Errorf("ollama API error: status %d", httpResp.StatusCode())
	}

	return &Response{
		Content:  strings.TrimSpace(resp.Message.Content),
		Model:    model,
		Provider: p.Name(),
		Usage: Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels implements Provider.
func (p *Ollama) ListModels(ctx context.Context) ([]string, error) {
	var tags ollamaTags
	httpResp, err := p.client.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	if err != nil {
		return nil, fmt.Errorf("ollama list models failed: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("ollama list models: status %d", httpResp.StatusCode())
	}
	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
