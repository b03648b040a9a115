// Package llm talks to chat-completion backends and falls back between them.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNoProvider is returned when no provider is available to serve a request.
	ErrNoProvider = errors.New("no LLM provider available")

	// ErrUnknownProvider is returned by Switch for a name that is not available.
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is a provider-neutral chat call. Zero values mean provider defaults.
type ChatRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage is token accounting when the backend reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed chat call.
type Response struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Usage    Usage  `json:"usage"`
}

// Provider is a single chat backend.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*Response, error)
	ListModels(ctx context.Context) ([]string, error)
}

func buildMessages(system, prompt string) []Message {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	return append(messages, Message{Role: RoleUser, Content: prompt})
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
}
