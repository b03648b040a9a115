package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/helloreadme/internal/llm"
	"github.com/timmy/helloreadme/internal/prompts"
)

// TextGenerator is the slice of llm.Manager the services need.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string) (*llm.Response, error)
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.Response, error)
}

// QueryExpansionService rewrites short semantic-search queries into richer
// descriptions before embedding.
type QueryExpansionService struct {
	llm TextGenerator
}

// NewQueryExpansionService creates a new query expansion service. A nil
// generator disables expansion.
func NewQueryExpansionService(gen TextGenerator) *QueryExpansionService {
	return &QueryExpansionService{llm: gen}
}

// IsEnabled returns whether query expansion is enabled
func (s *QueryExpansionService) IsEnabled() bool {
	return s != nil && s.llm != nil
}

// Expand expands a short query into a richer semantic description
func (s *QueryExpansionService) Expand(ctx context.Context, query string) (string, error) {
	if !s.IsEnabled() {
		return query, nil
	}

	// Long queries are already descriptive.
	if len([]rune(query)) > 50 {
		return query, nil
	}

	resp, err := s.llm.GenerateText(ctx, prompts.QueryExpansionPrompt, query)
	if err != nil {
		return query, fmt.Errorf("query expansion failed: %w", err)
	}

	expanded := strings.TrimSpace(resp.Content)
	if len([]rune(expanded)) < 10 {
		return query, nil
	}
	return expanded, nil
}

// ExpandWithFallback expands query and returns original on any error
func (s *QueryExpansionService) ExpandWithFallback(ctx context.Context, query string) string {
	expanded, err := s.Expand(ctx, query)
	if err != nil {
		return query
	}
	return expanded
}
