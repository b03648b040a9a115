package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/llm"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/prompts"
	"github.com/timmy/helloreadme/internal/repository"
)

const defaultAskTopK = 3

// Answer is a generated recommendation together with the projects it drew on.
type Answer struct {
	Question string                  `json:"question"`
	Answer   string                  `json:"answer"`
	Provider string                  `json:"provider"`
	Model    string                  `json:"model"`
	Sources  []domain.SimilarProject `json:"sources"`
}

// RAGService answers questions with projects retrieved from the vector index.
type RAGService struct {
	index *VectorIndex
	store repository.ProjectStore
	llm   TextGenerator
}

// NewRAGService creates a new RAG service.
func NewRAGService(index *VectorIndex, store repository.ProjectStore, gen TextGenerator) *RAGService {
	return &RAGService{index: index, store: store, llm: gen}
}

// Ask retrieves the topK nearest projects and asks the LLM to recommend from
// them. Retrieval failures degrade to an answer without context.
func (s *RAGService) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}
	if topK <= 0 {
		topK = defaultAskTopK
	}

	hits, err := s.index.Query(ctx, question, topK)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Retrieval failed, answering without context")
		hits = nil
	}

	retrieved := make([]prompts.ContextProject, 0, len(hits))
	for _, h := range hits {
		cp := prompts.ContextProject{
			FullName:   h.FullName,
			Language:   h.Language,
			Stars:      h.Stars,
			Similarity: h.Similarity,
		}
		if p, err := s.store.GetByID(ctx, h.ProjectID); err == nil {
			cp.Description = p.Description
		} else if !errors.Is(err, repository.ErrProjectNotFound) {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, h.ProjectID).Warn("Failed to load project for context")
		}
		retrieved = append(retrieved, cp)
	}

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompts.BuildRecommendationSystemPrompt(retrieved)},
			{Role: llm.RoleUser, Content: fmt.Sprintf(prompts.RecommendationUserPrompt, question)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	logger.With(logger.Fields{logger.FieldProvider: resp.Provider}).WithCount(len(hits)).Info(ctx, "Question answered")
	return &Answer{
		Question: question,
		Answer:   resp.Content,
		Provider: resp.Provider,
		Model:    resp.Model,
		Sources:  hits,
	}, nil
}
