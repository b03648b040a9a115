package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/helloreadme/internal/llm"
)

type fakeGenerator struct {
	reply   string
	err     error
	last    llm.ChatRequest
	prompts []string
}

func (g *fakeGenerator) GenerateText(ctx context.Context, system, prompt string) (*llm.Response, error) {
	g.prompts = append(g.prompts, prompt)
	return g.Chat(ctx, llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleSystem, Content: system}, {Role: llm.RoleUser, Content: prompt}}})
}

func (g *fakeGenerator) Chat(ctx context.Context, req llm.ChatRequest) (*llm.Response, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Content: g.reply, Provider: "deepseek", Model: "deepseek-chat"}, nil
}

func TestRAGAskUsesRetrievedProjects(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "p1", "p2")
	p1, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	p1.Description = "A vector search engine"
	_, err = store.Upsert(ctx, p1)
	require.NoError(t, err)

	vectors := newFakeVectorStore()
	vectors.scores = []float32{0.9, 0.5}
	gen := &fakeGenerator{reply: "Use octo/p1."}
	rag := NewRAGService(newReadyIndex(t, vectors, &fakeEmbedder{}), store, gen)

	answer, err := rag.Ask(ctx, "  a semantic search service ", 0)
	require.NoError(t, err)
	assert.Equal(t, "a semantic search service", answer.Question)
	assert.Equal(t, "Use octo/p1.", answer.Answer)
	assert.Equal(t, "deepseek", answer.Provider)
	require.Len(t, answer.Sources, 2)

	require.Len(t, gen.last.Messages, 2)
	system := gen.last.Messages[0].Content
	assert.Contains(t, system, "octo/p1")
	assert.Contains(t, system, "A vector search engine")
	assert.Contains(t, gen.last.Messages[1].Content, "a semantic search service")
}

func TestRAGAskWithoutHits(t *testing.T) {
	gen := &fakeGenerator{reply: "No indexed projects, but try X."}
	rag := NewRAGService(newReadyIndex(t, newFakeVectorStore(), &fakeEmbedder{}), seedStore(t), gen)

	answer, err := rag.Ask(context.Background(), "an online education platform", 3)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.NotContains(t, gen.last.Messages[0].Content, "上下文信息")
}

func TestRAGAskDegradesOnRetrievalFailure(t *testing.T) {
	embedder := &fakeEmbedder{failOn: map[string]bool{"broken retrieval": true}}
	gen := &fakeGenerator{reply: "answer"}
	rag := NewRAGService(newReadyIndex(t, newFakeVectorStore(), embedder), seedStore(t), gen)

	answer, err := rag.Ask(context.Background(), "broken retrieval", 3)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Answer)
}

func TestRAGAskErrors(t *testing.T) {
	gen := &fakeGenerator{err: llm.ErrNoProvider}
	rag := NewRAGService(newReadyIndex(t, newFakeVectorStore(), &fakeEmbedder{}), seedStore(t), gen)

	_, err := rag.Ask(context.Background(), "   ", 3)
	assert.Error(t, err)

	_, err = rag.Ask(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, llm.ErrNoProvider)
}

func TestQueryExpansion(t *testing.T) {
	ctx := context.Background()

	var disabled *QueryExpansionService
	assert.False(t, disabled.IsEnabled())
	got, err := NewQueryExpansionService(nil).Expand(ctx, "rag")
	require.NoError(t, err)
	assert.Equal(t, "rag", got)

	tests := []struct {
		name  string
		query string
		gen   *fakeGenerator
		want  string
	}{
		{"expanded", "rag", &fakeGenerator{reply: "retrieval augmented generation frameworks and toolkits"}, "retrieval augmented generation frameworks and toolkits"},
		{"too short reply", "rag", &fakeGenerator{reply: "rag"}, "rag"},
		{"long query kept", strings.Repeat("x", 51), &fakeGenerator{reply: "should not be used at all"}, strings.Repeat("x", 51)},
		{"error falls back", "rag", &fakeGenerator{err: errors.New("down")}, "rag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewQueryExpansionService(tt.gen)
			if got := s.ExpandWithFallback(ctx, tt.query); got != tt.want {
				t.Errorf("ExpandWithFallback(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}
