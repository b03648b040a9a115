package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/helloreadme/internal/domain"
)

func newReadyIndex(t *testing.T, store *fakeVectorStore, embedder *fakeEmbedder) *VectorIndex {
	t.Helper()
	idx := NewVectorIndex(store, embedder)
	require.NoError(t, idx.Initialize(context.Background()))
	return idx
}

func testProjects(names ...string) []domain.Project {
	out := make([]domain.Project, len(names))
	for i, n := range names {
		out[i] = domain.Project{ID: int64(i + 1), Name: n, FullName: "octo/" + n, Language: domain.LanguageGo}
	}
	return out
}

func TestSimilarityFromDistance(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.5, 2.0 / 3.0},
		{2, 1.0 / 3.0},
		{-1, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SimilarityFromDistance(tt.distance), 1e-9, "distance %v", tt.distance)
	}
}

func TestVectorIndexRequiresInitialize(t *testing.T) {
	idx := NewVectorIndex(newFakeVectorStore(), &fakeEmbedder{})

	_, err := idx.Query(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrIndexNotReady)

	_, err = idx.UpsertBatch(context.Background(), testProjects("a"))
	assert.ErrorIs(t, err, ErrIndexNotReady)
}

func TestVectorIndexInitializeIsIdempotent(t *testing.T) {
	store := newFakeVectorStore()
	idx := newReadyIndex(t, store, &fakeEmbedder{})
	require.NoError(t, idx.Initialize(context.Background()))
	assert.Equal(t, 1, store.ensured)
}

func TestUpsertBatchSkipsExisting(t *testing.T) {
	store := newFakeVectorStore()
	embedder := &fakeEmbedder{}
	idx := newReadyIndex(t, store, embedder)
	projects := testProjects("alpha", "beta", "gamma")

	first, err := idx.UpsertBatch(context.Background(), projects)
	require.NoError(t, err)
	assert.Equal(t, domain.VectorBatchResult{Total: 3, Inserted: 3}, first)

	second, err := idx.UpsertBatch(context.Background(), projects)
	require.NoError(t, err)
	assert.Equal(t, domain.VectorBatchResult{Total: 3, Skipped: 3}, second)
	assert.Equal(t, 3, embedder.docs)
}

func TestUpsertBatchIsolatesFailures(t *testing.T) {
	store := newFakeVectorStore()
	idx := newReadyIndex(t, store, &fakeEmbedder{failOn: map[string]bool{"beta": true}})

	res, err := idx.UpsertBatch(context.Background(), testProjects("alpha", "beta", "gamma"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int64{2}, res.FailedIDs)
	assert.Len(t, store.points, 2)
}

func TestUpsertOneReplacesVector(t *testing.T) {
	store := newFakeVectorStore()
	idx := newReadyIndex(t, store, &fakeEmbedder{})
	p := testProjects("alpha")[0]

	require.NoError(t, idx.UpsertOne(context.Background(), &p))
	p.Description = "now with a description"
	require.NoError(t, idx.UpsertOne(context.Background(), &p))

	require.Len(t, store.points, 1)
	assert.Contains(t, store.points[1].Payload.Document, "Description: now with a description")
}

func TestQueryConvertsScores(t *testing.T) {
	store := newFakeVectorStore()
	store.scores = []float32{1, 0.5, -1}
	idx := newReadyIndex(t, store, &fakeEmbedder{})

	hits, err := idx.Query(context.Background(), "vector database", 0)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, defaultTopK, store.lastTopK)

	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.InDelta(t, 1, hits[0].Similarity, 1e-6)
	assert.InDelta(t, 0.5, hits[1].Distance, 1e-6)
	assert.InDelta(t, 2.0/3.0, hits[1].Similarity, 1e-6)
	assert.InDelta(t, 2, hits[2].Distance, 1e-6)
	assert.InDelta(t, 1.0/3.0, hits[2].Similarity, 1e-6)
	assert.Equal(t, "octo/p1", hits[0].FullName)
}

func TestQueryClampsTopKAndRejectsEmptyText(t *testing.T) {
	store := newFakeVectorStore()
	idx := newReadyIndex(t, store, &fakeEmbedder{})

	_, err := idx.QueryLanguage(context.Background(), "agents", 500, "Go")
	require.NoError(t, err)
	assert.Equal(t, maxTopK, store.lastTopK)
	assert.Equal(t, "Go", store.lastLang)

	_, err = idx.Query(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestQueryEmbeddingFailure(t *testing.T) {
	idx := newReadyIndex(t, newFakeVectorStore(), &fakeEmbedder{failOn: map[string]bool{"boom": true}})
	_, err := idx.Query(context.Background(), "boom", 5)
	assert.ErrorIs(t, err, errEmbed)
}

func TestVectorIndexStats(t *testing.T) {
	store := newFakeVectorStore()
	idx := newReadyIndex(t, store, &fakeEmbedder{})
	_, err := idx.UpsertBatch(context.Background(), testProjects("alpha", "beta"))
	require.NoError(t, err)

	stats, err := idx.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalVectors)
	assert.Equal(t, "projects", stats.CollectionName)
	assert.Equal(t, "memory://projects", stats.Path)
}

func TestBuildProjectText(t *testing.T) {
	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &domain.Project{
		Name:        "helloreadme",
		FullName:    "octo/helloreadme",
		Description: "  Collects READMEs  ",
		Language:    domain.LanguageGo,
		Topics:      domain.StringArray{"github", "rag"},
		Stars:       42,
		CreatedAt:   created,
	}

	want := "Name: helloreadme | Full name: octo/helloreadme | Description: Collects READMEs | " +
		"Language: Go | Topics: github, rag | Stars: 42 | Created: 2023-01-02T03:04:05Z"
	assert.Equal(t, want, BuildProjectText(p))

	assert.Equal(t, "Name: bare", BuildProjectText(&domain.Project{Name: "bare"}))
}
