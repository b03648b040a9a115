package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/repository"
)

func seedStore(t *testing.T, names ...string) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, p := range testProjects(names...) {
		p := p
		_, err := store.Upsert(context.Background(), &p)
		require.NoError(t, err)
	}
	return store
}

func TestVectorizerIndexesNewProjectsOnce(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "alpha", "beta", "gamma")
	vectors := newFakeVectorStore()
	v := NewVectorizer(store, NewVectorIndex(vectors, &fakeEmbedder{}))

	res, err := v.Run(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 3, res.Inserted)
	assert.Len(t, vectors.points, 3)

	again, err := v.Run(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Candidates)
}

func TestVectorizerLeavesFailuresPending(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "alpha", "beta")
	embedder := &fakeEmbedder{failOn: map[string]bool{"beta": true}}
	v := NewVectorizer(store, NewVectorIndex(newFakeVectorStore(), embedder))

	res, err := v.Run(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []int64{2}, res.FailedIDs)

	pending, err := store.ListNeedingVectorization(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	embedder.failOn = nil
	res, err = v.Run(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Empty(t, res.FailedIDs)
}

func TestVectorizerRefreshesChangedProjects(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "alpha")
	vectors := newFakeVectorStore()
	v := NewVectorizer(store, NewVectorIndex(vectors, &fakeEmbedder{}))

	_, err := v.Run(ctx, 10, false)
	require.NoError(t, err)

	updated := domain.Project{ID: 1, Name: "alpha", FullName: "octo/alpha", Language: domain.LanguageGo, Description: "rewritten"}
	up, err := store.Upsert(ctx, &updated)
	require.NoError(t, err)
	require.True(t, up.Changed)

	res, err := v.Run(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pending)
	assert.Equal(t, 0, res.Refreshed)
	assert.NotContains(t, vectors.points[1].Payload.Document, "rewritten")

	res, err = v.Run(ctx, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refreshed)
	assert.Contains(t, vectors.points[1].Payload.Document, "Description: rewritten")

	res, err = v.Run(ctx, 10, true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
}

func TestVectorizerChangedProjectsDoNotStarveNewOnes(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	upsert := func(id int64, name string, stars int, readme string) {
		t.Helper()
		p := domain.Project{ID: id, Name: name, FullName: "octo/" + name, Language: domain.LanguageGo, Stars: stars, ReadmeContent: readme}
		_, err := store.Upsert(ctx, &p)
		require.NoError(t, err)
	}
	upsert(1, "big", 100, "v1")
	upsert(2, "bigger", 90, "v1")

	vectors := newFakeVectorStore()
	v := NewVectorizer(store, NewVectorIndex(vectors, &fakeEmbedder{}))
	_, err := v.Run(ctx, 2, false)
	require.NoError(t, err)

	upsert(1, "big", 100, "v2")
	upsert(2, "bigger", 90, "v2")
	upsert(3, "small", 1, "v1")

	res, err := v.Run(ctx, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Pending)
	assert.Contains(t, vectors.points, int64(3))

	small, err := store.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, small.VectorizedAt)

	res, err = v.Run(ctx, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Refreshed)
	assert.Equal(t, 0, res.Inserted)
}

// concurrentWriteStore applies write once, right after the first listing of
// new projects, like a collection run landing while the vectorizer embeds.
type concurrentWriteStore struct {
	*repository.MemoryStore
	write func()
}

func (s *concurrentWriteStore) ListNeedingVectorization(ctx context.Context, limit int, changed bool) ([]domain.Project, error) {
	out, err := s.MemoryStore.ListNeedingVectorization(ctx, limit, changed)
	if !changed && s.write != nil {
		s.write()
		s.write = nil
	}
	return out, err
}

func TestVectorizerKeepsWritesDuringRunPending(t *testing.T) {
	ctx := context.Background()
	store := &concurrentWriteStore{MemoryStore: seedStore(t, "alpha")}
	store.write = func() {
		time.Sleep(time.Millisecond)
		p := domain.Project{ID: 1, Name: "alpha", FullName: "octo/alpha", Language: domain.LanguageGo, Description: "moved on"}
		_, err := store.Upsert(ctx, &p)
		require.NoError(t, err)
	}
	v := NewVectorizer(store, NewVectorIndex(newFakeVectorStore(), &fakeEmbedder{}))

	res, err := v.Run(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	changed, err := store.ListNeedingVectorization(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, int64(1), changed[0].ID)
}

func TestVectorizerInitializeFailure(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.ensureErr = errEmbed
	v := NewVectorizer(seedStore(t, "alpha"), NewVectorIndex(vectors, &fakeEmbedder{}))

	_, err := v.Run(context.Background(), 10, false)
	assert.ErrorIs(t, err, errEmbed)
}

func TestVectorizerRemoveDeletesRowAndPoint(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "alpha", "beta")
	vectors := newFakeVectorStore()
	v := NewVectorizer(store, NewVectorIndex(vectors, &fakeEmbedder{}))

	_, err := v.Run(ctx, 10, false)
	require.NoError(t, err)
	require.Contains(t, vectors.points, int64(1))

	require.NoError(t, v.Remove(ctx, 1))
	assert.NotContains(t, vectors.points, int64(1))
	assert.Contains(t, vectors.points, int64(2))
	_, err = store.GetByID(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrProjectNotFound)

	assert.ErrorIs(t, v.Remove(ctx, 1), repository.ErrProjectNotFound)
}

func TestVectorizerRemoveKeepsRowWhenVectorDeleteFails(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "alpha")
	vectors := newFakeVectorStore()
	vectors.deleteErr = errors.New("qdrant unavailable")
	v := NewVectorizer(store, NewVectorIndex(vectors, &fakeEmbedder{}))

	require.Error(t, v.Remove(ctx, 1))
	_, err := store.GetByID(ctx, 1)
	assert.NoError(t, err)
}
