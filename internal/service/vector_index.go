package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/repository"
)

const (
	defaultTopK = 10
	maxTopK     = 100
)

// ErrIndexNotReady is returned when the index is used before Initialize succeeds.
var ErrIndexNotReady = errors.New("vector index not initialized")

// VectorStore is the nearest-neighbor backend. QdrantRepository implements it.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []repository.ProjectPoint) error
	CountByProjectID(ctx context.Context, projectID int64) (uint64, error)
	Search(ctx context.Context, vector []float32, topK int, language string) ([]repository.SearchResult, error)
	Count(ctx context.Context) (uint64, error)
	Delete(ctx context.Context, projectID int64) error
	CollectionName() string
	Location() string
}

// VectorIndex embeds projects and stores one vector per project.
type VectorIndex struct {
	store    VectorStore
	embedder Embedder

	mu    sync.Mutex
	ready bool
}

// NewVectorIndex creates a new vector index over store and embedder.
func NewVectorIndex(store VectorStore, embedder Embedder) *VectorIndex {
	return &VectorIndex{store: store, embedder: embedder}
}

// Initialize creates the collection if needed. It is safe to call repeatedly.
func (v *VectorIndex) Initialize(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ready {
		return nil
	}
	if err := v.store.EnsureCollection(ctx); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to initialize vector index")
		return fmt.Errorf("initialize vector index: %w", err)
	}
	v.ready = true
	logger.FromContext(ctx).WithFields(logger.Fields{
		"collection": v.store.CollectionName(),
		"model":      v.embedder.GetModel(),
	}).Info("Vector index ready")
	return nil
}

func (v *VectorIndex) checkReady() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.ready {
		return ErrIndexNotReady
	}
	return nil
}

// UpsertOne embeds p and writes its vector, replacing any previous one.
func (v *VectorIndex) UpsertOne(ctx context.Context, p *domain.Project) error {
	if err := v.checkReady(); err != nil {
		return err
	}

	text := BuildProjectText(p)
	vectors, err := v.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed %s: %w", p.FullName, err)
	}
	if err := v.store.Upsert(ctx, []repository.ProjectPoint{newProjectPoint(p, text, vectors[0])}); err != nil {
		return fmt.Errorf("store vector for %s: %w", p.FullName, err)
	}
	logger.FromContext(ctx).WithField(logger.FieldFullName, p.FullName).Debug("Project vectorized")
	return nil
}

// Remove deletes the vector of one project. Removing a missing point is not an error.
func (v *VectorIndex) Remove(ctx context.Context, projectID int64) error {
	if err := v.checkReady(); err != nil {
		return err
	}
	if err := v.store.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("delete vector of project %d: %w", projectID, err)
	}
	return nil
}

// UpsertBatch inserts vectors for projects not yet in the index. Projects that
// already have a vector are skipped without re-embedding. Failures are counted
// per item and never abort the batch.
func (v *VectorIndex) UpsertBatch(ctx context.Context, projects []domain.Project) (domain.VectorBatchResult, error) {
	res := domain.VectorBatchResult{Total: len(projects)}
	if err := v.checkReady(); err != nil {
		return res, err
	}

	for i := range projects {
		p := &projects[i]

		existing, err := v.store.CountByProjectID(ctx, p.ID)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, p.ID).Error("Failed to check vector existence")
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, p.ID)
			continue
		}
		if existing > 0 {
			res.Skipped++
			continue
		}

		if err := v.UpsertOne(ctx, p); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, p.ID).Error("Failed to vectorize project")
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, p.ID)
			continue
		}
		res.Inserted++
	}

	logger.With(logger.Fields{
		"inserted": res.Inserted,
		"skipped":  res.Skipped,
		"failed":   res.Failed,
	}).WithCount(res.Total).Info(ctx, "Batch vectorization finished")
	return res, nil
}

// Query returns the topK projects nearest to text, nearest first.
func (v *VectorIndex) Query(ctx context.Context, text string, topK int) ([]domain.SimilarProject, error) {
	return v.QueryLanguage(ctx, text, topK, "")
}

// QueryLanguage is Query restricted to one language. An empty language matches all.
func (v *VectorIndex) QueryLanguage(ctx context.Context, text string, topK int, language string) ([]domain.SimilarProject, error) {
	if err := v.checkReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("query text is empty")
	}
	topK = clampTopK(topK)

	vector, err := v.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := v.store.Search(ctx, vector, topK, language)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}

	results := make([]domain.SimilarProject, 0, len(hits))
	for _, hit := range hits {
		distance := cosineDistance(hit.Score)
		results = append(results, domain.SimilarProject{
			ProjectID:  hit.Payload.ProjectID,
			Name:       hit.Payload.Name,
			FullName:   hit.Payload.FullName,
			Language:   hit.Payload.Language,
			Stars:      hit.Payload.Stars,
			Forks:      hit.Payload.Forks,
			Topics:     hit.Payload.Topics,
			Similarity: SimilarityFromDistance(distance),
			Distance:   distance,
			Document:   hit.Payload.Document,
		})
	}
	return results, nil
}

// Stats reports the vector count and where the collection lives.
func (v *VectorIndex) Stats(ctx context.Context) (*domain.VectorStats, error) {
	stats := &domain.VectorStats{
		CollectionName: v.store.CollectionName(),
		Path:           v.store.Location(),
	}
	if err := v.checkReady(); err != nil {
		return stats, err
	}
	count, err := v.store.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count vectors: %w", err)
	}
	stats.TotalVectors = count
	return stats, nil
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return defaultTopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}

// cosineDistance converts a cosine similarity score into a non-negative distance.
func cosineDistance(score float32) float64 {
	d := 1 - float64(score)
	if d < 0 {
		return 0
	}
	return d
}

// SimilarityFromDistance maps a distance to (0, 1]; distance 0 gives 1.
func SimilarityFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// BuildProjectText renders the labeled text a project is embedded from.
// Segments appear in a fixed order and empty fields are left out.
func BuildProjectText(p *domain.Project) string {
	segments := make([]string, 0, 9)
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			segments = append(segments, label+": "+value)
		}
	}

	add("Name", p.Name)
	add("Full name", p.FullName)
	add("Description", p.Description)
	add("Language", string(p.Language))
	add("Topics", strings.Join(p.Topics, ", "))
	if p.Stars > 0 {
		add("Stars", strconv.Itoa(p.Stars))
	}
	if p.Forks > 0 {
		add("Forks", strconv.Itoa(p.Forks))
	}
	add("Created", formatTime(p.CreatedAt))
	add("Updated", formatTime(p.UpdatedAt))

	return strings.Join(segments, " | ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func newProjectPoint(p *domain.Project, text string, vector []float32) repository.ProjectPoint {
	return repository.ProjectPoint{
		Vector: vector,
		Payload: repository.ProjectPayload{
			ProjectID: p.ID,
			Name:      p.Name,
			FullName:  p.FullName,
			Language:  string(p.Language),
			Stars:     p.Stars,
			Forks:     p.Forks,
			Topics:    p.Topics,
			CreatedAt: formatTime(p.CreatedAt),
			UpdatedAt: formatTime(p.UpdatedAt),
			Document:  text,
		},
	}
}

var _ VectorStore = (*repository.QdrantRepository)(nil)
