package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
)

var (
	// ErrProjectNotFound is returned by point lookups when no record matches.
	ErrProjectNotFound = errors.New("project not found")

	// ErrBackupUnsupported is returned when the backing store is not a single file.
	ErrBackupUnsupported = errors.New("backup and restore require the sqlite driver")
)

// ProjectStore is the persistent keyed storage for collected projects.
// ProjectRepository is the production implementation; MemoryStore backs tests.
type ProjectStore interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, p *domain.Project) (UpsertResult, error)
	BatchUpsert(ctx context.Context, projects []*domain.Project) domain.BatchResult
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	GetByFullName(ctx context.Context, fullName string) (*domain.Project, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Project, error)
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.Project, error)
	ListByTopic(ctx context.Context, topic string, limit int) ([]domain.Project, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*domain.StoreStats, error)
	TopicStats(ctx context.Context) (map[string]int64, error)
	// ListNeedingVectorization lists never-indexed projects, or with changed
	// set, indexed projects whose content changed after indexing.
	ListNeedingVectorization(ctx context.Context, limit int, changed bool) ([]domain.Project, error)
	MarkVectorized(ctx context.Context, id int64, at time.Time) error
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Created bool
	// Changed is the change detector's verdict against the previous row; always
	// true for new rows. Informational only, the write happens regardless.
	Changed       bool
	ChangedFields []string
}

// prepareUpsert stamps write-time bookkeeping on next and carries the vectorizer
// columns over from prev.
func prepareUpsert(prev, next *domain.Project, now time.Time) UpsertResult {
	res := UpsertResult{
		Created:       prev == nil,
		ChangedFields: domain.ChangedFields(prev, next),
	}
	res.Changed = len(res.ChangedFields) > 0

	if next.CollectedAt.IsZero() {
		next.CollectedAt = now
	}
	next.LastChecked = now
	if next.Topics == nil {
		next.Topics = domain.StringArray{}
	}

	if prev != nil {
		next.VectorizedAt = prev.VectorizedAt
		next.ContentChangedAt = prev.ContentChangedAt
	}
	if res.Changed || next.ContentChangedAt == nil {
		stamp := now
		next.ContentChangedAt = &stamp
	}
	return res
}

func logUpsert(ctx context.Context, p *domain.Project, res UpsertResult) {
	if res.Created || !res.Changed {
		return
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldProjectID: p.ID,
		logger.FieldFullName:  p.FullName,
		"changed_fields":      res.ChangedFields,
	}).Info("Project content changed")
}

// batchUpsert writes each project individually so one failure does not block the
// rest. existing is the set of IDs already stored before the batch started.
func batchUpsert(
	ctx context.Context,
	projects []*domain.Project,
	existing map[int64]bool,
	upsert func(context.Context, *domain.Project) (UpsertResult, error),
) domain.BatchResult {
	var res domain.BatchResult
	seen := make(map[int64]bool, len(existing)+len(projects))
	for id := range existing {
		seen[id] = true
	}

	for _, p := range projects {
		if p == nil {
			continue
		}
		isUpdate := seen[p.ID]
		seen[p.ID] = true

		if _, err := upsert(ctx, p); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("upsert %s (id %d): %v", p.FullName, p.ID, err))
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, p.ID).
				Error("Failed to upsert project in batch")
			continue
		}
		if isUpdate {
			res.Updated++
		} else {
			res.New++
		}
	}
	return res
}

func projectIDs(projects []*domain.Project) []int64 {
	ids := make([]int64, 0, len(projects))
	for _, p := range projects {
		if p != nil {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// sortProjects orders by the coerced sort key, then id descending.
func sortProjects(projects []domain.Project, sortKey, order string) {
	key := func(p *domain.Project) int64 {
		switch sortKey {
		case domain.SortForks:
			return int64(p.Forks)
		case domain.SortUpdated:
			if p.UpdatedAt.IsZero() {
				return 0
			}
			return p.UpdatedAt.Unix()
		default:
			return int64(p.Stars)
		}
	}
	asc := order == domain.OrderAsc
	sort.SliceStable(projects, func(i, j int) bool {
		ki, kj := key(&projects[i]), key(&projects[j])
		if ki != kj {
			if asc {
				return ki < kj
			}
			return ki > kj
		}
		return projects[i].ID > projects[j].ID
	})
}

const exportPageSize = 500

// ExportJSON writes every stored project as a JSON array and returns the count.
func ExportJSON(ctx context.Context, store ProjectStore, w io.Writer) (int, error) {
	var all []domain.Project
	for offset := 0; ; offset += exportPageSize {
		page, err := store.List(ctx, domain.ListFilter{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return 0, fmt.Errorf("export: list projects: %w", err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			break
		}
	}
	if all == nil {
		all = []domain.Project{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return 0, fmt.Errorf("export: encode: %w", err)
	}
	return len(all), nil
}

// ImportJSON reads a JSON array produced by ExportJSON and batch-upserts it.
func ImportJSON(ctx context.Context, store ProjectStore, r io.Reader) (domain.BatchResult, error) {
	var projects []*domain.Project
	if err := json.NewDecoder(r).Decode(&projects); err != nil {
		return domain.BatchResult{}, fmt.Errorf("import: decode: %w", err)
	}
	return store.BatchUpsert(ctx, projects), nil
}
