package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/repository"
)

const defaultVectorizeLimit = 100

// Vectorizer moves stored projects into the vector index. New projects go
// through the skip-if-exists batch path; projects whose content changed since
// their last vectorization are re-embedded only when asked to.
type Vectorizer struct {
	store repository.ProjectStore
	index *VectorIndex
	now   func() time.Time
}

// NewVectorizer creates a new vectorizer.
func NewVectorizer(store repository.ProjectStore, index *VectorIndex) *Vectorizer {
	return &Vectorizer{store: store, index: index, now: time.Now}
}

// Run vectorizes up to limit projects that need it.
func (v *Vectorizer) Run(ctx context.Context, limit int, refreshChanged bool) (*domain.VectorizeResult, error) {
	if limit <= 0 {
		limit = defaultVectorizeLimit
	}
	ctx = logger.SetRunID(ctx, uuid.NewString())
	ctx = logger.SetComponent(ctx, "vectorizer")
	start := time.Now()

	if err := v.index.Initialize(ctx); err != nil {
		return nil, err
	}

	// Stamped before listing: content written while the run embeds stays newer
	// than vectorized_at and is offered again next run.
	stamp := v.now()

	fresh, err := v.store.ListNeedingVectorization(ctx, limit, false)
	if err != nil {
		return nil, fmt.Errorf("list projects needing vectorization: %w", err)
	}
	changedLimit := limit
	if refreshChanged {
		changedLimit = limit - len(fresh)
	}
	var changed []domain.Project
	if changedLimit > 0 {
		changed, err = v.store.ListNeedingVectorization(ctx, changedLimit, true)
		if err != nil {
			return nil, fmt.Errorf("list changed projects: %w", err)
		}
	}

	res := &domain.VectorizeResult{Candidates: len(fresh)}
	if refreshChanged {
		res.Candidates += len(changed)
	}

	if len(fresh) > 0 {
		batch, err := v.index.UpsertBatch(ctx, fresh)
		if err != nil {
			return nil, err
		}
		res.Inserted = batch.Inserted
		res.Skipped = batch.Skipped
		res.Failed += batch.Failed
		res.FailedIDs = append(res.FailedIDs, batch.FailedIDs...)

		failed := make(map[int64]bool, len(batch.FailedIDs))
		for _, id := range batch.FailedIDs {
			failed[id] = true
		}
		for _, p := range fresh {
			if !failed[p.ID] {
				v.mark(ctx, p.ID, stamp)
			}
		}
	}

	if !refreshChanged {
		res.Pending = len(changed)
	} else {
		for i := range changed {
			p := &changed[i]
			if err := v.index.UpsertOne(ctx, p); err != nil {
				logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, p.ID).Error("Failed to refresh project vector")
				res.Failed++
				res.FailedIDs = append(res.FailedIDs, p.ID)
				continue
			}
			res.Refreshed++
			v.mark(ctx, p.ID, stamp)
		}
	}

	logger.With(logger.Fields{
		"inserted":  res.Inserted,
		"skipped":   res.Skipped,
		"refreshed": res.Refreshed,
		"pending":   res.Pending,
		"failed":    res.Failed,
	}).WithCount(res.Candidates).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Vectorization run finished")
	return res, nil
}

// Remove deletes a project and its vector. The vector goes first so a failure
// leaves the row in place for a retry instead of an orphaned point.
func (v *Vectorizer) Remove(ctx context.Context, id int64) error {
	p, err := v.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := v.index.Initialize(ctx); err != nil {
		return err
	}
	if err := v.index.Remove(ctx, id); err != nil {
		return err
	}
	if err := v.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldProjectID: id,
		logger.FieldFullName:  p.FullName,
	}).Info("Project removed")
	return nil
}

// mark records the vectorization time. A failure here only means the project
// is offered again next run, where skip-if-exists makes it a no-op.
func (v *Vectorizer) mark(ctx context.Context, id int64, at time.Time) {
	if err := v.store.MarkVectorized(ctx, id, at); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, id).Warn("Failed to mark project vectorized")
	}
}
