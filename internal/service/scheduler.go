package service

import (
	"context"
	"time"

	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
)

// CollectFunc runs one collection request.
type CollectFunc func(ctx context.Context, req domain.CollectRequest) domain.CollectionResult

// Scheduler repeats a default search collection at a fixed interval.
type Scheduler struct {
	collect  CollectFunc
	interval time.Duration
	request  domain.CollectRequest
}

// NewScheduler creates a scheduler that runs req every interval.
func NewScheduler(collect CollectFunc, interval time.Duration, req domain.CollectRequest) *Scheduler {
	return &Scheduler{collect: collect, interval: interval, request: req}
}

// Run blocks until ctx is done, collecting once per interval. The first run
// happens after one full interval. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}
	ctx = logger.SetComponent(ctx, "scheduler")
	logger.CtxInfo(ctx, "Collection scheduler started: interval=%s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "Collection scheduler stopped")
			return nil
		case <-ticker.C:
			result := s.collect(ctx, s.request)
			logger.With(logger.Fields{
				logger.FieldStatus: result.Success,
			}).WithCount(result.TotalCollected).Info(ctx, "Scheduled collection finished: %s", result.Message)
		}
	}
}
