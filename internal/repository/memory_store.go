package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/timmy/helloreadme/internal/domain"
)

// MemoryStore is an in-process ProjectStore. It backs tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[int64]domain.Project
	now      func() time.Time

	// FailIDs makes Upsert fail for the listed ids.
	FailIDs map[int64]error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[int64]domain.Project),
		now:      time.Now,
		FailIDs:  make(map[int64]error),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Upsert(ctx context.Context, p *domain.Project) (UpsertResult, error) {
	if p == nil {
		return UpsertResult{}, errors.New("nil project")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.FailIDs[p.ID]; ok {
		return UpsertResult{}, err
	}
	for id, other := range s.projects {
		if id != p.ID && other.FullName == p.FullName {
			return UpsertResult{}, errors.New("UNIQUE constraint failed: github_projects.full_name")
		}
	}

	var prev *domain.Project
	if old, ok := s.projects[p.ID]; ok {
		prev = &old
	}
	res := prepareUpsert(prev, p, s.now().UTC())
	s.projects[p.ID] = cloneProject(*p)

	logUpsert(ctx, p, res)
	return res, nil
}

func (s *MemoryStore) BatchUpsert(ctx context.Context, projects []*domain.Project) domain.BatchResult {
	s.mu.RLock()
	existing := make(map[int64]bool)
	for _, id := range projectIDs(projects) {
		if _, ok := s.projects[id]; ok {
			existing[id] = true
		}
	}
	s.mu.RUnlock()
	return batchUpsert(ctx, projects, existing, s.Upsert)
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	c := cloneProject(p)
	return &c, nil
}

func (s *MemoryStore) GetByFullName(ctx context.Context, fullName string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.FullName == fullName {
			c := cloneProject(p)
			return &c, nil
		}
	}
	return nil, ErrProjectNotFound
}

func (s *MemoryStore) List(ctx context.Context, filter domain.ListFilter) ([]domain.Project, error) {
	out := s.filter(func(p *domain.Project) bool {
		if filter.Language != "" && string(p.Language) != filter.Language {
			return false
		}
		return filter.MinStars <= 0 || p.Stars >= filter.MinStars
	})
	sortProjects(out, domain.SortStars, domain.OrderDesc)

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	return page(out, filter.Offset, limit), nil
}

func (s *MemoryStore) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Project, error) {
	q = q.Normalize()
	text := strings.ToLower(strings.TrimSpace(q.Query))
	out := s.filter(func(p *domain.Project) bool {
		if q.Language != "" && string(p.Language) != q.Language {
			return false
		}
		if text == "" {
			return true
		}
		if strings.Contains(strings.ToLower(p.Name), text) || strings.Contains(strings.ToLower(p.Description), text) {
			return true
		}
		for _, t := range p.Topics {
			if strings.Contains(strings.ToLower(t), text) {
				return true
			}
		}
		return false
	})
	sortProjects(out, q.Sort, q.Order)
	return page(out, (q.Page-1)*q.PerPage, q.PerPage), nil
}

func (s *MemoryStore) ListByTopic(ctx context.Context, topic string, limit int) ([]domain.Project, error) {
	out := s.filter(func(p *domain.Project) bool {
		for _, t := range p.Topics {
			if t == topic {
				return true
			}
		}
		return false
	})
	sortProjects(out, domain.SortStars, domain.OrderDesc)
	if limit <= 0 {
		limit = 100
	}
	return page(out, 0, limit), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.projects)), nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.StoreStats{TotalProjects: int64(len(s.projects)), Languages: map[string]int64{}}
	for _, p := range s.projects {
		lang := string(p.Language)
		if lang == "" {
			lang = "Unknown"
		}
		stats.Languages[lang]++
		if stats.LatestCollection == nil || p.CollectedAt.After(*stats.LatestCollection) {
			t := p.CollectedAt
			stats.LatestCollection = &t
		}
	}
	return stats, nil
}

func (s *MemoryStore) TopicStats(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, p := range s.projects {
		for _, t := range p.Topics {
			counts[t]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) ListNeedingVectorization(ctx context.Context, limit int, changed bool) ([]domain.Project, error) {
	out := s.filter(func(p *domain.Project) bool {
		if p.VectorizedAt == nil {
			return !changed
		}
		return changed && p.ContentChangedAt != nil && p.ContentChangedAt.After(*p.VectorizedAt)
	})
	sortProjects(out, domain.SortStars, domain.OrderDesc)
	if limit <= 0 {
		limit = 100
	}
	return page(out, 0, limit), nil
}

func (s *MemoryStore) MarkVectorized(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	stamp := at.UTC()
	p.VectorizedAt = &stamp
	s.projects[id] = p
	return nil
}

func (s *MemoryStore) filter(keep func(p *domain.Project) bool) []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Project
	for _, p := range s.projects {
		if keep(&p) {
			out = append(out, cloneProject(p))
		}
	}
	return out
}

func page(projects []domain.Project, offset, limit int) []domain.Project {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(projects) {
		return nil
	}
	end := offset + limit
	if end > len(projects) {
		end = len(projects)
	}
	return projects[offset:end]
}

func cloneProject(p domain.Project) domain.Project {
	if p.Topics != nil {
		p.Topics = append(domain.StringArray{}, p.Topics...)
	}
	return p
}

var _ ProjectStore = (*MemoryStore)(nil)
var _ ProjectStore = (*ProjectRepository)(nil)
