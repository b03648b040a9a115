package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v82/github"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/repository"
	"github.com/timmy/helloreadme/internal/source"
	"github.com/timmy/helloreadme/internal/source/ghsource"
)

func repo(id int64, fullName string) *github.Repository {
	owner, name := fullName, fullName
	for i := range fullName {
		if fullName[i] == '/' {
			owner, name = fullName[:i], fullName[i+1:]
			break
		}
	}
	return &github.Repository{
		ID:              github.Ptr(id),
		Name:            github.Ptr(name),
		FullName:        github.Ptr(fullName),
		Language:        github.Ptr("Go"),
		StargazersCount: github.Ptr(int(id) * 10),
		Owner:           &github.User{Login: github.Ptr(owner), Type: github.Ptr("User")},
	}
}

type fakeSource struct {
	id     string
	pages  [][]*github.Repository
	total  int
	failAt int
	calls  int
}

func newFakeSource(id string, pages ...[]*github.Repository) *fakeSource {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	return &fakeSource{id: id, pages: pages, total: total, failAt: -1}
}

func (s *fakeSource) GetSourceID() string    { return s.id }
func (s *fakeSource) GetDisplayName() string { return s.id }

func (s *fakeSource) FetchBatch(ctx context.Context, cursor string, limit int) (*source.Batch, error) {
	s.calls++
	page := 0
	if cursor != "" {
		page, _ = strconv.Atoi(cursor)
	}
	if page == s.failAt {
		return nil, fmt.Errorf("page %d unavailable", page)
	}
	if page >= len(s.pages) {
		return &source.Batch{Total: s.total}, nil
	}
	repos := s.pages[page]
	if limit > 0 && len(repos) > limit {
		repos = repos[:limit]
	}
	next := ""
	if page+1 < len(s.pages) {
		next = strconv.Itoa(page + 1)
	}
	return &source.Batch{Repos: repos, NextCursor: next, Total: s.total}, nil
}

type fakeForge struct {
	search    *fakeSource
	user      *fakeSource
	org       *fakeSource
	readmes   map[string]string
	readmeErr error

	query, sort, order string
	username, orgName  string
}

func (f *fakeForge) Search(query, sort, order string) source.Source {
	f.query, f.sort, f.order = query, sort, order
	return f.search
}

func (f *fakeForge) User(username string) source.Source {
	f.username = username
	return f.user
}

func (f *fakeForge) Org(name string) source.Source {
	f.orgName = name
	return f.org
}

func (f *fakeForge) FetchReadme(ctx context.Context, owner, repo string) (*source.Readme, error) {
	if f.readmeErr != nil {
		return nil, f.readmeErr
	}
	content, ok := f.readmes[owner+"/"+repo]
	if !ok {
		return nil, nil
	}
	return &source.Readme{Content: content, Encoding: "utf-8"}, nil
}

func (f *fakeForge) RateLimits(ctx context.Context) (*ghsource.RateLimits, error) {
	return &ghsource.RateLimits{Core: ghsource.Rate{Limit: 5000, Remaining: 4000}}, nil
}

// countingStore records BatchUpsert calls and can simulate an unreachable store.
type countingStore struct {
	*repository.MemoryStore
	batches []int
	pingErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: repository.NewMemoryStore()}
}

func (s *countingStore) Ping(ctx context.Context) error { return s.pingErr }

func (s *countingStore) BatchUpsert(ctx context.Context, projects []*domain.Project) domain.BatchResult {
	s.batches = append(s.batches, len(projects))
	return s.MemoryStore.BatchUpsert(ctx, projects)
}

var errEmbed = errors.New("embedding backend down")

// fakeEmbedder returns a fixed vector per text and fails for texts listed in failOn.
type fakeEmbedder struct {
	failOn  map[string]bool
	queries []string
	docs    int
}

func (e *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		for key := range e.failOn {
			if containsFold(t, key) {
				return nil, errEmbed
			}
		}
		e.docs++
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.queries = append(e.queries, text)
	if e.failOn[text] {
		return nil, errEmbed
	}
	return []float32{1, 0, 0}, nil
}

func (e *fakeEmbedder) GetModel() string { return "fake-embed" }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// fakeVectorStore keeps points in a map keyed by project ID and serves
// search hits from a preset score list.
type fakeVectorStore struct {
	points    map[int64]repository.ProjectPoint
	scores    []float32
	ensureErr error
	deleteErr error
	ensured   int
	lastTopK  int
	lastLang  string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{points: make(map[int64]repository.ProjectPoint)}
}

func (s *fakeVectorStore) EnsureCollection(ctx context.Context) error {
	s.ensured++
	return s.ensureErr
}

func (s *fakeVectorStore) Upsert(ctx context.Context, points []repository.ProjectPoint) error {
	for _, p := range points {
		s.points[p.Payload.ProjectID] = p
	}
	return nil
}

func (s *fakeVectorStore) CountByProjectID(ctx context.Context, projectID int64) (uint64, error) {
	if _, ok := s.points[projectID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *fakeVectorStore) Search(ctx context.Context, vector []float32, topK int, language string) ([]repository.SearchResult, error) {
	s.lastTopK, s.lastLang = topK, language
	out := make([]repository.SearchResult, 0, len(s.scores))
	for i, score := range s.scores {
		if i >= topK {
			break
		}
		id := int64(i + 1)
		out = append(out, repository.SearchResult{
			ID:    repository.PointID(id),
			Score: score,
			Payload: repository.ProjectPayload{
				ProjectID: id,
				FullName:  fmt.Sprintf("octo/p%d", id),
			},
		})
	}
	return out, nil
}

func (s *fakeVectorStore) Count(ctx context.Context) (uint64, error) {
	return uint64(len(s.points)), nil
}

func (s *fakeVectorStore) Delete(ctx context.Context, projectID int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.points, projectID)
	return nil
}

func (s *fakeVectorStore) CollectionName() string { return "projects" }
func (s *fakeVectorStore) Location() string       { return "memory://projects" }
