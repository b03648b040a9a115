package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/timmy/helloreadme/internal/api/handler"
	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/llm"
	"github.com/timmy/helloreadme/internal/repository"
	"github.com/timmy/helloreadme/internal/service"
)

type fakeCollector struct {
	mu      sync.Mutex
	release chan struct{}
	got     []domain.CollectRequest
}

func (f *fakeCollector) Collect(ctx context.Context, req domain.CollectRequest) domain.CollectionResult {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return domain.CollectionResult{Success: true, TotalCollected: 2, NewProjects: 2, Errors: []string{}, Message: "collected 2 projects"}
}

type fakeVectorizer struct {
	limit   int
	refresh bool
}

func (f *fakeVectorizer) Run(ctx context.Context, limit int, refreshChanged bool) (*domain.VectorizeResult, error) {
	f.limit, f.refresh = limit, refreshChanged
	return &domain.VectorizeResult{Candidates: 3, Inserted: 3}, nil
}

type fakeRemover struct {
	store   *repository.MemoryStore
	err     error
	removed []int64
}

func (f *fakeRemover) Remove(ctx context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if err := f.store.Delete(ctx, id); err != nil {
		return err
	}
	f.removed = append(f.removed, id)
	return nil
}

type fakeSearcher struct {
	lastText string
	lastLang string
	statsErr error
}

func (f *fakeSearcher) QueryLanguage(ctx context.Context, text string, topK int, language string) ([]domain.SimilarProject, error) {
	f.lastText, f.lastLang = text, language
	return []domain.SimilarProject{{ProjectID: 1, FullName: "octo/alpha", Similarity: 0.9}}, nil
}

func (f *fakeSearcher) Stats(ctx context.Context) (*domain.VectorStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return &domain.VectorStats{TotalVectors: 7, CollectionName: "github_projects"}, nil
}

type fakeAsker struct{ err error }

func (f *fakeAsker) Ask(ctx context.Context, question string, topK int) (*service.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.Answer{Question: question, Answer: "use octo/alpha", Provider: "deepseek"}, nil
}

type fakeProviders struct{ current string }

func (f *fakeProviders) Providers() []llm.ProviderInfo {
	return []llm.ProviderInfo{
		{Name: "deepseek", Available: true, Current: f.current == "deepseek"},
		{Name: "openai", Available: true, Current: f.current == "openai"},
	}
}

func (f *fakeProviders) Switch(name string) error {
	if name != "deepseek" && name != "openai" {
		return fmt.Errorf("%w: %s", llm.ErrUnknownProvider, name)
	}
	f.current = name
	return nil
}

type testServer struct {
	store     *repository.MemoryStore
	collector *fakeCollector
	vectors   *fakeVectorizer
	remover   *fakeRemover
	searcher  *fakeSearcher
	asker     *fakeAsker
	admin     *handler.AdminHandler
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:     repository.NewMemoryStore(),
		collector: &fakeCollector{},
		vectors:   &fakeVectorizer{},
		searcher:  &fakeSearcher{},
		asker:     &fakeAsker{},
	}
	ts.remover = &fakeRemover{store: ts.store}
	topics := []domain.StringArray{{"cli"}, {"cli", "web"}, {"cli"}}
	for i, name := range []string{"octo/alpha", "octo/beta", "octo/gamma"} {
		p := &domain.Project{ID: int64(i + 1), Name: name[5:], FullName: name, Language: domain.LanguageGo, Stars: (i + 1) * 10, Topics: topics[i]}
		if _, err := ts.store.Upsert(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	ts.admin = handler.NewAdminHandler(context.Background(), ts.collector, ts.vectors, &fakeProviders{current: "deepseek"})
	ts.handler = SetupRouter(&Handlers{
		Health:  handler.NewHealthHandler(ts.store),
		Project: handler.NewProjectHandler(ts.store, ts.remover),
		Search:  handler.NewSearchHandler(ts.store, ts.searcher, ts.asker, service.NewQueryExpansionService(nil)),
		Admin:   ts.admin,
	}, &config.ServerConfig{Mode: "test"})
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestListProjects(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/projects?per_page=2&min_stars=15", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp handler.ProjectListResponse
	decode(t, w, &resp)
	if resp.Total != 3 || resp.PerPage != 2 {
		t.Errorf("total=%d per_page=%d", resp.Total, resp.PerPage)
	}
	if len(resp.Projects) != 2 || resp.Projects[0].FullName != "octo/gamma" {
		t.Errorf("projects = %+v", resp.Projects)
	}
	if resp.Projects[0].Status != domain.ProjectStatusActive {
		t.Errorf("status = %q", resp.Projects[0].Status)
	}

	w = ts.do(http.MethodGet, "/api/v1/projects?q=beta", nil)
	decode(t, w, &resp)
	if len(resp.Projects) != 1 || resp.Projects[0].FullName != "octo/beta" {
		t.Errorf("search projects = %+v", resp.Projects)
	}

	resp = handler.ProjectListResponse{}
	decode(t, ts.do(http.MethodGet, "/api/v1/projects?topic=web", nil), &resp)
	if len(resp.Projects) != 1 || resp.Projects[0].FullName != "octo/beta" {
		t.Errorf("topic=web projects = %+v", resp.Projects)
	}

	resp = handler.ProjectListResponse{}
	decode(t, ts.do(http.MethodGet, "/api/v1/projects?topic=cli&per_page=2", nil), &resp)
	if len(resp.Projects) != 2 || resp.Projects[0].FullName != "octo/gamma" || resp.Projects[1].FullName != "octo/beta" {
		t.Errorf("topic=cli projects = %+v", resp.Projects)
	}
}

func TestDeleteProject(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodDelete, "/api/v1/projects/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d body=%s", w.Code, w.Body.String())
	}
	if len(ts.remover.removed) != 1 || ts.remover.removed[0] != 2 {
		t.Errorf("removed = %v, want [2]", ts.remover.removed)
	}
	if w := ts.do(http.MethodGet, "/api/v1/projects/2", nil); w.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", w.Code)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/projects/2", http.StatusNotFound},
		{"/api/v1/projects/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := ts.do(http.MethodDelete, tt.path, nil); w.Code != tt.want {
			t.Errorf("DELETE %s = %d, want %d", tt.path, w.Code, tt.want)
		}
	}

	ts.remover.err = errors.New("qdrant unavailable")
	if w := ts.do(http.MethodDelete, "/api/v1/projects/1", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("DELETE with failing index = %d, want 500", w.Code)
	}
}

func TestGetProject(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/projects/1", http.StatusOK},
		{"/api/v1/projects/99", http.StatusNotFound},
		{"/api/v1/projects/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := ts.do(http.MethodGet, tt.path, nil); w.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestCollectRunsInBackground(t *testing.T) {
	ts := newTestServer(t)
	ts.collector.release = make(chan struct{})

	w := ts.do(http.MethodPost, "/api/v1/collect", domain.CollectRequest{Query: "rag", MaxRepos: 5})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	w = ts.do(http.MethodPost, "/api/v1/collect", domain.CollectRequest{Type: domain.CollectionTypeUser, Username: "octo"})
	if w.Code != http.StatusConflict {
		t.Errorf("second collect = %d, want 409", w.Code)
	}

	var status handler.CollectStatusResponse
	decode(t, ts.do(http.MethodGet, "/api/v1/collect/status", nil), &status)
	if !status.IsRunning || status.Current == nil || status.Current.Type != domain.CollectionTypeSearch {
		t.Errorf("running status = %+v", status)
	}

	close(ts.collector.release)
	ts.admin.Wait()

	status = handler.CollectStatusResponse{}
	decode(t, ts.do(http.MethodGet, "/api/v1/collect/status", nil), &status)
	if status.IsRunning || status.LastResult == nil || status.LastResult.NewProjects != 2 {
		t.Errorf("final status = %+v", status)
	}
}

func TestCollectValidation(t *testing.T) {
	ts := newTestServer(t)
	bad := []domain.CollectRequest{
		{Type: "gist"},
		{Type: domain.CollectionTypeUser},
		{Type: domain.CollectionTypeOrg},
	}
	for _, req := range bad {
		if w := ts.do(http.MethodPost, "/api/v1/collect", req); w.Code != http.StatusBadRequest {
			t.Errorf("collect %+v = %d, want 400", req, w.Code)
		}
	}
}

func TestCollectPassesOutOfRangeMaxReposToCollector(t *testing.T) {
	for _, maxRepos := range []int{-3, 5000} {
		ts := newTestServer(t)
		w := ts.do(http.MethodPost, "/api/v1/collect", domain.CollectRequest{Query: "rag", MaxRepos: maxRepos})
		if w.Code != http.StatusAccepted {
			t.Errorf("max_repos=%d: status = %d body=%s", maxRepos, w.Code, w.Body.String())
			continue
		}
		ts.admin.Wait()

		ts.collector.mu.Lock()
		got := append([]domain.CollectRequest(nil), ts.collector.got...)
		ts.collector.mu.Unlock()
		if len(got) != 1 || got[0].MaxRepos != maxRepos {
			t.Errorf("max_repos=%d: collector got %+v", maxRepos, got)
		}
	}
}

func TestVectorize(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/v1/vectorize", map[string]any{"limit": 50, "refresh_changed": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if ts.vectors.limit != 50 || !ts.vectors.refresh {
		t.Errorf("vectorizer got limit=%d refresh=%v", ts.vectors.limit, ts.vectors.refresh)
	}

	if w := ts.do(http.MethodPost, "/api/v1/vectorize", nil); w.Code != http.StatusOK {
		t.Errorf("empty body vectorize = %d", w.Code)
	}
}

func TestSemanticSearchAndAsk(t *testing.T) {
	ts := newTestServer(t)

	if w := ts.do(http.MethodGet, "/api/v1/search/semantic", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d", w.Code)
	}
	w := ts.do(http.MethodGet, "/api/v1/search/semantic?q=vector+db&language=Go", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ts.searcher.lastText != "vector db" || ts.searcher.lastLang != "Go" {
		t.Errorf("searcher got %q/%q", ts.searcher.lastText, ts.searcher.lastLang)
	}

	w = ts.do(http.MethodPost, "/api/v1/ask", handler.AskRequest{Question: "a CMS"})
	var answer service.Answer
	decode(t, w, &answer)
	if w.Code != http.StatusOK || answer.Answer != "use octo/alpha" {
		t.Errorf("ask = %d %+v", w.Code, answer)
	}

	ts.asker.err = llm.ErrNoProvider
	if w := ts.do(http.MethodPost, "/api/v1/ask", handler.AskRequest{Question: "a CMS"}); w.Code != http.StatusBadGateway {
		t.Errorf("ask without provider = %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/api/v1/ask", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("ask without question = %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(t)

	var resp map[string]any
	decode(t, ts.do(http.MethodGet, "/api/v1/stats", nil), &resp)
	if resp["total_projects"].(float64) != 3 {
		t.Errorf("total_projects = %v", resp["total_projects"])
	}
	if _, ok := resp["database_size_human"]; !ok {
		t.Error("missing database_size_human")
	}
	if resp["vectors"] == nil {
		t.Error("missing vectors")
	}
	topics, _ := resp["topics"].([]any)
	if len(topics) != 2 {
		t.Fatalf("topics = %v", resp["topics"])
	}
	if first := topics[0].(map[string]any); first["topic"] != "cli" || first["count"].(float64) != 3 {
		t.Errorf("top topic = %v", first)
	}

	ts.searcher.statsErr = errors.New("qdrant down")
	resp = nil
	decode(t, ts.do(http.MethodGet, "/api/v1/stats", nil), &resp)
	if resp["vector_error"] != "qdrant down" {
		t.Errorf("vector_error = %v", resp["vector_error"])
	}
}

func TestProviders(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/llm/switch", handler.SwitchProviderRequest{Provider: "openai"})
	if w.Code != http.StatusOK {
		t.Fatalf("switch = %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/api/v1/llm/switch", handler.SwitchProviderRequest{Provider: "bard"}); w.Code != http.StatusNotFound {
		t.Errorf("switch unknown = %d", w.Code)
	}

	var resp struct {
		Providers []llm.ProviderInfo `json:"providers"`
	}
	decode(t, ts.do(http.MethodGet, "/api/v1/llm/providers", nil), &resp)
	if len(resp.Providers) != 2 || !resp.Providers[1].Current {
		t.Errorf("providers = %+v", resp.Providers)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
