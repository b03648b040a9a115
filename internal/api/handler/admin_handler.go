package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/llm"
	"github.com/timmy/helloreadme/internal/logger"
)

// CollectRunner runs one collection request.
type CollectRunner interface {
	Collect(ctx context.Context, req domain.CollectRequest) domain.CollectionResult
}

// VectorizeRunner moves stored projects into the vector index.
type VectorizeRunner interface {
	Run(ctx context.Context, limit int, refreshChanged bool) (*domain.VectorizeResult, error)
}

// ProviderSwitcher exposes LLM provider selection.
type ProviderSwitcher interface {
	Providers() []llm.ProviderInfo
	Switch(name string) error
}

// AdminHandler handles collection, vectorization and provider operations.
type AdminHandler struct {
	collector  CollectRunner
	vectorizer VectorizeRunner
	providers  ProviderSwitcher

	// base is the lifetime context for background runs; it outlives requests.
	base context.Context

	// Collection job state
	mu          sync.RWMutex
	isRunning   bool
	current     *domain.CollectRequest
	lastResult  *domain.CollectionResult
	lastRunTime time.Time
	done        chan struct{}
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - base: context bounding background collection runs.
//   - collector: collection service.
//   - vectorizer: vectorization service.
//   - providers: LLM provider manager.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(base context.Context, collector CollectRunner, vectorizer VectorizeRunner, providers ProviderSwitcher) *AdminHandler {
	return &AdminHandler{
		base:       base,
		collector:  collector,
		vectorizer: vectorizer,
		providers:  providers,
	}
}

// CollectStatusResponse represents the collection job state.
type CollectStatusResponse struct {
	IsRunning   bool                     `json:"is_running"`
	Current     *domain.CollectRequest   `json:"current,omitempty"`
	LastRunTime string                   `json:"last_run_time,omitempty"`
	LastResult  *domain.CollectionResult `json:"last_result,omitempty"`
}

// AdminPage serves the admin dashboard HTML page.
func (h *AdminHandler) AdminPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, adminPageHTML)
}

func validateCollectRequest(req *domain.CollectRequest) error {
	switch req.Type {
	case "":
		req.Type = domain.CollectionTypeSearch
	case domain.CollectionTypeSearch:
	case domain.CollectionTypeUser:
		if req.Username == "" {
			return errors.New("username is required for user collection")
		}
	case domain.CollectionTypeOrg:
		if req.Org == "" {
			return errors.New("org is required for org collection")
		}
	default:
		return errors.New("type must be one of search, user, org")
	}
	// max_repos is clamped by the collector, not rejected.
	return nil
}

// TriggerCollect handles POST /api/v1/collect. The run continues in the
// background; only one run may be active at a time.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerCollect(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid collect request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateCollectRequest(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Collect request rejected: already running, type=%s, client_ip=%s",
			req.Type, c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Collection is already running"})
		return
	}
	h.isRunning = true
	h.current = &req
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting collection: type=%s, query=%q, language=%s, max_repos=%d",
		req.Type, req.Query, req.Language, req.MaxRepos)

	runCtx := logger.SetRequestID(h.base, logger.GetRequestID(ctx))
	go func() {
		defer close(done)
		start := time.Now()
		result := h.collector.Collect(runCtx, req)

		h.mu.Lock()
		h.isRunning = false
		h.current = nil
		h.lastResult = &result
		h.lastRunTime = time.Now()
		h.mu.Unlock()

		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldCount:      result.TotalCollected,
		}).Info(runCtx, "Collection finished: success=%v, new=%d, updated=%d, errors=%d",
			result.Success, result.NewProjects, result.UpdatedProjects, len(result.Errors))
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Collection started",
		"request": req,
	})
}

// Wait blocks until the current background run, if any, finishes.
func (h *AdminHandler) Wait() {
	h.mu.RLock()
	done := h.done
	h.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// GetCollectStatus returns the current collection status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) GetCollectStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := CollectStatusResponse{
		IsRunning:  h.isRunning,
		Current:    h.current,
		LastResult: h.lastResult,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// VectorizeRequest is the body of POST /api/v1/vectorize.
type VectorizeRequest struct {
	Limit          int  `json:"limit" binding:"omitempty,min=1,max=10000"`
	RefreshChanged bool `json:"refresh_changed"`
}

// TriggerVectorize handles POST /api/v1/vectorize.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) TriggerVectorize(c *gin.Context) {
	var req VectorizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.vectorizer.Run(c.Request.Context(), req.Limit, req.RefreshChanged)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Vectorization failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListProviders handles GET /api/v1/llm/providers.
func (h *AdminHandler) ListProviders(c *gin.Context) {
	providers := h.providers.Providers()
	c.JSON(http.StatusOK, gin.H{
		"providers": providers,
		"total":     len(providers),
	})
}

// SwitchProviderRequest is the body of POST /api/v1/llm/switch.
type SwitchProviderRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// SwitchProvider handles POST /api/v1/llm/switch.
func (h *AdminHandler) SwitchProvider(c *gin.Context) {
	var req SwitchProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.providers.Switch(req.Provider); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrUnknownProvider) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logger.CtxInfo(c.Request.Context(), "LLM provider switched: provider=%s", req.Provider)
	c.JSON(http.StatusOK, gin.H{"current": req.Provider})
}
