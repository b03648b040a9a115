package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/repository"
	"github.com/timmy/helloreadme/internal/service"
)

// SemanticSearcher is the query side of the vector index.
type SemanticSearcher interface {
	QueryLanguage(ctx context.Context, text string, topK int, language string) ([]domain.SimilarProject, error)
	Stats(ctx context.Context) (*domain.VectorStats, error)
}

// Asker answers questions from retrieved projects.
type Asker interface {
	Ask(ctx context.Context, question string, topK int) (*service.Answer, error)
}

// SearchHandler handles semantic search, Q&A and stats endpoints.
type SearchHandler struct {
	store    repository.ProjectStore
	index    SemanticSearcher
	rag      Asker
	expander *service.QueryExpansionService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - store: project store, for stats.
//   - index: vector index.
//   - rag: question answering service.
//   - expander: optional query expansion; nil disables it.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(store repository.ProjectStore, index SemanticSearcher, rag Asker, expander *service.QueryExpansionService) *SearchHandler {
	return &SearchHandler{
		store:    store,
		index:    index,
		rag:      rag,
		expander: expander,
	}
}

// SemanticSearch handles GET /api/v1/search/semantic.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SemanticSearch(c *gin.Context) {
	ctx := c.Request.Context()

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "10"))

	expanded := query
	if c.Query("expand") == "true" && h.expander.IsEnabled() {
		expanded = h.expander.ExpandWithFallback(ctx, query)
		if expanded != query {
			logger.CtxDebug(ctx, "Query expanded: %q -> %q", query, expanded)
		}
	}

	results, err := h.index.QueryLanguage(ctx, expanded, topK, c.Query("language"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":          query,
		"expanded_query": expanded,
		"results":        results,
		"total":          len(results),
	})
}

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k" binding:"omitempty,min=1,max=20"`
}

// Ask handles POST /api/v1/ask.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	answer, err := h.rag.Ask(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to answer: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, answer)
}

const statsTopTopics = 20

// StatsResponse combines store and vector index statistics.
type StatsResponse struct {
	*domain.StoreStats
	DatabaseSizeHuman string              `json:"database_size_human"`
	Topics            []domain.TopicCount `json:"topics"`
	Vectors           *domain.VectorStats `json:"vectors,omitempty"`
	VectorError       string              `json:"vector_error,omitempty"`
}

// GetStats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	resp := StatsResponse{
		StoreStats:        stats,
		DatabaseSizeHuman: humanize.Bytes(uint64(stats.DatabaseSize)),
	}
	topics, err := h.store.TopicStats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get topic stats: " + err.Error(),
		})
		return
	}
	resp.Topics = domain.TopTopics(topics, statsTopTopics)
	if vectors, err := h.index.Stats(ctx); err != nil {
		resp.VectorError = err.Error()
	} else {
		resp.Vectors = vectors
	}

	c.JSON(http.StatusOK, resp)
}
