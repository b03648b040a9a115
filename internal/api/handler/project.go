package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/repository"
)

// ProjectRemover deletes a project together with its vector.
type ProjectRemover interface {
	Remove(ctx context.Context, id int64) error
}

// ProjectHandler serves stored projects.
type ProjectHandler struct {
	store   repository.ProjectStore
	remover ProjectRemover
}

// NewProjectHandler creates a new project handler.
// Parameters:
//   - store: project store.
//   - remover: deletes a project row and its vector.
// Returns:
//   - *ProjectHandler: initialized handler.
func NewProjectHandler(store repository.ProjectStore, remover ProjectRemover) *ProjectHandler {
	return &ProjectHandler{store: store, remover: remover}
}

// ProjectListResponse is one page of projects.
type ProjectListResponse struct {
	Projects []domain.ProjectView `json:"projects"`
	Page     int                  `json:"page"`
	PerPage  int                  `json:"per_page"`
	Total    int64                `json:"total"`
}

// ListProjects handles GET /api/v1/projects.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	minStars, _ := strconv.Atoi(c.DefaultQuery("min_stars", "0"))
	q := domain.SearchQuery{
		Query:    c.Query("q"),
		Language: c.Query("language"),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
		Page:     page,
		PerPage:  perPage,
	}.Normalize()

	var (
		projects []domain.Project
		err      error
	)
	switch topic := c.Query("topic"); {
	case q.Query != "":
		projects, err = h.store.Search(ctx, q)
	case topic != "":
		projects, err = h.store.ListByTopic(ctx, topic, q.PerPage)
	default:
		projects, err = h.store.List(ctx, domain.ListFilter{
			Limit:    q.PerPage,
			Offset:   (q.Page - 1) * q.PerPage,
			Language: q.Language,
			MinStars: minStars,
		})
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list projects: " + err.Error(),
		})
		return
	}

	total, err := h.store.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count projects: " + err.Error(),
		})
		return
	}

	views := make([]domain.ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, domain.NewProjectView(p))
	}
	c.JSON(http.StatusOK, ProjectListResponse{
		Projects: views,
		Page:     q.Page,
		PerPage:  q.PerPage,
		Total:    total,
	})
}

// GetProject handles GET /api/v1/projects/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Project ID must be an integer",
		})
		return
	}

	p, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Project not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get project: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, domain.NewProjectView(*p))
}

// DeleteProject handles DELETE /api/v1/projects/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Project ID must be an integer",
		})
		return
	}

	err = h.remover.Remove(c.Request.Context(), id)
	if errors.Is(err, repository.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Project not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete project: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": id,
	})
}
