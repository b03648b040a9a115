package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/helloreadme/internal/api/handler"
	"github.com/timmy/helloreadme/internal/api/middleware"
	"github.com/timmy/helloreadme/internal/config"
)

// Handlers bundles the route handlers.
type Handlers struct {
	Health  *handler.HealthHandler
	Project *handler.ProjectHandler
	Search  *handler.SearchHandler
	Admin   *handler.AdminHandler
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(h *Handlers, cfg *config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Logger runs first so recovered panics carry the request ID.
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/health", h.Health.Health)

	// Admin page
	r.GET("/admin", h.Admin.AdminPage)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Projects
		v1.GET("/projects", h.Project.ListProjects)
		v1.GET("/projects/:id", h.Project.GetProject)
		v1.DELETE("/projects/:id", h.Project.DeleteProject)

		// Collection
		v1.POST("/collect", h.Admin.TriggerCollect)
		v1.GET("/collect/status", h.Admin.GetCollectStatus)

		// Vector index
		v1.POST("/vectorize", h.Admin.TriggerVectorize)
		v1.GET("/search/semantic", h.Search.SemanticSearch)
		v1.POST("/ask", h.Search.Ask)

		// LLM providers
		v1.GET("/llm/providers", h.Admin.ListProviders)
		v1.POST("/llm/switch", h.Admin.SwitchProvider)

		// Stats
		v1.GET("/stats", h.Search.GetStats)
	}

	return r
}
