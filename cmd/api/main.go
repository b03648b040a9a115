package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/helloreadme/internal/api"
	"github.com/timmy/helloreadme/internal/api/handler"
	"github.com/timmy/helloreadme/internal/app"
	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/llm"
	"github.com/timmy/helloreadme/internal/logger"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app.NewLogger(&cfg.Log, "helloreadme-api", nil)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application: %v", err)
	}
	defer a.Close()

	if err := a.LLM.Initialize(ctx); err != nil {
		if errors.Is(err, llm.ErrNoProvider) {
			logger.Warn("No LLM provider available, question answering disabled")
		} else {
			logger.Warn("LLM initialization failed: %v", err)
		}
	}

	if err := a.Index.Initialize(ctx); err != nil {
		// Semantic endpoints report the failure; listing still works.
		logger.Warn("Vector index unavailable: %v", err)
	}

	admin := handler.NewAdminHandler(ctx, a.Collector, a.Vectorizer, a.LLM)
	router := api.SetupRouter(&api.Handlers{
		Health:  handler.NewHealthHandler(a.Store),
		Project: handler.NewProjectHandler(a.Store, a.Vectorizer),
		Search:  handler.NewSearchHandler(a.Store, a.Index, a.RAG, a.Expander),
		Admin:   admin,
	}, &cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting API server on port %d (mode=%s)", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if sched := a.Scheduler(); sched != nil {
		g.Go(func() error {
			logger.Info("Scheduled collection every %d hours", cfg.Collection.IntervalHours)
			return sched.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		admin.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error: %v", err)
		return
	}
	logger.Info("Server exited")
}
