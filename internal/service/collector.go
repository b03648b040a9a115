package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"github.com/google/uuid"
	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/repository"
	"github.com/timmy/helloreadme/internal/source"
	"github.com/timmy/helloreadme/internal/source/ghsource"
	"golang.org/x/time/rate"
)

// Forge is the repository provider the collector walks.
type Forge interface {
	Search(query, sort, order string) source.Source
	User(username string) source.Source
	Org(name string) source.Source
	FetchReadme(ctx context.Context, owner, repo string) (*source.Readme, error)
	RateLimits(ctx context.Context) (*ghsource.RateLimits, error)
}

// CollectorConfig holds configuration for the collector
type CollectorConfig struct {
	BatchSize       int
	DefaultQuery    string
	DefaultMaxRepos int
	// RateLimitDelay is the minimum spacing between per-item forge calls.
	RateLimitDelay time.Duration
}

// NewCollectorConfig derives collector settings from the loaded config.
func NewCollectorConfig(cfg *config.Config) *CollectorConfig {
	return &CollectorConfig{
		BatchSize:       cfg.Collection.BatchSize,
		DefaultQuery:    cfg.GitHub.SearchQuery,
		DefaultMaxRepos: cfg.GitHub.MaxRepos,
		RateLimitDelay:  cfg.GitHub.RateLimitDelay,
	}
}

// Collector pulls repositories from the forge, maps them to projects and
// writes them to the store in batches.
type Collector struct {
	forge   Forge
	store   repository.ProjectStore
	cfg     CollectorConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewCollector creates a collector. forge may be nil, in which case every run
// reports failure.
func NewCollector(forge Forge, store repository.ProjectStore, cfg *CollectorConfig) *Collector {
	c := *cfg
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	c.DefaultMaxRepos = clampMaxRepos(c.DefaultMaxRepos, config.MaxReposLimit)

	limit := rate.Inf
	if c.RateLimitDelay > 0 {
		limit = rate.Every(c.RateLimitDelay)
	}

	return &Collector{
		forge:   forge,
		store:   store,
		cfg:     c,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// clampMaxRepos bounds a requested repository count to [1, MaxReposLimit].
// Zero means unset and yields def.
func clampMaxRepos(requested, def int) int {
	if requested == 0 {
		requested = def
	}
	switch {
	case requested < 1:
		return 1
	case requested > config.MaxReposLimit:
		return config.MaxReposLimit
	default:
		return requested
	}
}

// listingLimit bounds a user or organization listing. Zero means no limit.
func listingLimit(requested int) int {
	if requested == 0 {
		return 0
	}
	return clampMaxRepos(requested, config.MaxReposLimit)
}

var validSorts = map[string]bool{
	"stars":              true,
	"forks":              true,
	"updated":            true,
	"help-wanted-issues": true,
}

func normalizeSort(sort, order string) (string, string) {
	if !validSorts[sort] {
		sort = "stars"
	}
	if order != "asc" {
		order = "desc"
	}
	return sort, order
}

// BuildSearchQuery appends a language qualifier to the base query.
func BuildSearchQuery(base, language string) string {
	base = strings.TrimSpace(base)
	if language = strings.TrimSpace(language); language != "" {
		if base == "" {
			return "language:" + language
		}
		return base + " language:" + language
	}
	return base
}

// Collect dispatches a request to the matching collection method.
func (c *Collector) Collect(ctx context.Context, req domain.CollectRequest) domain.CollectionResult {
	switch req.Type {
	case domain.CollectionTypeSearch, "":
		return c.CollectBySearch(ctx, req.Query, req.Language, req.Sort, req.Order, req.MaxRepos)
	case domain.CollectionTypeUser:
		return c.CollectByUser(ctx, req.Username, req.IncludeForks, req.MaxRepos)
	case domain.CollectionTypeOrg:
		return c.CollectByOrganization(ctx, req.Org, req.IncludeForks, req.MaxRepos)
	default:
		var stats domain.CollectionStats
		return stats.Result(false, fmt.Sprintf("unsupported collection type %q", req.Type))
	}
}

// CollectBySearch collects up to maxRepos repositories matching the query.
func (c *Collector) CollectBySearch(ctx context.Context, query, language, sort, order string, maxRepos int) domain.CollectionResult {
	if query == "" {
		query = c.cfg.DefaultQuery
	}
	query = BuildSearchQuery(query, language)
	sort, order = normalizeSort(sort, order)
	maxRepos = clampMaxRepos(maxRepos, c.cfg.DefaultMaxRepos)

	ctx = logger.WithFields(ctx, logger.Fields{"query": query, "max_repos": maxRepos})
	return c.run(ctx, func() source.Source { return c.forge.Search(query, sort, order) }, maxRepos, nil,
		func(stats *domain.CollectionStats) string {
			return fmt.Sprintf("collected %d projects (%d new, %d updated)",
				stats.TotalCollected, stats.NewProjects, stats.UpdatedProjects)
		})
}

// CollectByUser collects the repositories owned by username. maxRepos 0
// walks the whole listing; other values are clamped like a search limit.
func (c *Collector) CollectByUser(ctx context.Context, username string, includeForks bool, maxRepos int) domain.CollectionResult {
	if strings.TrimSpace(username) == "" {
		var stats domain.CollectionStats
		return stats.Result(false, "username is required")
	}
	return c.run(ctx, func() source.Source { return c.forge.User(username) }, listingLimit(maxRepos), forkFilter(includeForks),
		func(stats *domain.CollectionStats) string {
			return fmt.Sprintf("collected %d projects of user %s", stats.TotalCollected, username)
		})
}

// CollectByOrganization collects the repositories of an organization, with
// maxRepos handled as in CollectByUser.
func (c *Collector) CollectByOrganization(ctx context.Context, org string, includeForks bool, maxRepos int) domain.CollectionResult {
	if strings.TrimSpace(org) == "" {
		var stats domain.CollectionStats
		return stats.Result(false, "organization is required")
	}
	return c.run(ctx, func() source.Source { return c.forge.Org(org) }, listingLimit(maxRepos), forkFilter(includeForks),
		func(stats *domain.CollectionStats) string {
			return fmt.Sprintf("collected %d projects of organization %s", stats.TotalCollected, org)
		})
}

// RateLimits reports the forge's current rate-limit windows.
func (c *Collector) RateLimits(ctx context.Context) (*ghsource.RateLimits, error) {
	if c.forge == nil {
		return nil, errors.New("github client not initialized")
	}
	return c.forge.RateLimits(ctx)
}

func forkFilter(includeForks bool) func(*github.Repository) bool {
	if includeForks {
		return nil
	}
	return func(repo *github.Repository) bool { return !repo.GetFork() }
}

// run drives one collection: fetch pages in order, map each repository, flush
// full batches, then flush the remainder. limit <= 0 walks the whole listing;
// otherwise it caps the repositories that pass keep.
func (c *Collector) run(
	ctx context.Context,
	newSource func() source.Source,
	limit int,
	keep func(*github.Repository) bool,
	message func(*domain.CollectionStats) string,
) domain.CollectionResult {
	var stats domain.CollectionStats

	if c.forge == nil {
		return stats.Result(false, "github client not initialized")
	}
	if err := c.store.Ping(ctx); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Store unavailable, aborting collection")
		return stats.Result(false, fmt.Sprintf("store unavailable: %v", err))
	}

	src := newSource()
	ctx = logger.SetRunID(ctx, uuid.NewString())
	ctx = logger.SetSource(ctx, src.GetSourceID())
	start := c.now()
	logger.CtxInfo(ctx, "Starting collection from %s", src.GetDisplayName())

	pending := make([]*domain.Project, 0, c.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		res := c.store.BatchUpsert(ctx, pending)
		stats.NewProjects += res.New
		stats.UpdatedProjects += res.Updated
		stats.TotalCollected += res.New + res.Updated
		for _, e := range res.Errors {
			stats.AddError(e)
		}
		pending = make([]*domain.Project, 0, c.cfg.BatchSize)
	}

	var (
		cursor    string
		walked    int
		total     = limit
		firstPage = true
		cancelled bool
	)

pages:
	for limit <= 0 || walked < limit {
		remaining := 0
		if limit > 0 {
			remaining = limit - walked
		}
		batch, err := src.FetchBatch(ctx, cursor, remaining)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Error("Failed to fetch page")
			if firstPage {
				stats.AddError(err.Error())
				return stats.Result(false, fmt.Sprintf("collection failed: %v", err))
			}
			stats.AddError(fmt.Sprintf("fetch page %s: %v", cursor, err))
			break
		}
		if firstPage && limit > 0 && batch.Total > 0 && batch.Total < limit {
			total = batch.Total
			logger.CtxInfo(ctx, "Found %d matching projects", total)
		}
		firstPage = false

		for _, repo := range batch.Repos {
			if limit > 0 && walked >= total {
				break pages
			}
			if keep != nil && !keep(repo) {
				continue
			}
			walked++

			if err := c.limiter.Wait(ctx); err != nil {
				cancelled = true
				break pages
			}

			project, err := c.collectOne(ctx, repo)
			if err != nil {
				msg := fmt.Sprintf("collect %s: %v", repo.GetFullName(), err)
				logger.FromContext(ctx).WithField(logger.FieldFullName, repo.GetFullName()).WithError(err).
					Error("Failed to collect project")
				stats.AddError(msg)
				continue
			}
			pending = append(pending, project)

			if len(pending) >= c.cfg.BatchSize {
				flush(ctx)
				logger.With(logger.Fields{"walked": walked, "total": total}).Info(ctx, "Flushed batch")
			}
		}

		if batch.NextCursor == "" || len(batch.Repos) == 0 {
			break
		}
		cursor = batch.NextCursor
	}

	// Items mapped before a cancellation are still written.
	flush(context.WithoutCancel(ctx))

	msg := message(&stats)
	logger.With(logger.Fields{
		"new":     stats.NewProjects,
		"updated": stats.UpdatedProjects,
		"errors":  len(stats.Errors),
	}).WithCount(stats.TotalCollected).WithDuration(c.now().Sub(start).Milliseconds()).Info(ctx, "Collection finished: %s", msg)

	if cancelled {
		return stats.Result(false, "collection cancelled: "+msg)
	}
	return stats.Result(true, msg)
}

func (c *Collector) collectOne(ctx context.Context, repo *github.Repository) (*domain.Project, error) {
	var readme *source.Readme
	if repo.GetOwner().GetLogin() != "" && repo.GetName() != "" {
		var err error
		readme, err = c.forge.FetchReadme(ctx, repo.GetOwner().GetLogin(), repo.GetName())
		if err != nil {
			logger.FromContext(ctx).WithField(logger.FieldFullName, repo.GetFullName()).WithError(err).
				Warn("Failed to fetch README")
			readme = nil
		}
	}
	return ghsource.MapRepository(repo, readme, c.now())
}
