// Package ghsource reads repositories from GitHub through go-github.
package ghsource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v82/github"
	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/logger"
	"github.com/timmy/helloreadme/internal/source"
	"golang.org/x/oauth2"
)

const maxPerPage = 100

// Client wraps an authenticated go-github client.
type Client struct {
	gh            *github.Client
	perPage       int
	authenticated bool
}

// NewClient builds a client from config. Without a token the client is
// anonymous and GitHub applies much lower rate limits.
func NewClient(ctx context.Context, cfg config.GitHubConfig) (*Client, error) {
	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
		logger.Warn("No GitHub token configured, using anonymous access")
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	gh := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
	}

	c := newClient(gh, cfg.PerPage)
	c.authenticated = cfg.Token != ""
	return c, nil
}

func newClient(gh *github.Client, perPage int) *Client {
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}
	return &Client{gh: gh, perPage: perPage}
}

// Authenticated reports whether a token is in use.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// Search returns a Source over the repository search API.
func (c *Client) Search(query, sort, order string) source.Source {
	return &SearchSource{client: c, query: query, sort: sort, order: order}
}

// User returns a Source over the repositories owned by username.
func (c *Client) User(username string) source.Source {
	return &UserSource{client: c, username: username}
}

// Org returns a Source over the repositories of an organization.
func (c *Client) Org(name string) source.Source {
	return &OrgSource{client: c, org: name}
}

// FetchReadme returns the decoded README of owner/repo, or nil when the
// repository has none.
func (c *Client) FetchReadme(ctx context.Context, owner, repo string) (*source.Readme, error) {
	content, resp, err := c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		if isNotFound(resp, err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get readme %s/%s: %w", owner, repo, err)
	}

	text, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode readme %s/%s: %w", owner, repo, err)
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return &source.Readme{Content: text, Encoding: "utf-8"}, nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}

// Rate is one rate-limit window.
type Rate struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// RateLimits holds the core and search API windows.
type RateLimits struct {
	Core   Rate `json:"core"`
	Search Rate `json:"search"`
}

// RateLimits returns the current API rate-limit state.
func (c *Client) RateLimits(ctx context.Context) (*RateLimits, error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get rate limits: %w", err)
	}
	return &RateLimits{
		Core:   toRate(limits.GetCore()),
		Search: toRate(limits.GetSearch()),
	}, nil
}

func toRate(r *github.Rate) Rate {
	if r == nil {
		return Rate{}
	}
	return Rate{Limit: r.Limit, Remaining: r.Remaining, Reset: r.Reset.Time}
}

// DescribeError turns go-github failures into a short message. Rate-limit
// errors are reported like any other failure.
func DescribeError(err error) string {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Sprintf("rate limit exceeded (resets %s): %v", rateErr.Rate.Reset.Time.Format(time.RFC3339), err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Sprintf("secondary rate limit (retry after %s): %v", abuseErr.GetRetryAfter(), err)
	}
	return err.Error()
}

func parseCursor(cursor string) int {
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func nextCursor(resp *github.Response) string {
	if resp == nil || resp.NextPage == 0 {
		return ""
	}
	return strconv.Itoa(resp.NextPage)
}

// truncate caps a page to limit. Page size stays fixed per source so page
// cursors remain aligned; only the last page of a run is cut short.
func truncate(repos []*github.Repository, limit int) []*github.Repository {
	if limit > 0 && len(repos) > limit {
		return repos[:limit]
	}
	return repos
}
