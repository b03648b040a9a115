package ghsource

import (
	"context"
	"fmt"

	"github.com/google/go-github/v82/github"
	"github.com/timmy/helloreadme/internal/source"
)

// SearchSource walks the repository search API.
type SearchSource struct {
	client *Client
	query  string
	sort   string
	order  string
}

func (s *SearchSource) GetSourceID() string    { return "search:" + s.query }
func (s *SearchSource) GetDisplayName() string { return fmt.Sprintf("GitHub search %q", s.query) }

// FetchBatch fetches one search page.
func (s *SearchSource) FetchBatch(ctx context.Context, cursor string, limit int) (*source.Batch, error) {
	opts := &github.SearchOptions{
		Sort:  s.sort,
		Order: s.order,
		ListOptions: github.ListOptions{
			Page:    parseCursor(cursor),
			PerPage: s.client.perPage,
		},
	}
	result, resp, err := s.client.gh.Search.Repositories(ctx, s.query, opts)
	if err != nil {
		return nil, fmt.Errorf("search repositories: %s", DescribeError(err))
	}
	return &source.Batch{
		Repos:      truncate(result.Repositories, limit),
		NextCursor: nextCursor(resp),
		Total:      result.GetTotal(),
	}, nil
}

// UserSource lists the repositories owned by a user.
type UserSource struct {
	client   *Client
	username string
}

func (s *UserSource) GetSourceID() string    { return "user:" + s.username }
func (s *UserSource) GetDisplayName() string { return "GitHub user " + s.username }

// FetchBatch fetches one listing page.
func (s *UserSource) FetchBatch(ctx context.Context, cursor string, limit int) (*source.Batch, error) {
	opts := &github.RepositoryListByUserOptions{
		Type: "owner",
		ListOptions: github.ListOptions{
			Page:    parseCursor(cursor),
			PerPage: s.client.perPage,
		},
	}
	repos, resp, err := s.client.gh.Repositories.ListByUser(ctx, s.username, opts)
	if err != nil {
		return nil, fmt.Errorf("list repositories of %s: %s", s.username, DescribeError(err))
	}
	return &source.Batch{Repos: truncate(repos, limit), NextCursor: nextCursor(resp)}, nil
}

// OrgSource lists the repositories of an organization.
type OrgSource struct {
	client *Client
	org    string
}

func (s *OrgSource) GetSourceID() string    { return "org:" + s.org }
func (s *OrgSource) GetDisplayName() string { return "GitHub organization " + s.org }

// FetchBatch fetches one listing page.
func (s *OrgSource) FetchBatch(ctx context.Context, cursor string, limit int) (*source.Batch, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{
			Page:    parseCursor(cursor),
			PerPage: s.client.perPage,
		},
	}
	repos, resp, err := s.client.gh.Repositories.ListByOrg(ctx, s.org, opts)
	if err != nil {
		return nil, fmt.Errorf("list repositories of %s: %s", s.org, DescribeError(err))
	}
	return &source.Batch{Repos: truncate(repos, limit), NextCursor: nextCursor(resp)}, nil
}

var (
	_ source.Source        = (*SearchSource)(nil)
	_ source.Source        = (*UserSource)(nil)
	_ source.Source        = (*OrgSource)(nil)
	_ source.ReadmeFetcher = (*Client)(nil)
)
