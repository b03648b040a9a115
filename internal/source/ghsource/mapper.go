package ghsource

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/source"
)

// MapRepository converts a forge repository into a Project. The README is
// optional and sanitized to plain text; now stamps collected_at and last_checked.
func MapRepository(repo *github.Repository, readme *source.Readme, now time.Time) (*domain.Project, error) {
	if repo == nil {
		return nil, errors.New("nil repository")
	}
	if repo.ID == nil {
		return nil, fmt.Errorf("repository %q has no id", repo.GetFullName())
	}
	if repo.GetFullName() == "" {
		return nil, fmt.Errorf("repository %d has no full name", repo.GetID())
	}

	topics := domain.StringArray{}
	for _, t := range repo.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}

	now = now.UTC()
	p := &domain.Project{
		ID:            repo.GetID(),
		Name:          repo.GetName(),
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		Language:      domain.ParseLanguage(repo.GetLanguage()),
		Topics:        topics,
		Homepage:      repo.GetHomepage(),
		License:       repo.GetLicense().GetName(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		Watchers:      repo.GetWatchersCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		IsFork:        repo.GetFork(),
		IsTemplate:    repo.GetIsTemplate(),
		IsArchived:    repo.GetArchived(),
		CreatedAt:     repo.GetCreatedAt().Time,
		UpdatedAt:     repo.GetUpdatedAt().Time,
		PushedAt:      repo.GetPushedAt().Time,
		CollectedAt:   now,
		LastChecked:   now,
		OwnerLogin:    repo.GetOwner().GetLogin(),
		OwnerType:     repo.GetOwner().GetType(),
		DefaultBranch: repo.GetDefaultBranch(),
		Size:          repo.GetSize(),
		HasWiki:       repo.GetHasWiki(),
		HasPages:      repo.GetHasPages(),
	}
	if readme != nil {
		p.ReadmeContent = SanitizeReadme(readme.Content)
		p.ReadmeEncoding = readme.Encoding
	}
	return p, nil
}

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// Applied in order; later rules see the output of earlier ones.
var readmeRewrites = []rewrite{
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
	{regexp.MustCompile(`<img[^>]+>`), ""},
	{regexp.MustCompile(`<[^>]+>`), ""},
	{regexp.MustCompile(`\|[^|]*\|[^|]*\|`), ""},
	{regexp.MustCompile(`\|[-|]+\|`), ""},
	{regexp.MustCompile("(?m)^```\\w*\\n"), ""},
	{regexp.MustCompile("(?m)^```$"), ""},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`__([^_]+)__`), "$1"},
	{regexp.MustCompile(`_([^_]+)_`), "$1"},
	{regexp.MustCompile(`~~([^~]+)~~`), "$1"},
	{regexp.MustCompile(`(?m)^>\s*`), ""},
	{regexp.MustCompile(`(?m)^[-*_]{3,}$`), ""},
	{regexp.MustCompile(`\n\s*\n`), "\n\n"},
}

// SanitizeReadme strips markdown and HTML markup from a README, keeping the
// inner text of links, emphasis and code, and collapses runs of blank lines.
func SanitizeReadme(content string) string {
	if content == "" {
		return ""
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	for _, rw := range readmeRewrites {
		content = rw.re.ReplaceAllString(content, rw.repl)
	}
	return strings.TrimSpace(content)
}
