package source

import (
	"context"

	"github.com/google/go-github/v82/github"
)

// Batch is one page of repositories from a forge listing.
type Batch struct {
	Repos []*github.Repository
	// NextCursor is empty when the listing is exhausted.
	NextCursor string
	// Total is the number of matches the forge reports, or 0 when the listing
	// does not report one.
	Total int
}

// Source is a paginated listing of repositories.
type Source interface {
	// GetSourceID returns a stable identifier such as "search:<query>" or "org:<name>".
	GetSourceID() string

	// GetDisplayName returns a human-readable name for logs.
	GetDisplayName() string

	// FetchBatch fetches up to limit repositories starting at cursor. An empty
	// cursor starts from the first page.
	FetchBatch(ctx context.Context, cursor string, limit int) (*Batch, error)
}

// Readme is a repository's decoded README.
type Readme struct {
	Content  string
	Encoding string
}

// ReadmeFetcher retrieves a repository README. A repository without one
// returns nil and no error.
type ReadmeFetcher interface {
	FetchReadme(ctx context.Context, owner, repo string) (*Readme, error)
}
