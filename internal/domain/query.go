package domain

import (
	"sort"
	"time"
)

// ListFilter narrows Store.List.
type ListFilter struct {
	Limit    int
	Offset   int
	Language string
	MinStars int
}

// Sort keys accepted by Store.Search.
const (
	SortStars   = "stars"
	SortForks   = "forks"
	SortUpdated = "updated"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SearchQuery is a paginated substring search over name, description and topics.
type SearchQuery struct {
	Query    string
	Language string
	Sort     string
	Order    string
	Page     int
	PerPage  int
}

// Normalize fills defaults and clamps paging.
func (q SearchQuery) Normalize() SearchQuery {
	switch q.Sort {
	case SortStars, SortForks, SortUpdated:
	default:
		q.Sort = SortStars
	}
	if q.Order != OrderAsc {
		q.Order = OrderDesc
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
	return q
}

// StoreStats aggregates the stored corpus.
type StoreStats struct {
	TotalProjects    int64            `json:"total_projects"`
	LatestCollection *time.Time       `json:"latest_collection"`
	Languages        map[string]int64 `json:"languages"`
	DatabaseSize     int64            `json:"database_size"`
}

// TopicCount is the number of projects tagged with one topic.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int64  `json:"count"`
}

// TopTopics returns the n most used topics, ties broken by name. n <= 0 keeps all.
func TopTopics(counts map[string]int64, n int) []TopicCount {
	out := make([]TopicCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TopicCount{Topic: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
