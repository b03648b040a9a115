package domain

// CollectionType selects the forge listing a collection run walks.
type CollectionType string

const (
	CollectionTypeSearch CollectionType = "search"
	CollectionTypeUser   CollectionType = "user"
	CollectionTypeOrg    CollectionType = "org"
)

// CollectRequest describes one collection run.
type CollectRequest struct {
	Type         CollectionType `json:"type"`
	Query        string         `json:"query,omitempty"`
	Language     string         `json:"language,omitempty"`
	Sort         string         `json:"sort,omitempty"`
	Order        string         `json:"order,omitempty"`
	MaxRepos     int            `json:"max_repos,omitempty"`
	Username     string         `json:"username,omitempty"`
	Org          string         `json:"org,omitempty"`
	IncludeForks bool           `json:"include_forks,omitempty"`
}

// CollectionResult summarizes one collection run. Partial success is reported
// with Success=true and a non-empty Errors list.
type CollectionResult struct {
	Success         bool     `json:"success"`
	TotalCollected  int      `json:"total_collected"`
	NewProjects     int      `json:"new_projects"`
	UpdatedProjects int      `json:"updated_projects"`
	Errors          []string `json:"errors"`
	Message         string   `json:"message"`
}

// CollectionStats accumulates counters during a run.
type CollectionStats struct {
	TotalCollected  int
	NewProjects     int
	UpdatedProjects int
	Errors          []string
}

// AddError records a per-item failure message.
func (s *CollectionStats) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Result freezes the counters into a CollectionResult.
func (s *CollectionStats) Result(success bool, message string) CollectionResult {
	errs := make([]string, len(s.Errors))
	copy(errs, s.Errors)
	return CollectionResult{
		Success:         success,
		TotalCollected:  s.TotalCollected,
		NewProjects:     s.NewProjects,
		UpdatedProjects: s.UpdatedProjects,
		Errors:          errs,
		Message:         message,
	}
}

// BatchResult is the outcome of a store batch upsert.
type BatchResult struct {
	New     int      `json:"new"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
