package domain

// SimilarProject is one ranked hit from the vector index.
type SimilarProject struct {
	ProjectID  int64    `json:"project_id"`
	Name       string   `json:"name"`
	FullName   string   `json:"full_name"`
	Language   string   `json:"language"`
	Stars      int      `json:"stars"`
	Forks      int      `json:"forks"`
	Topics     []string `json:"topics"`
	Similarity float64  `json:"similarity"`
	Distance   float64  `json:"distance"`
	Document   string   `json:"document,omitempty"`
}

// VectorBatchResult is the outcome of a batch vector upsert.
type VectorBatchResult struct {
	Total     int     `json:"total"`
	Inserted  int     `json:"inserted"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	FailedIDs []int64 `json:"failed_ids,omitempty"`
}

// VectorStats describes the vector collection.
type VectorStats struct {
	TotalVectors   uint64 `json:"total_vectors"`
	CollectionName string `json:"collection_name"`
	Path           string `json:"path"`
}

// VectorizeResult summarizes one vectorizer run.
type VectorizeResult struct {
	Candidates int     `json:"candidates"`
	Inserted   int     `json:"inserted"`
	Skipped    int     `json:"skipped"`
	Refreshed  int     `json:"refreshed"`
	Pending    int     `json:"pending"`
	Failed     int     `json:"failed"`
	FailedIDs  []int64 `json:"failed_ids,omitempty"`
}
