package models

// SearchHit is one matching page.
type SearchHit struct {
	Document  string   `json:"document"`
	Page      int      `json:"page"`
	Score     float64  `json:"score"`
	Fragments []string `json:"fragments,omitempty"`
	Rank      int      `json:"rank"`
}

// SearchResponse is the response for a page search.
type SearchResponse struct {
	Hits      []*SearchHit `json:"hits"`
	Total     uint64       `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Query     string       `json:"query"`
	// Suggestions holds "did you mean" corrections when the exact query found nothing.
	Suggestions []string `json:"suggestions,omitempty"`
	// AutoFuzzy reports that hits came from the automatic fuzzy retry.
	AutoFuzzy bool `json:"auto_fuzzy,omitempty"`
}
