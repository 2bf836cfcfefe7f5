package client

import "time"

// Metrics holds the counts captured from a single page observation,
// before the store has assigned an identity to the visit.
type Metrics struct {
	// URL is the address of the observed page (required).
	URL string `json:"url"`
	// LinkCount is the number of links on the page.
	LinkCount int `json:"link_count"`
	// WordCount is the number of words of visible text.
	WordCount int `json:"word_count"`
	// ImageCount is the number of images on the page.
	ImageCount int `json:"image_count"`
	// VisitedAt is the observation timestamp (optional, the store
	// defaults it to the time of persistence).
	VisitedAt *time.Time `json:"datetime_visited,omitempty"`
}

// Visit is a persisted page observation as returned by the store.
type Visit struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	VisitedAt  time.Time `json:"datetime_visited"`
	LinkCount  int       `json:"link_count"`
	WordCount  int       `json:"word_count"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// HistoryPage is one page of a visit history query. Visits are
// ordered most recent first (datetime_visited desc, created_at desc
// on ties). Total counts every matching visit, not the page size.
type HistoryPage struct {
	Visits []Visit `json:"visits"`
	Total  int     `json:"total"`
}
