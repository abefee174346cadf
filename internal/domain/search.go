package domain

// SearchResult is the rendered outcome of a catalog search.
type SearchResult struct {
	Query   string    `json:"query"`
	Message string    `json:"message"`
	Count   int       `json:"count"`
	Results []Product `json:"results"`
}
