package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
)

const searchHint = `Try searching for products like "scissors", "rulers", or "buckles".`

// Matcher finds catalog products containing a query.
type Matcher interface {
	Match(query string) []domain.Product
}

// SearchService answers catalog keyword searches.
type SearchService struct {
	catalog Matcher
	logger  *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(catalog Matcher, logger *slog.Logger) *SearchService {
	return &SearchService{
		catalog: catalog,
		logger:  logger,
	}
}

// Search filters the catalog by query. The query is matched as given; only
// an empty query skips the search and yields a prompt instead.
func (s *SearchService) Search(ctx context.Context, query string) *domain.SearchResult {
	q := query
	res := &domain.SearchResult{Query: q, Results: []domain.Product{}}

	if q == "" {
		res.Message = "No search term provided. " + searchHint
		searchQueriesTotal.WithLabelValues(resultEmpty).Inc()
		return res
	}

	res.Results = s.catalog.Match(q)
	res.Count = len(res.Results)
	res.Message = resultMessage(q, res.Count)

	if res.Count == 0 {
		searchQueriesTotal.WithLabelValues(resultNoResults).Inc()
	} else {
		searchQueriesTotal.WithLabelValues(resultFound).Inc()
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", q),
		slog.Int("total", res.Count),
	)

	return res
}

func resultMessage(query string, n int) string {
	switch n {
	case 0:
		return fmt.Sprintf("No results found for \"%s\". %s", query, searchHint)
	case 1:
		return fmt.Sprintf("Found 1 result for \"%s\":", query)
	default:
		return fmt.Sprintf("Found %d results for \"%s\":", n, query)
	}
}
