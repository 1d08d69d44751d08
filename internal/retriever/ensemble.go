// Package retriever combines similarity searches over multiple vector
// collections into one ranked result list.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/askdoc/askdoc/internal/vector"
)

// Searcher is the similarity-search capability the ensemble needs.
// vector.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, collection, query string, opts ...vector.SearchOption) ([]vector.Result, error)
}

// Source is one collection queried by the ensemble.
type Source struct {
	Collection string  // Collection name
	K          int     // Results requested from this collection
	Weight     float64 // Fixed linear weight applied to this collection's scores
}

// Ensemble queries each source independently and merges results by
// weighted similarity. Results are not deduplicated across sources: a
// chunk present in two collections can appear twice.
type Ensemble struct {
	store   Searcher
	sources []Source
	limit   int
	logger  *slog.Logger
}

// NewEnsemble creates an Ensemble. limit truncates the merged list;
// if non-positive it defaults to the sum of the source K values.
func NewEnsemble(store Searcher, sources []Source, limit int, logger *slog.Logger) *Ensemble {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		for _, src := range sources {
			limit += src.K
		}
	}
	return &Ensemble{
		store:   store,
		sources: sources,
		limit:   limit,
		logger:  logger,
	}
}

// Retrieve runs the query against every source and returns the merged
// ranking. The Similarity of each returned result is the source's raw
// similarity scaled by the source weight, which is what the merged
// order is defined over.
func (e *Ensemble) Retrieve(ctx context.Context, query string) ([]vector.Result, error) {
	var merged []vector.Result

	for _, src := range e.sources {
		results, err := e.store.Search(ctx, src.Collection, query, vector.WithTopK(src.K))
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", src.Collection, err)
		}

		for _, r := range results {
			r.Similarity *= src.Weight
			merged = append(merged, r)
		}
	}

	// Stable sort keeps source order for equal scores, which keeps the
	// merge deterministic.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) > e.limit {
		merged = merged[:e.limit]
	}

	e.logger.Debug("ensemble retrieval finished",
		"query_length", len(query),
		"results", len(merged))
	return merged, nil
}
