package services

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// RubricIndex returns evaluation guideline snippets relevant to a query.
type RubricIndex interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

type rubricIndex struct {
	embedder Embedder
	store    QdrantService
	docTypes []string
}

func NewRubricIndex(embedder Embedder, store QdrantService) RubricIndex {
	if embedder == nil || store == nil {
		return nil
	}
	return &rubricIndex{
		embedder: embedder,
		store:    store,
		docTypes: []string{RubricGeneral, RubricBehavioural, RubricTechnical},
	}
}

func (r *rubricIndex) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	var all []SearchResult
	for _, docType := range r.docTypes {
		results, err := r.store.SearchSimilar(ctx, embedding, docType, limit)
		if err != nil {
			log.Printf("⚠️  Failed to search for %s: %v\n", docType, err)
			continue
		}
		all = append(all, results...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
