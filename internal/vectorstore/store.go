// Package vectorstore persists embedded wiki content for one tenant and
// answers nearest-neighbor queries over it.
package vectorstore

import (
	"context"

	"github.com/loreworks/mwassist/internal/domain"
)

// Store is the contract shared by both vector backends: an in-process flat
// inner-product index flushed to companion files, and a pgvector-backed
// relational store. Implementations are tenant-scoped; cross-tenant isolation
// is the registry's responsibility.
type Store interface {
	// Add inserts records with their embedding vectors. The vector count
	// must match the record count, all vectors must share one dimension,
	// and that dimension is fixed at the store's first insert. Returns the
	// number of records added.
	Add(ctx context.Context, records []domain.EmbeddingRecord, vectors [][]float32) (int, error)

	// DeletePage removes every record whose page title matches exactly and
	// returns the number removed (0 when none match).
	DeletePage(ctx context.Context, pageTitle string) (int, error)

	// Search returns up to k candidates ordered by descending similarity.
	// An empty store yields an empty result, not an error.
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.SearchCandidate, error)

	// Rebuild clears the store and re-adds the given records atomically.
	Rebuild(ctx context.Context, records []domain.EmbeddingRecord, vectors [][]float32) (int, error)

	// ListPages returns distinct page titles, optionally restricted to one
	// namespace and/or a case-insensitive substring, sorted ascending.
	ListPages(ctx context.Context, namespace *int, pattern string) ([]string, error)

	// Stats summarizes the store's contents.
	Stats(ctx context.Context) (*domain.IndexStats, error)

	// Save persists the store as a unit. Load restores it, tolerating a
	// missing snapshot as a fresh start; a present-but-corrupt snapshot is
	// an error. Both are no-ops for the relational backend.
	Save(ctx context.Context) error
	Load(ctx context.Context) error
}
