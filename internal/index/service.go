// Package index manages a tenant's embedded page content.
package index

import (
	"context"
	"strconv"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/tenant"
)

// Embedder turns pre-chunked page text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Service applies page-level mutations to tenant vector stores. Chunking is
// the caller's concern; the service receives the chunk list ready to embed.
type Service struct {
	registry *tenant.Registry
	embedder Embedder
}

func NewService(registry *tenant.Registry, embedder Embedder) *Service {
	return &Service{registry: registry, embedder: embedder}
}

// UpsertPage replaces a page's embeddings wholesale: existing chunks are
// deleted, the new chunks embedded and added, and the store flushed. Returns
// the number of chunks indexed.
func (s *Service) UpsertPage(ctx context.Context, identity *domain.Identity, title string, chunks []string, namespace int, lastModified *time.Time) (int, error) {
	if title == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "page title is required")
	}
	if len(chunks) == 0 {
		return 0, domain.ErrEmptyEmbeddingBatch
	}
	if namespace < 0 {
		return 0, domain.ErrInvalidNamespace
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = domain.EmbeddingRecord{
			TenantID:     identity.TenantID,
			PageTitle:    title,
			SectionID:    sectionID(i),
			Namespace:    namespace,
			Text:         chunk,
			LastModified: lastModified,
		}
	}

	store, err := s.registry.Store(ctx, identity.TenantID)
	if err != nil {
		return 0, err
	}

	if _, err := store.DeletePage(ctx, title); err != nil {
		return 0, err
	}
	count, err := store.Add(ctx, records, vectors)
	if err != nil {
		return 0, err
	}
	if err := store.Save(ctx); err != nil {
		return 0, err
	}
	return count, nil
}

// DeletePage removes all of a page's embeddings and flushes the store.
func (s *Service) DeletePage(ctx context.Context, identity *domain.Identity, title string) (int, error) {
	if title == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "page title is required")
	}

	store, err := s.registry.Store(ctx, identity.TenantID)
	if err != nil {
		return 0, err
	}

	count, err := store.DeletePage(ctx, title)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := store.Save(ctx); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Stats summarizes the tenant's index.
func (s *Service) Stats(ctx context.Context, identity *domain.Identity) (*domain.IndexStats, error) {
	store, err := s.registry.Store(ctx, identity.TenantID)
	if err != nil {
		return nil, err
	}
	return store.Stats(ctx)
}

func sectionID(i int) string {
	return "chunk-" + strconv.Itoa(i)
}
