// Package search runs the permission-filtered retrieval pipeline.
package search

import (
	"context"
	"log"
	"unicode/utf8"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/tenant"
)

const (
	// DefaultK is the result count when callers pass k <= 0.
	DefaultK = 5

	// MaxK bounds how many results one query can request.
	MaxK = 50

	// snippetLength caps the text returned per result.
	snippetLength = 400
)

// Embedder produces a query vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// AccessChecker validates per-page read access for the calling user.
type AccessChecker interface {
	CheckReadAccess(ctx context.Context, identity *domain.Identity, titles []string) (map[string]bool, error)
}

// Pipeline embeds a query, over-fetches candidates, filters them by namespace
// and per-page access, and returns a ranked, deduplicated, capped result list.
type Pipeline struct {
	registry *tenant.Registry
	embedder Embedder
	acl      AccessChecker
}

func NewPipeline(registry *tenant.Registry, embedder Embedder, acl AccessChecker) *Pipeline {
	return &Pipeline{registry: registry, embedder: embedder, acl: acl}
}

// Search runs the full pipeline for one query. Access failures never surface
// as errors: when the ACL check cannot be answered the result is empty, since
// a permission check that cannot be answered must never default to allowed.
func (p *Pipeline) Search(ctx context.Context, identity *domain.Identity, query string, k int) ([]domain.SearchResult, error) {
	if err := domain.ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "search query is required")
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	// Empty namespace allow-list denies everything. Skip the embedding call.
	if len(identity.AllowedNamespaces) == 0 {
		return []domain.SearchResult{}, nil
	}

	vector, err := p.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return []domain.SearchResult{}, nil
	}

	store, err := p.registry.Store(ctx, identity.TenantID)
	if err != nil {
		return nil, err
	}

	candidates, err := store.Search(ctx, vector, 3*k)
	if err != nil {
		return nil, err
	}

	// Namespace pre-filter before any network round trip.
	filtered := candidates[:0]
	for _, c := range candidates {
		if identity.CanReadNamespace(c.Record.Namespace) {
			filtered = append(filtered, c)
		}
	}

	// Batch ACL check over the top 2k survivors.
	limit := 2 * k
	if limit > len(filtered) {
		limit = len(filtered)
	}
	filtered = filtered[:limit]

	allowed, err := p.checkAccess(ctx, identity, filtered)
	if err != nil {
		log.Printf("access check failed for tenant %s, returning empty results: %v", identity.TenantID, err)
		return []domain.SearchResult{}, nil
	}

	// Rank-stable dedupe by title, capped at k.
	seen := make(map[string]struct{}, k)
	results := make([]domain.SearchResult, 0, k)
	for _, c := range filtered {
		if !allowed[c.Record.PageTitle] {
			continue
		}
		if _, dup := seen[c.Record.PageTitle]; dup {
			continue
		}
		seen[c.Record.PageTitle] = struct{}{}
		results = append(results, domain.SearchResult{
			Title:     c.Record.PageTitle,
			SectionID: c.Record.SectionID,
			Score:     c.Score,
			Snippet:   snippet(c.Record.Text),
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func (p *Pipeline) checkAccess(ctx context.Context, identity *domain.Identity, candidates []domain.SearchCandidate) (map[string]bool, error) {
	if len(candidates) == 0 {
		return map[string]bool{}, nil
	}

	seen := make(map[string]struct{}, len(candidates))
	titles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Record.PageTitle]; dup {
			continue
		}
		seen[c.Record.PageTitle] = struct{}{}
		titles = append(titles, c.Record.PageTitle)
	}
	return p.acl.CheckReadAccess(ctx, identity, titles)
}

// snippet truncates on a rune boundary so a multi-byte character is never
// split mid-sequence.
func snippet(text string) string {
	if len(text) <= snippetLength {
		return text
	}
	cut := snippetLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
