// Package tenant maps wiki ids to their vector stores.
package tenant

import (
	"context"
	"log"
	"sync"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/vectorstore"
)

// StoreFactory builds a vector store for one tenant. The registry calls it
// at most once per tenant id and caches the result.
type StoreFactory func(tenantID string) (vectorstore.Store, error)

// Registry hands out per-tenant vector stores, creating them lazily. Tenant
// ids are validated before any store is touched, so an id that could escape
// its data directory never reaches a factory.
type Registry struct {
	mu      sync.Mutex
	factory StoreFactory
	stores  map[string]vectorstore.Store
}

func NewRegistry(factory StoreFactory) *Registry {
	return &Registry{
		factory: factory,
		stores:  make(map[string]vectorstore.Store),
	}
}

// Store returns the tenant's vector store, creating and loading it on first
// use. Unknown tenants are not an error: a store is created for any valid id.
func (r *Registry) Store(ctx context.Context, tenantID string) (vectorstore.Store, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[tenantID]; ok {
		return s, nil
	}

	s, err := r.factory(tenantID)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to create tenant store", err)
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	r.stores[tenantID] = s
	return s, nil
}

// TenantIDs returns the ids with an instantiated store.
func (r *Registry) TenantIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.stores))
	for id := range r.stores {
		ids = append(ids, id)
	}
	return ids
}

// SaveAll flushes every instantiated store. A failing tenant is logged and
// skipped so one bad snapshot cannot block the rest; the first error is
// returned after all stores were attempted.
func (r *Registry) SaveAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, s := range r.stores {
		if err := s.Save(ctx); err != nil {
			log.Printf("failed to save vector store for tenant %s: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Clear drops all cached stores without saving them.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]vectorstore.Store)
}
