package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
)

type usageKey struct {
	tenantID string
	userID   int64
	day      time.Time
}

// MemoryRepository is an in-process Repository, used in tests and
// single-node deployments without a database quota table.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[usageKey]*domain.UsageRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[usageKey]*domain.UsageRecord)}
}

func (r *MemoryRepository) Get(ctx context.Context, tenantID string, userID int64, day time.Time) (*domain.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[usageKey{tenantID, userID, day}]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *MemoryRepository) Increment(ctx context.Context, tenantID string, userID int64, day time.Time, usage domain.TokenUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := usageKey{tenantID, userID, day}
	record, ok := r.records[key]
	if !ok {
		record = &domain.UsageRecord{TenantID: tenantID, UserID: userID, UsageDate: day}
		r.records[key] = record
	}
	record.PromptTokens += usage.PromptTokens
	record.CompletionTokens += usage.CompletionTokens
	record.TotalTokens += usage.TotalTokens
	record.RequestCount++
	return nil
}

func (r *MemoryRepository) History(ctx context.Context, tenantID string, userID int64, days int) ([]domain.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]domain.UsageRecord, 0, days)
	for key, record := range r.records {
		if key.tenantID == tenantID && key.userID == userID {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UsageDate.After(records[j].UsageDate)
	})
	if len(records) > days {
		records = records[:days]
	}
	return records, nil
}
