// Package usage enforces the per-user daily token quota.
package usage

import (
	"context"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
)

// Repository persists per-day usage records.
type Repository interface {
	// Get returns the record for (tenant, user, day), or nil when none exists.
	Get(ctx context.Context, tenantID string, userID int64, day time.Time) (*domain.UsageRecord, error)

	// Increment atomically creates or bumps the record for (tenant, user, day).
	Increment(ctx context.Context, tenantID string, userID int64, day time.Time, usage domain.TokenUsage) error

	// History returns the most recent records for (tenant, user), newest
	// first, up to days entries.
	History(ctx context.Context, tenantID string, userID int64, days int) ([]domain.UsageRecord, error)
}

// Limiter gates chat turns on the daily token quota. The check runs before
// any model call so a rejected turn costs nothing.
type Limiter struct {
	repo  Repository
	limit int
	now   func() time.Time
}

func NewLimiter(repo Repository, dailyLimit int) *Limiter {
	return &Limiter{repo: repo, limit: dailyLimit, now: time.Now}
}

// CheckLimit reports today's usage for the caller. Absence of a record means
// zero usage. A repository error propagates; the caller decides whether to
// fail the turn.
func (l *Limiter) CheckLimit(ctx context.Context, identity *domain.Identity) (*domain.UsageStatus, error) {
	now := l.now()
	record, err := l.repo.Get(ctx, identity.TenantID, identity.UserID, domain.UsageDay(now))
	if err != nil {
		return nil, err
	}

	status := &domain.UsageStatus{
		Limit:     l.limit,
		ResetTime: domain.NextUTCMidnight(now),
	}
	if record != nil {
		status.TokensUsed = record.TotalTokens
		status.RequestsToday = record.RequestCount
	}
	status.TokensRemaining = l.limit - status.TokensUsed
	if status.TokensRemaining < 0 {
		status.TokensRemaining = 0
	}
	status.IsLimited = status.TokensUsed >= l.limit
	return status, nil
}

// Enforce is CheckLimit plus the rejection: a limited caller gets a
// QUOTA_EXCEEDED error carrying the reset time in its message.
func (l *Limiter) Enforce(ctx context.Context, identity *domain.Identity) (*domain.UsageStatus, error) {
	status, err := l.CheckLimit(ctx, identity)
	if err != nil {
		return nil, err
	}
	if status.IsLimited {
		return status, domain.NewDomainError(domain.ErrCodeQuotaExceeded,
			"daily token quota exceeded, resets at "+status.ResetTime.Format(time.RFC3339))
	}
	return status, nil
}

// RecordUsage accounts one completed turn. Called once after the loop
// finishes; partial turns are not separately accounted.
func (l *Limiter) RecordUsage(ctx context.Context, identity *domain.Identity, usage domain.TokenUsage) error {
	return l.repo.Increment(ctx, identity.TenantID, identity.UserID, domain.UsageDay(l.now()), usage)
}

// History exposes recent daily records for the admin surface.
func (l *Limiter) History(ctx context.Context, identity *domain.Identity, days int) ([]domain.UsageRecord, error) {
	if days <= 0 || days > 90 {
		days = 30
	}
	return l.repo.History(ctx, identity.TenantID, identity.UserID, days)
}
