package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/mwassist/internal/domain"
)

func limiterIdentity() *domain.Identity {
	return &domain.Identity{TenantID: "wiki_a", UserID: 7, Username: "alice"}
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 9, 15, 30, 0, 0, time.UTC)
}

func newTestLimiter(limit int) (*Limiter, *MemoryRepository) {
	repo := NewMemoryRepository()
	l := NewLimiter(repo, limit)
	l.now = fixedNow
	return l, repo
}

func TestLimiter_NoUsageYet(t *testing.T) {
	l, _ := newTestLimiter(1000)

	status, err := l.CheckLimit(context.Background(), limiterIdentity())
	require.NoError(t, err)

	assert.Equal(t, 0, status.TokensUsed)
	assert.Equal(t, 1000, status.TokensRemaining)
	assert.False(t, status.IsLimited)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), status.ResetTime)
}

func TestLimiter_RecordThenCheck(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(1000)

	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{PromptTokens: 300, CompletionTokens: 100, TotalTokens: 400}))
	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{PromptTokens: 200, CompletionTokens: 50, TotalTokens: 250}))

	status, err := l.CheckLimit(ctx, limiterIdentity())
	require.NoError(t, err)

	assert.Equal(t, 650, status.TokensUsed)
	assert.Equal(t, 350, status.TokensRemaining)
	assert.Equal(t, 2, status.RequestsToday)
	assert.False(t, status.IsLimited)
}

func TestLimiter_EnforceRejectsWhenLimited(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(100)

	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{TotalTokens: 100}))

	status, err := l.Enforce(ctx, limiterIdentity())
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeQuotaExceeded, derr.Code)
	assert.True(t, status.IsLimited)
	assert.Equal(t, 0, status.TokensRemaining)
	assert.Contains(t, err.Error(), "2025-03-10T00:00:00Z")
}

func TestLimiter_OverLimitRemainingClampedToZero(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(100)

	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{TotalTokens: 250}))

	status, err := l.CheckLimit(ctx, limiterIdentity())
	require.NoError(t, err)
	assert.Equal(t, 250, status.TokensUsed)
	assert.Equal(t, 0, status.TokensRemaining)
	assert.True(t, status.IsLimited)
}

func TestLimiter_TenantsAndUsersIsolated(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(100)

	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{TotalTokens: 100}))

	otherUser := &domain.Identity{TenantID: "wiki_a", UserID: 8, Username: "bob"}
	status, err := l.CheckLimit(ctx, otherUser)
	require.NoError(t, err)
	assert.False(t, status.IsLimited)

	otherTenant := &domain.Identity{TenantID: "wiki_b", UserID: 7, Username: "alice"}
	status, err = l.CheckLimit(ctx, otherTenant)
	require.NoError(t, err)
	assert.False(t, status.IsLimited)
}

func TestLimiter_NewDayResetsQuota(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(100)

	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{TotalTokens: 100}))

	l.now = func() time.Time { return fixedNow().Add(24 * time.Hour) }

	status, err := l.CheckLimit(ctx, limiterIdentity())
	require.NoError(t, err)
	assert.Equal(t, 0, status.TokensUsed)
	assert.False(t, status.IsLimited)
}

func TestLimiter_History(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(1000)

	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{TotalTokens: 10}))
	l.now = func() time.Time { return fixedNow().Add(24 * time.Hour) }
	require.NoError(t, l.RecordUsage(ctx, limiterIdentity(), domain.TokenUsage{TotalTokens: 20}))

	records, err := l.History(ctx, limiterIdentity(), 30)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 20, records[0].TotalTokens)
	assert.Equal(t, 10, records[1].TotalTokens)
}
