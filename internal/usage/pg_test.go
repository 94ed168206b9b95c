//go:build integration

package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/testutil"
)

func TestPgRepository_IncrementAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPgRepository(pool)
	day := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	record, err := repo.Get(ctx, "wiki_a", 7, day)
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, repo.Increment(ctx, "wiki_a", 7, day, domain.TokenUsage{PromptTokens: 100, CompletionTokens: 40, TotalTokens: 140}))
	require.NoError(t, repo.Increment(ctx, "wiki_a", 7, day, domain.TokenUsage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60}))

	record, err = repo.Get(ctx, "wiki_a", 7, day)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 150, record.PromptTokens)
	assert.Equal(t, 50, record.CompletionTokens)
	assert.Equal(t, 200, record.TotalTokens)
	assert.Equal(t, 2, record.RequestCount)

	// Other tenants and users stay at zero.
	record, err = repo.Get(ctx, "wiki_b", 7, day)
	require.NoError(t, err)
	assert.Nil(t, record)
	record, err = repo.Get(ctx, "wiki_a", 8, day)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPgRepository_History(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewPgRepository(pool)
	day1 := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Increment(ctx, "wiki_a", 7, day1, domain.TokenUsage{TotalTokens: 10}))
	require.NoError(t, repo.Increment(ctx, "wiki_a", 7, day2, domain.TokenUsage{TotalTokens: 20}))

	records, err := repo.History(ctx, "wiki_a", 7, 30)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 20, records[0].TotalTokens)
	assert.Equal(t, 10, records[1].TotalTokens)
}
