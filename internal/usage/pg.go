package usage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreworks/mwassist/internal/domain"
)

// PgRepository persists usage records in the token_usage table.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Get(ctx context.Context, tenantID string, userID int64, day time.Time) (*domain.UsageRecord, error) {
	record := &domain.UsageRecord{TenantID: tenantID, UserID: userID, UsageDate: day}
	err := r.pool.QueryRow(ctx,
		`SELECT prompt_tokens, completion_tokens, total_tokens, request_count
		 FROM token_usage
		 WHERE wiki_id = $1 AND user_id = $2 AND usage_date = $3`,
		tenantID, userID, day,
	).Scan(&record.PromptTokens, &record.CompletionTokens, &record.TotalTokens, &record.RequestCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to read usage record", err)
	}
	return record, nil
}

func (r *PgRepository) Increment(ctx context.Context, tenantID string, userID int64, day time.Time, usage domain.TokenUsage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO token_usage (wiki_id, user_id, usage_date, prompt_tokens, completion_tokens, total_tokens, request_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, now())
		 ON CONFLICT (wiki_id, user_id, usage_date) DO UPDATE SET
		     prompt_tokens = token_usage.prompt_tokens + EXCLUDED.prompt_tokens,
		     completion_tokens = token_usage.completion_tokens + EXCLUDED.completion_tokens,
		     total_tokens = token_usage.total_tokens + EXCLUDED.total_tokens,
		     request_count = token_usage.request_count + 1,
		     updated_at = now()`,
		tenantID, userID, day, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
	)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to record usage", err)
	}
	return nil
}

func (r *PgRepository) History(ctx context.Context, tenantID string, userID int64, days int) ([]domain.UsageRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT usage_date, prompt_tokens, completion_tokens, total_tokens, request_count
		 FROM token_usage
		 WHERE wiki_id = $1 AND user_id = $2
		 ORDER BY usage_date DESC
		 LIMIT $3`,
		tenantID, userID, days,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to read usage history", err)
	}
	defer rows.Close()

	records := make([]domain.UsageRecord, 0, days)
	for rows.Next() {
		record := domain.UsageRecord{TenantID: tenantID, UserID: userID}
		if err := rows.Scan(&record.UsageDate, &record.PromptTokens, &record.CompletionTokens,
			&record.TotalTokens, &record.RequestCount); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to scan usage record", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
