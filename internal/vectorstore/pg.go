package vectorstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/loreworks/mwassist/internal/domain"
)

// PgStore keeps one tenant's embeddings in a shared pgvector table, scoped by
// wiki_id. The extension's index handles nearest-neighbor ordering, so Save
// and Load are no-ops here.
type PgStore struct {
	pool     *pgxpool.Pool
	tenantID string
}

func NewPgStore(pool *pgxpool.Pool, tenantID string) *PgStore {
	return &PgStore{pool: pool, tenantID: tenantID}
}

func (s *PgStore) Add(ctx context.Context, records []domain.EmbeddingRecord, vectors [][]float32) (int, error) {
	if _, err := validateBatch(records, vectors, 0); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for i, rec := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO embeddings (wiki_id, page_title, section_id, namespace, content, last_modified, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.tenantID,
			rec.PageTitle,
			rec.SectionID,
			rec.Namespace,
			rec.Text,
			rec.LastModified,
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to insert embedding", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to commit embeddings", err)
	}
	return len(records), nil
}

func (s *PgStore) DeletePage(ctx context.Context, pageTitle string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM embeddings WHERE wiki_id = $1 AND page_title = $2`,
		s.tenantID, pageTitle,
	)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to delete page embeddings", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) Search(ctx context.Context, queryVector []float32, k int) ([]domain.SearchCandidate, error) {
	if k <= 0 {
		return []domain.SearchCandidate{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT page_title, section_id, namespace, content, last_modified,
		        1 - (embedding <=> $1) AS score
		 FROM embeddings
		 WHERE wiki_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(queryVector), s.tenantID, k,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "vector search failed", err)
	}
	defer rows.Close()

	results := make([]domain.SearchCandidate, 0, k)
	for rows.Next() {
		var c domain.SearchCandidate
		c.Record.TenantID = s.tenantID
		if err := rows.Scan(&c.Record.PageTitle, &c.Record.SectionID, &c.Record.Namespace,
			&c.Record.Text, &c.Record.LastModified, &c.Score); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to scan search result", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *PgStore) Rebuild(ctx context.Context, records []domain.EmbeddingRecord, vectors [][]float32) (int, error) {
	if len(records) > 0 || len(vectors) > 0 {
		if _, err := validateBatch(records, vectors, 0); err != nil {
			return 0, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM embeddings WHERE wiki_id = $1`, s.tenantID); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to clear embeddings", err)
	}

	for i, rec := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO embeddings (wiki_id, page_title, section_id, namespace, content, last_modified, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.tenantID,
			rec.PageTitle,
			rec.SectionID,
			rec.Namespace,
			rec.Text,
			rec.LastModified,
			pgvector.NewVector(vectors[i]),
		)
		if err != nil {
			return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to insert embedding", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to commit rebuild", err)
	}
	return len(records), nil
}

func (s *PgStore) ListPages(ctx context.Context, namespace *int, pattern string) ([]string, error) {
	query := `SELECT DISTINCT page_title FROM embeddings WHERE wiki_id = $1`
	args := []interface{}{s.tenantID}

	if namespace != nil {
		args = append(args, *namespace)
		query += ` AND namespace = $2`
	}
	if pattern != "" {
		args = append(args, "%"+pattern+"%")
		if namespace != nil {
			query += ` AND page_title ILIKE $3`
		} else {
			query += ` AND page_title ILIKE $2`
		}
	}
	query += ` ORDER BY page_title`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to list pages", err)
	}
	defer rows.Close()

	titles := make([]string, 0)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to scan page title", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (s *PgStore) Stats(ctx context.Context) (*domain.IndexStats, error) {
	stats := &domain.IndexStats{}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT page_title) FROM embeddings WHERE wiki_id = $1`,
		s.tenantID,
	).Scan(&stats.TotalVectors, &stats.TotalPages)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to compute index stats", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT page_title, MAX(last_modified)
		 FROM embeddings WHERE wiki_id = $1
		 GROUP BY page_title ORDER BY page_title`,
		s.tenantID,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to list index pages", err)
	}
	defer rows.Close()

	stats.Pages = make([]string, 0, stats.TotalPages)
	for rows.Next() {
		var title string
		var modified *time.Time
		if err := rows.Scan(&title, &modified); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to scan index page", err)
		}
		stats.Pages = append(stats.Pages, title)
		if modified != nil {
			if stats.PageTimestamps == nil {
				stats.PageTimestamps = make(map[string]time.Time)
			}
			stats.PageTimestamps[title] = *modified
		}
	}
	return stats, rows.Err()
}

// Save and Load are no-ops: durability comes from the database.
func (s *PgStore) Save(ctx context.Context) error { return nil }
func (s *PgStore) Load(ctx context.Context) error { return nil }
