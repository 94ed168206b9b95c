// Package sessions persists conversation transcripts.
package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreworks/mwassist/internal/domain"
)

// maxSessionsListed bounds the session listing per user.
const maxSessionsListed = 50

// Store reads and writes chat sessions and their messages. Every query is
// keyed on (tenant, owner) so one user can never touch another's transcript.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create opens a new session titled after the first user message.
func (s *Store) Create(ctx context.Context, identity *domain.Identity, firstMessage string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{
		SessionID:   uuid.NewString(),
		TenantID:    identity.TenantID,
		OwnerUserID: identity.UserID,
		Title:       domain.SessionTitleFromMessage(firstMessage),
		CreatedAt:   time.Now().UTC(),
	}
	session.UpdatedAt = session.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, wiki_id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.SessionID, session.TenantID, session.OwnerUserID, session.Title,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to create chat session", err)
	}
	return session, nil
}

// Get fetches one session owned by the caller.
func (s *Store) Get(ctx context.Context, identity *domain.Identity, sessionID string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{SessionID: sessionID, TenantID: identity.TenantID}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, title, created_at, updated_at
		 FROM chat_sessions
		 WHERE id = $1 AND wiki_id = $2 AND user_id = $3`,
		sessionID, identity.TenantID, identity.UserID,
	).Scan(&session.OwnerUserID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to load chat session", err)
	}
	return session, nil
}

// List returns the caller's sessions, most recently updated first.
func (s *Store) List(ctx context.Context, identity *domain.Identity) ([]domain.ChatSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at
		 FROM chat_sessions
		 WHERE wiki_id = $1 AND user_id = $2
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		identity.TenantID, identity.UserID, maxSessionsListed,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to list chat sessions", err)
	}
	defer rows.Close()

	sessions := make([]domain.ChatSession, 0)
	for rows.Next() {
		session := domain.ChatSession{TenantID: identity.TenantID, OwnerUserID: identity.UserID}
		if err := rows.Scan(&session.SessionID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to scan chat session", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, identity *domain.Identity, sessionID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM chat_sessions WHERE id = $1 AND wiki_id = $2 AND user_id = $3`,
		sessionID, identity.TenantID, identity.UserID,
	)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to delete chat session", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// History loads a session's transcript in insertion order.
func (s *Store) History(ctx context.Context, identity *domain.Identity, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := s.Get(ctx, identity, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT role, content, tool_calls, tool_call_id, created_at
		 FROM chat_messages
		 WHERE session_id = $1
		 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to load chat history", err)
	}
	defer rows.Close()

	messages := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var msg domain.ChatMessage
		var toolCalls []byte
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &msg.ToolCallID, &msg.CreatedAt); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to scan chat message", err)
		}
		if len(toolCalls) > 0 {
			if err := json.Unmarshal(toolCalls, &msg.ToolCalls); err != nil {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "corrupt tool call metadata", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Append stores a turn's messages and bumps the session timestamp. The turn's
// token usage is attached to the last message.
func (s *Store) Append(ctx context.Context, identity *domain.Identity, sessionID string, messages []domain.ChatMessage, usage *domain.TokenUsage) error {
	if len(messages) == 0 {
		return nil
	}
	if _, err := s.Get(ctx, identity, sessionID); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for i, msg := range messages {
		var toolCalls interface{}
		if len(msg.ToolCalls) > 0 {
			payload, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to encode tool calls", err)
			}
			toolCalls = payload
		}

		var usagePayload interface{}
		if usage != nil && i == len(messages)-1 {
			payload, err := json.Marshal(usage)
			if err != nil {
				return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to encode token usage", err)
			}
			usagePayload = payload
		}

		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO chat_messages (session_id, role, content, tool_calls, tool_call_id, token_usage, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sessionID, msg.Role, msg.Content, toolCalls, msg.ToolCallID, usagePayload, createdAt,
		)
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store chat message", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = now() WHERE id = $1`, sessionID); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to touch chat session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to commit chat messages", err)
	}
	return nil
}
