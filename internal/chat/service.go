package chat

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
	"github.com/loreworks/mwassist/internal/telemetry"
	"github.com/loreworks/mwassist/internal/vectorstore"
)

// SessionStore persists transcripts across turns.
type SessionStore interface {
	Create(ctx context.Context, identity *domain.Identity, firstMessage string) (*domain.ChatSession, error)
	History(ctx context.Context, identity *domain.Identity, sessionID string) ([]domain.ChatMessage, error)
	Append(ctx context.Context, identity *domain.Identity, sessionID string, messages []domain.ChatMessage, usage *domain.TokenUsage) error
}

// QuotaGate is the daily token limiter.
type QuotaGate interface {
	Enforce(ctx context.Context, identity *domain.Identity) (*domain.UsageStatus, error)
	RecordUsage(ctx context.Context, identity *domain.Identity, usage domain.TokenUsage) error
}

// StoreProvider resolves the tenant's vector store for prompt schema context.
type StoreProvider interface {
	Store(ctx context.Context, tenantID string) (vectorstore.Store, error)
}

// ConverseRequest is one user turn. An empty SessionID starts a new session.
type ConverseRequest struct {
	SessionID string
	Message   string
	Variant   string
}

// ConverseResult is the completed turn.
type ConverseResult struct {
	SessionID string
	Answer    string
	ToolLog   []domain.ToolLogEntry
	Usage     domain.TokenUsage
}

// Service runs complete conversational turns: quota gate, transcript
// assembly, the tool loop, persistence, and usage accounting.
type Service struct {
	loop     *Loop
	sessions SessionStore
	quota    QuotaGate
	stores   StoreProvider
}

func NewService(loop *Loop, sessions SessionStore, quota QuotaGate, stores StoreProvider) *Service {
	return &Service{loop: loop, sessions: sessions, quota: quota, stores: stores}
}

// Converse executes one turn. The quota check runs before any model call, so
// a limited user costs nothing. Usage is recorded once, after the loop
// completes; turns that error out mid-loop are not accounted.
func (s *Service) Converse(ctx context.Context, identity *domain.Identity, req ConverseRequest) (*ConverseResult, error) {
	if err := domain.ValidateIdentity(identity); err != nil {
		return nil, err
	}
	if req.Message == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.converse", telemetry.SpanAttributes{
		TenantID:  identity.TenantID,
		UserID:    strconv.FormatInt(identity.UserID, 10),
		Operation: "converse",
	})
	defer span.End()

	if _, err := s.quota.Enforce(ctx, identity); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	var history []domain.ChatMessage
	if sessionID == "" {
		session, err := s.sessions.Create(ctx, identity, req.Message)
		if err != nil {
			return nil, err
		}
		sessionID = session.SessionID
	} else {
		var err error
		history, err = s.sessions.History(ctx, identity, sessionID)
		if err != nil {
			return nil, err
		}
	}

	// Schema context is best-effort; a store failure degrades the prompt,
	// not the turn.
	var store vectorstore.Store
	if s.stores != nil {
		var err error
		store, err = s.stores.Store(ctx, identity.TenantID)
		if err != nil {
			log.Printf("failed to load store for prompt context, tenant %s: %v", identity.TenantID, err)
			store = nil
		}
	}

	userMessage := domain.ChatMessage{Role: domain.RoleUser, Content: req.Message, CreatedAt: time.Now().UTC()}
	transcript := make([]domain.ChatMessage, 0, len(history)+2)
	transcript = append(transcript, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: BuildSystemPrompt(ctx, req.Variant, store),
	})
	transcript = append(transcript, history...)
	transcript = append(transcript, userMessage)

	turn, err := s.loop.Run(ctx, identity, transcript)
	if err != nil {
		return nil, err
	}

	stored := append([]domain.ChatMessage{userMessage}, turn.Messages...)
	if err := s.sessions.Append(ctx, identity, sessionID, stored, &turn.Usage); err != nil {
		// The answer exists; losing persistence should not lose the turn.
		log.Printf("failed to persist chat turn for session %s: %v", sessionID, err)
	}

	// Unmetered usage is worse than a failed turn: if the spend cannot be
	// recorded, the turn errors out.
	if err := s.quota.RecordUsage(ctx, identity, turn.Usage); err != nil {
		return nil, err
	}

	return &ConverseResult{
		SessionID: sessionID,
		Answer:    turn.Answer,
		ToolLog:   turn.ToolLog,
		Usage:     turn.Usage,
	}, nil
}
