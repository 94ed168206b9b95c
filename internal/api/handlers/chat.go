package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loreworks/mwassist/internal/api"
	"github.com/loreworks/mwassist/internal/api/middleware"
	"github.com/loreworks/mwassist/internal/chat"
	"github.com/loreworks/mwassist/internal/domain"
)

type ChatService interface {
	Converse(ctx context.Context, identity *domain.Identity, req chat.ConverseRequest) (*chat.ConverseResult, error)
}

type SessionService interface {
	List(ctx context.Context, identity *domain.Identity) ([]domain.ChatSession, error)
	Get(ctx context.Context, identity *domain.Identity, sessionID string) (*domain.ChatSession, error)
	History(ctx context.Context, identity *domain.Identity, sessionID string) ([]domain.ChatMessage, error)
	Delete(ctx context.Context, identity *domain.Identity, sessionID string) error
}

type ChatHandler struct {
	svc      ChatService
	sessions SessionService
}

func NewChatHandler(svc ChatService, sessions SessionService) *ChatHandler {
	return &ChatHandler{svc: svc, sessions: sessions}
}

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Variant   string `json:"variant,omitempty"`
}

type ChatResponse struct {
	SessionID string                `json:"session_id"`
	Answer    string                `json:"answer"`
	ToolLog   []domain.ToolLogEntry `json:"tool_log,omitempty"`
	Usage     domain.TokenUsage     `json:"usage"`
}

func (h *ChatHandler) Converse(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.svc.Converse(r.Context(), identity, chat.ConverseRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Variant:   req.Variant,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Answer:    result.Answer,
		ToolLog:   result.ToolLog,
		Usage:     result.Usage,
	})
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func sessionToResponse(s *domain.ChatSession) SessionResponse {
	return SessionResponse{
		SessionID: s.SessionID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	sessions, err := h.sessions.List(r.Context(), identity)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessionToResponse(&sessions[i]))
	}
	api.Success(w, http.StatusOK, out)
}

type SessionDetailResponse struct {
	SessionResponse
	Messages []MessageResponse `json:"messages"`
}

type MessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	sessionID := chi.URLParam(r, "id")

	session, err := h.sessions.Get(r.Context(), identity, sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	history, err := h.sessions.History(r.Context(), identity, sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SessionDetailResponse{SessionResponse: sessionToResponse(session)}
	for _, msg := range history {
		// Tool plumbing stays internal; callers see the conversation.
		if msg.Role == domain.RoleTool || (msg.Role == domain.RoleAssistant && msg.Content == "") {
			continue
		}
		resp.Messages = append(resp.Messages, MessageResponse{Role: msg.Role, Content: msg.Content})
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.Delete(r.Context(), identity, sessionID); err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusNoContent, nil)
}
