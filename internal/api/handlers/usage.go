package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/loreworks/mwassist/internal/api"
	"github.com/loreworks/mwassist/internal/api/middleware"
	"github.com/loreworks/mwassist/internal/domain"
)

type UsageService interface {
	CheckLimit(ctx context.Context, identity *domain.Identity) (*domain.UsageStatus, error)
	History(ctx context.Context, identity *domain.Identity, days int) ([]domain.UsageRecord, error)
}

type UsageHandler struct {
	svc UsageService
}

func NewUsageHandler(svc UsageService) *UsageHandler {
	return &UsageHandler{svc: svc}
}

type UsageResponse struct {
	Status  *domain.UsageStatus  `json:"status"`
	History []domain.UsageRecord `json:"history"`
}

func (h *UsageHandler) Usage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}

	status, err := h.svc.CheckLimit(r.Context(), identity)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	history, err := h.svc.History(r.Context(), identity, days)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if history == nil {
		history = []domain.UsageRecord{}
	}

	api.Success(w, http.StatusOK, UsageResponse{Status: status, History: history})
}
