package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/loreworks/mwassist/internal/api"
	"github.com/loreworks/mwassist/internal/api/middleware"
	"github.com/loreworks/mwassist/internal/domain"
)

type IndexService interface {
	UpsertPage(ctx context.Context, identity *domain.Identity, title string, chunks []string, namespace int, lastModified *time.Time) (int, error)
	DeletePage(ctx context.Context, identity *domain.Identity, title string) (int, error)
	Stats(ctx context.Context, identity *domain.Identity) (*domain.IndexStats, error)
}

type EmbeddingHandler struct {
	svc IndexService
}

func NewEmbeddingHandler(svc IndexService) *EmbeddingHandler {
	return &EmbeddingHandler{svc: svc}
}

type UpsertPageRequest struct {
	Title        string     `json:"title"`
	Chunks       []string   `json:"chunks"`
	Namespace    int        `json:"namespace"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

type UpsertPageResponse struct {
	Title         string `json:"title"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

func (h *EmbeddingHandler) UpsertPage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req UpsertPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.svc.UpsertPage(r.Context(), identity, req.Title, req.Chunks, req.Namespace, req.LastModified)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, UpsertPageResponse{Title: req.Title, ChunksIndexed: count})
}

type DeletePageRequest struct {
	Title string `json:"title"`
}

type DeletePageResponse struct {
	Title         string `json:"title"`
	ChunksRemoved int    `json:"chunks_removed"`
}

func (h *EmbeddingHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req DeletePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.svc.DeletePage(r.Context(), identity, req.Title)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeletePageResponse{Title: req.Title, ChunksRemoved: count})
}

func (h *EmbeddingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	stats, err := h.svc.Stats(r.Context(), identity)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, stats)
}
