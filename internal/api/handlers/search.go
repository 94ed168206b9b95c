package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/loreworks/mwassist/internal/api"
	"github.com/loreworks/mwassist/internal/api/middleware"
	"github.com/loreworks/mwassist/internal/domain"
)

type SearchService interface {
	Search(ctx context.Context, identity *domain.Identity, query string, k int) ([]domain.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type SearchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.svc.Search(r.Context(), identity, req.Query, req.K)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	api.Success(w, http.StatusOK, SearchResponse{Query: req.Query, Results: results})
}
