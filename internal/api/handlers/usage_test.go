package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loreworks/mwassist/internal/domain"
)

type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) CheckLimit(ctx context.Context, identity *domain.Identity) (*domain.UsageStatus, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageStatus), args.Error(1)
}

func (m *MockUsageService) History(ctx context.Context, identity *domain.Identity, days int) ([]domain.UsageRecord, error) {
	args := m.Called(ctx, identity, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UsageRecord), args.Error(1)
}

func TestUsageHandler_Success(t *testing.T) {
	mockSvc := new(MockUsageService)
	handler := NewUsageHandler(mockSvc)

	today := domain.UsageDay(time.Now())
	mockSvc.On("CheckLimit", mock.Anything, mock.Anything).Return(&domain.UsageStatus{
		TokensUsed: 500, TokensRemaining: 9500, Limit: 10000, RequestsToday: 3,
	}, nil)
	mockSvc.On("History", mock.Anything, mock.Anything, 7).Return([]domain.UsageRecord{
		{TenantID: "wiki_a", UserID: 7, UsageDate: today, TotalTokens: 500, RequestCount: 3},
	}, nil)

	req := requestWithIdentity(http.MethodGet, "/usage?days=7", nil)
	w := httptest.NewRecorder()

	handler.Usage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data UsageResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 500, resp.Data.Status.TokensUsed)
	require.Len(t, resp.Data.History, 1)
	assert.Equal(t, 500, resp.Data.History[0].TotalTokens)
}

func TestUsageHandler_BadDays(t *testing.T) {
	handler := NewUsageHandler(new(MockUsageService))

	req := requestWithIdentity(http.MethodGet, "/usage?days=soon", nil)
	w := httptest.NewRecorder()

	handler.Usage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageHandler_EmptyHistoryNotNull(t *testing.T) {
	mockSvc := new(MockUsageService)
	handler := NewUsageHandler(mockSvc)

	mockSvc.On("CheckLimit", mock.Anything, mock.Anything).Return(&domain.UsageStatus{Limit: 10000}, nil)
	mockSvc.On("History", mock.Anything, mock.Anything, 0).Return(nil, nil)

	req := requestWithIdentity(http.MethodGet, "/usage", nil)
	w := httptest.NewRecorder()

	handler.Usage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":[]`)
}
