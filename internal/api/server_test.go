package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/rewired-gh/polyfolio/internal/dashboard"
	"github.com/rewired-gh/polyfolio/internal/models"
	"github.com/rewired-gh/polyfolio/internal/ranking"
	"github.com/rewired-gh/polyfolio/internal/storage"
)

// Mock service for testing
type mockDashboardService struct {
	computeFunc func(ctx context.Context, params dashboard.QueryParameters) (*dashboard.Result, error)
	lastParams  dashboard.QueryParameters
}

func (m *mockDashboardService) Compute(ctx context.Context, params dashboard.QueryParameters) (*dashboard.Result, error) {
	m.lastParams = params
	if m.computeFunc != nil {
		return m.computeFunc(ctx, params)
	}
	return &dashboard.Result{
		CycleID: uuid.New(),
		Wallets: params.Wallets,
		Hours:   params.Hours,
		Metric:  params.Metric,
		Holdings: []models.EnrichedHolding{
			{Holding: models.Holding{Asset: "tok1", Wallet: "0xAAA", TotalPnl: 60}},
		},
		Summary: dashboard.Summary{TotalPnl: 60, CashBalance: 50000, CashIsPlaceholder: true},
	}, nil
}

func setupTestServer(svc DashboardService, store ResultStore) *Server {
	config := &ServerConfig{
		Host:           "localhost",
		Port:           8080,
		DefaultWallets: []string{"0xDEF"},
		DefaultHours:   12,
	}
	return NewServer(config, svc, store)
}

func doGet(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(&mockDashboardService{}, storage.New[*dashboard.Result](1))

	w := doGet(t, server, "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response["status"])
	}
}

func TestDashboardEndpoint(t *testing.T) {
	svc := &mockDashboardService{}
	server := setupTestServer(svc, storage.New[*dashboard.Result](1))

	w := doGet(t, server, "/api/dashboard?wallets=0xAAA,0xBBB&hours=6&wallet=0xAAA&metric=total_pnl&direction=losers")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	p := svc.lastParams
	if len(p.Wallets) != 2 || p.Hours != 6 || p.WalletFilter != "0xAAA" || p.Metric != ranking.TotalPnl || p.Direction != ranking.Losers {
		t.Errorf("Unexpected query parameters: %+v", p)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["metric"] != "total_pnl" {
		t.Errorf("Expected metric total_pnl, got %v", body["metric"])
	}
	summary := body["summary"].(map[string]interface{})
	if summary["cash_is_placeholder"] != true {
		t.Errorf("Expected cash placeholder flag, got %v", summary["cash_is_placeholder"])
	}
}

func TestDashboardEndpoint_Defaults(t *testing.T) {
	svc := &mockDashboardService{}
	server := setupTestServer(svc, storage.New[*dashboard.Result](1))

	tests := []struct {
		name        string
		target      string
		wantWallets int
		wantHours   int
	}{
		{"omitted uses configured defaults", "/api/dashboard", 1, 12},
		{"explicit empty wallets", "/api/dashboard?wallets=", 0, 12},
		{"invalid hours falls back", "/api/dashboard?hours=0", 1, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(t, server, tt.target)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if len(svc.lastParams.Wallets) != tt.wantWallets {
				t.Errorf("Expected %d wallets, got %v", tt.wantWallets, svc.lastParams.Wallets)
			}
			if svc.lastParams.Hours != tt.wantHours {
				t.Errorf("Expected hours %d, got %d", tt.wantHours, svc.lastParams.Hours)
			}
		})
	}
}

func TestDashboardEndpoint_InvalidInput(t *testing.T) {
	server := setupTestServer(&mockDashboardService{}, storage.New[*dashboard.Result](1))

	for _, target := range []string{
		"/api/dashboard?metric=volume",
		"/api/dashboard?direction=sideways",
	} {
		w := doGet(t, server, target)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, w.Code)
		}
		var resp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode error: %v", err)
		}
		if resp.Error.Code != ErrCodeInvalidInput {
			t.Errorf("Expected code %s, got %s", ErrCodeInvalidInput, resp.Error.Code)
		}
	}
}

func TestDashboardEndpoint_AggregateError(t *testing.T) {
	svc := &mockDashboardService{
		computeFunc: func(ctx context.Context, params dashboard.QueryParameters) (*dashboard.Result, error) {
			return nil, &dashboard.AggregateError{Stage: "report", Err: errors.New("holding tok1: size is not finite")}
		},
	}
	server := setupTestServer(svc, storage.New[*dashboard.Result](1))

	w := doGet(t, server, "/api/dashboard")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if resp.Error.Code != ErrCodeAggregateFailure {
		t.Errorf("Expected code %s, got %s", ErrCodeAggregateFailure, resp.Error.Code)
	}
	if resp.Error.Message == "" {
		t.Error("Expected a visible error message")
	}
}

func TestLatestAndHistoryEndpoints(t *testing.T) {
	store := storage.New[*dashboard.Result](3)
	server := setupTestServer(&mockDashboardService{}, store)

	if w := doGet(t, server, "/api/dashboard/latest"); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 before any refresh, got %d", w.Code)
	}

	first := &dashboard.Result{CycleID: uuid.New(), Hours: 24}
	second := &dashboard.Result{CycleID: uuid.New(), Hours: 48}
	if err := store.Put(1, first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(2, second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	w := doGet(t, server, "/api/dashboard/latest")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var latest dashboard.Result
	if err := json.NewDecoder(w.Body).Decode(&latest); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if latest.CycleID != second.CycleID {
		t.Errorf("Expected latest cycle %s, got %s", second.CycleID, latest.CycleID)
	}

	w = doGet(t, server, "/api/dashboard/history")
	var history []historyItem
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(history) != 2 || history[0].Generation != 2 || history[1].Hours != 24 {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(&mockDashboardService{}, storage.New[*dashboard.Result](1))

	w := doGet(t, server, "/api/metrics")
	var body struct {
		Metrics    []metricInfo `json:"metrics"`
		Directions []string     `json:"directions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Metrics) != 4 || body.Metrics[3].Name != "total_pnl" {
		t.Errorf("Unexpected metrics: %+v", body.Metrics)
	}
	if !body.Metrics[1].Percent {
		t.Error("Expected price change metric to be a percentage")
	}
	if len(body.Directions) != 2 || body.Directions[0] != "gainers" {
		t.Errorf("Unexpected directions: %v", body.Directions)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	svc := &mockDashboardService{
		computeFunc: func(ctx context.Context, params dashboard.QueryParameters) (*dashboard.Result, error) {
			panic("unexpected")
		},
	}
	server := setupTestServer(svc, storage.New[*dashboard.Result](1))

	w := doGet(t, server, "/api/dashboard")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := setupTestServer(&mockDashboardService{}, storage.New[*dashboard.Result](1))

	req := httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}
