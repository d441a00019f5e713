package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/polyfolio/internal/dashboard"
	"github.com/rewired-gh/polyfolio/internal/ranking"
)

// handleDashboard handles GET /api/dashboard - run one query cycle.
// Query: wallets (comma-separated), hours, wallet, metric, direction.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	wallets := strings.Join(s.config.DefaultWallets, ",")
	if q.Has("wallets") {
		wallets = q.Get("wallets")
	}
	hours := strconv.Itoa(s.config.DefaultHours)
	if q.Has("hours") {
		hours = q.Get("hours")
	}

	params, err := dashboard.ParseQuery(wallets, hours, q.Get("wallet"), q.Get("metric"), q.Get("direction"), s.config.StrictAddresses)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	result, err := s.service.Compute(r.Context(), params)
	if err != nil {
		statusCode, code, message := mapServiceError(err)
		respondError(w, statusCode, code, message)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleLatest handles GET /api/dashboard/latest - the last background refresh.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.store.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No dashboard result available yet")
		return
	}
	respondJSON(w, http.StatusOK, entry.Value)
}

type historyItem struct {
	Generation uint64            `json:"generation"`
	StoredAt   time.Time         `json:"stored_at"`
	CycleID    uuid.UUID         `json:"cycle_id"`
	Hours      int               `json:"hours"`
	Summary    dashboard.Summary `json:"summary"`
	Holdings   int               `json:"holdings"`
	Trades     int               `json:"trades"`
}

// handleHistory handles GET /api/dashboard/history - summaries of stored refreshes, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.store.History()
	items := make([]historyItem, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		res := entries[i].Value
		items = append(items, historyItem{
			Generation: entries[i].Generation,
			StoredAt:   entries[i].StoredAt,
			CycleID:    res.CycleID,
			Hours:      res.Hours,
			Summary:    res.Summary,
			Holdings:   len(res.Holdings),
			Trades:     len(res.Trades),
		})
	}
	respondJSON(w, http.StatusOK, items)
}

type metricInfo struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Percent bool   `json:"percent"`
}

// handleMetrics handles GET /api/metrics - the selectable ranking metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := ranking.Metrics()
	out := make([]metricInfo, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, metricInfo{Name: m.String(), Label: m.Label(), Percent: m.IsPercent()})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":    out,
		"directions": []ranking.Direction{ranking.Gainers, ranking.Losers},
	})
}

// mapServiceError maps service errors to HTTP status codes.
func mapServiceError(err error) (int, string, string) {
	var aggErr *dashboard.AggregateError
	if errors.As(err, &aggErr) {
		return http.StatusInternalServerError, ErrCodeAggregateFailure, aggErr.Error()
	}
	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}
