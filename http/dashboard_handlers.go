package http

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bankruptcywatch/db"
	"bankruptcywatch/monitoring"
)

const defaultHistoryLimit = 50

func (h *Handlers) registerDashboardRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("GET /metrics", h.handlePrometheus)
}

// handleHistory 训练和预测历史
func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !h.persist {
		writeError(w, http.StatusServiceUnavailable, "history database not initialized")
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil {
			limit = l
		}
	}

	runs, err := db.LoadTrainingLog(limit)
	if err != nil {
		h.logger.Error("failed to load training log", zap.Error(err))
		writeErr(w, err)
		return
	}
	predictions, err := db.LoadPredictions(limit)
	if err != nil {
		h.logger.Error("failed to load predictions", zap.Error(err))
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"training_runs": runs,
		"predictions":   predictions,
		"limit":         limit,
		"timestamp":     time.Now(),
	})
}

// handleStats 服务运行状态
func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"system":   h.metrics.GetSystemStats(),
		"sessions": h.store.Len(),
		"metrics":  h.metrics.GetAllMetrics(),
		"models":   h.perf.Summary(),
		"runs":     h.perf.GetRuns(10),
	}
	if h.pipeline != nil {
		stats["limits"] = h.pipeline.Limits()
		stats["cleaning"] = h.pipeline.CleaningStats()
	}
	if h.ingester != nil {
		stats["ingestion"] = h.ingester.GetStats()
	}
	if h.hub != nil {
		stats["websocket"] = h.hub.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

// handlePrometheus Prometheus 抓取端点
func (h *Handlers) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	h.metrics.SetGauge(monitoring.MetricSessions, float64(h.store.Len()), nil)
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(h.metrics.ExportPrometheus()))
}
