package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"bankruptcywatch/db"
	"bankruptcywatch/ml"
	"bankruptcywatch/monitoring"
	"bankruptcywatch/pipeline"
	"bankruptcywatch/session"
)

// Handlers 会话、数据集、训练和预测接口
type Handlers struct {
	store    *session.Store
	pipeline *pipeline.Pipeline
	ingester *pipeline.DataIngester
	hub      *monitoring.WebSocketHub
	metrics  *monitoring.MetricsCollector
	perf     *monitoring.PerformanceTracker
	validate *validator.Validate
	logger   *zap.Logger

	maxUploadBytes int64
	// persist 为 false 时不写历史库（测试或未初始化数据库）
	persist bool
}

// Deps 处理器依赖
type Deps struct {
	Store          *session.Store
	Pipeline       *pipeline.Pipeline
	Ingester       *pipeline.DataIngester
	Hub            *monitoring.WebSocketHub
	Metrics        *monitoring.MetricsCollector
	Performance    *monitoring.PerformanceTracker
	Logger         *zap.Logger
	MaxUploadBytes int64
	Persist        bool
}

// NewHandlers 创建处理器
func NewHandlers(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	perf := d.Performance
	if perf == nil {
		perf = monitoring.NewPerformanceTracker(0)
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 16 << 20
	}
	return &Handlers{
		store:          d.Store,
		pipeline:       d.Pipeline,
		ingester:       d.Ingester,
		hub:            d.Hub,
		metrics:        metrics,
		perf:           perf,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger,
		maxUploadBytes: maxUpload,
		persist:        d.Persist,
	}
}

// Register 注册路由
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/dataset", h.handleUpload)
	mux.HandleFunc("GET /api/sessions/{id}/dataset", h.handleDownload)
	mux.HandleFunc("GET /api/sessions/{id}/summary", h.handleSummary)
	mux.HandleFunc("POST /api/sessions/{id}/train", h.handleTrain)
	mux.HandleFunc("GET /api/sessions/{id}/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/sessions/{id}/features", h.handleFeatures)
	mux.HandleFunc("POST /api/sessions/{id}/predict", h.handlePredict)

	h.registerDashboardRoutes(mux)
	if h.hub != nil {
		mux.HandleFunc("GET /api/ws", h.hub.HandleWebSocket)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	info := h.store.Create()
	h.metrics.SetGauge(monitoring.MetricSessions, float64(h.store.Len()), nil)
	writeJSON(w, http.StatusCreated, info)
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.Info(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.store.Delete(r.PathValue("id")) {
		writeErr(w, session.ErrNotFound)
		return
	}
	h.metrics.SetGauge(monitoring.MetricSessions, float64(h.store.Len()), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.Info(id); err != nil {
		writeErr(w, err)
		return
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.metrics.RecordUpload(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.RecordUpload(err)
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	table, err := h.ingester.Load(header.Filename, file, r.FormValue("charset"))
	if err != nil {
		h.metrics.RecordUpload(err)
		writeErr(w, err)
		return
	}

	out, err := h.store.Apply(id, pipeline.Upload{Source: header.Filename, Table: table})
	h.metrics.RecordUpload(err)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.publish(monitoring.DatasetUploaded, id, map[string]any{
		"source":             out.Upload.Source,
		"rows":               out.Upload.Rows,
		"cols":               out.Upload.Cols,
		"duplicates_removed": out.Upload.DuplicatesRemoved,
	})
	writeJSON(w, http.StatusOK, out.Upload)
}

// handleDownload 导出去重后的数据集
func (h *Handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.State(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if !state.HasDataset() {
		writeErr(w, pipeline.ErrNoDataset)
		return
	}
	payload, err := pipeline.EncodeXLSX(state.Cleaned)
	if err != nil {
		h.logger.Error("failed to encode dataset",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bankruptcy_cleaned.xlsx"`)
	w.Write(payload)
}

func (h *Handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.State(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if !state.HasDataset() {
		writeErr(w, pipeline.ErrNoDataset)
		return
	}

	rawRows, rawCols := state.Raw.Shape()
	writeJSON(w, http.StatusOK, map[string]any{
		"raw_rows":           rawRows,
		"raw_cols":           rawCols,
		"duplicates_removed": state.DuplicatesRemoved,
		"class_counts":       state.Dataset.ClassCounts(),
		"summary":            pipeline.Describe(state.Cleaned),
	})
}

// TrainRequest 训练请求
type TrainRequest struct {
	Model string `json:"model" validate:"required"`
	K     int    `json:"k" validate:"gte=0"`
}

func (h *Handlers) handleTrain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req TrainRequest
	if err := h.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	kind, err := ml.ParseModelKind(req.Model)
	if err != nil {
		writeErr(w, err)
		return
	}

	out, err := h.store.Apply(id, pipeline.Train{Spec: ml.ModelSpec{Kind: kind, K: req.K}})
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			h.metrics.RecordTraining(string(kind), 0, err)
		}
		writeErr(w, err)
		return
	}
	report := out.Report
	h.metrics.RecordTraining(string(kind), report.Accuracy, nil)
	h.perf.RecordRun(id, report)

	if h.persist {
		if err := db.SaveTrainingRun(id, report); err != nil {
			h.logger.Error("failed to save training run",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("session_id", id),
				zap.Error(err))
		}
	}
	h.publish(monitoring.ModelTrained, id, map[string]any{
		"model":    report.Model,
		"params":   report.Params,
		"accuracy": report.Accuracy,
		"roc_auc":  report.ROCAUCText(),
	})
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.State(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if state.LastReport == nil {
		writeErr(w, &ml.UntrainedModelError{})
		return
	}
	writeJSON(w, http.StatusOK, state.LastReport)
}

func (h *Handlers) handleFeatures(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.State(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if !state.HasModel() {
		writeErr(w, &ml.UntrainedModelError{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":         state.Model.Spec.Kind.DisplayName(),
		"feature_names": state.FeatureNames,
	})
}

// PredictRequest 预测请求，values 按训练特征顺序给出。长度由训练好的模型校验。
type PredictRequest struct {
	Values []float64 `json:"values"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req PredictRequest
	if err := h.decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	out, err := h.store.Apply(id, pipeline.Predict{Values: req.Values})
	if err != nil {
		writeErr(w, err)
		return
	}
	p := out.Prediction
	h.metrics.RecordPrediction(p.Label)

	if h.persist {
		if err := db.SavePrediction(id, p.Model, req.Values, p); err != nil {
			h.logger.Error("failed to save prediction",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("session_id", id),
				zap.Error(err))
		}
	}
	h.publish(monitoring.PredictionMade, id, p)
	writeJSON(w, http.StatusOK, p)
}

// RequestError 请求体无法解码
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return "invalid request body: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

func (h *Handlers) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		return &RequestError{Err: err}
	}
	return h.validate.Struct(v)
}

func (h *Handlers) publish(t monitoring.EventType, sessionID string, data any) {
	if h.hub == nil {
		return
	}
	if err := h.hub.Publish(t, sessionID, data); err != nil {
		h.logger.Warn("failed to publish event", zap.String("type", string(t)), zap.Error(err))
	}
}
