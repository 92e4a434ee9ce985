package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"bankruptcywatch/ml"
)

// PerformanceTracker 记录每次训练的评估结果，按模型汇总
type PerformanceTracker struct {
	mu      sync.RWMutex
	runs    []RunRecord
	maxRuns int
}

// RunRecord 一次训练
type RunRecord struct {
	SessionID string         `json:"session_id"`
	Model     ml.ModelKind   `json:"model"`
	Params    map[string]any `json:"params"`
	Accuracy  float64        `json:"accuracy"`
	F1        float64        `json:"f1_score"`
	ROCAUC    *float64       `json:"roc_auc"`
	Timestamp time.Time      `json:"timestamp"`
}

// ModelPerformance 某个模型的汇总
type ModelPerformance struct {
	Model        ml.ModelKind `json:"model"`
	Runs         int          `json:"runs"`
	MeanAccuracy float64      `json:"mean_accuracy"`
	StdAccuracy  float64      `json:"std_accuracy"`
	BestAccuracy float64      `json:"best_accuracy"`
	LastAccuracy float64      `json:"last_accuracy"`
	MeanF1       float64      `json:"mean_f1_score"`
	LastRun      time.Time    `json:"last_run"`
}

// NewPerformanceTracker 只保留最近 maxRuns 次训练
func NewPerformanceTracker(maxRuns int) *PerformanceTracker {
	if maxRuns <= 0 {
		maxRuns = 1000
	}
	return &PerformanceTracker{
		runs:    make([]RunRecord, 0),
		maxRuns: maxRuns,
	}
}

func (pt *PerformanceTracker) RecordRun(sessionID string, report *ml.EvaluationReport) {
	if report == nil {
		return
	}
	ts := report.TrainedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.runs = append(pt.runs, RunRecord{
		SessionID: sessionID,
		Model:     report.Model,
		Params:    report.Params,
		Accuracy:  report.Accuracy,
		F1:        report.F1,
		ROCAUC:    report.ROCAUC,
		Timestamp: ts,
	})
	if over := len(pt.runs) - pt.maxRuns; over > 0 {
		pt.runs = append(pt.runs[:0:0], pt.runs[over:]...)
	}
}

// Summary 按模型名排序
func (pt *PerformanceTracker) Summary() []ModelPerformance {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	byModel := make(map[ml.ModelKind][]RunRecord)
	for _, r := range pt.runs {
		byModel[r.Model] = append(byModel[r.Model], r)
	}

	out := make([]ModelPerformance, 0, len(byModel))
	for model, runs := range byModel {
		acc := make([]float64, len(runs))
		f1 := make([]float64, len(runs))
		perf := ModelPerformance{Model: model, Runs: len(runs)}
		for i, r := range runs {
			acc[i] = r.Accuracy
			f1[i] = r.F1
			if r.Accuracy > perf.BestAccuracy {
				perf.BestAccuracy = r.Accuracy
			}
		}
		last := runs[len(runs)-1]
		perf.LastAccuracy = last.Accuracy
		perf.LastRun = last.Timestamp
		perf.MeanF1 = stat.Mean(f1, nil)
		if len(acc) > 1 {
			perf.MeanAccuracy, perf.StdAccuracy = stat.MeanStdDev(acc, nil)
		} else {
			perf.MeanAccuracy = acc[0]
		}
		out = append(out, perf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// GetRuns 最近的训练，新的在前
func (pt *PerformanceTracker) GetRuns(limit int) []RunRecord {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	if limit <= 0 || limit > len(pt.runs) {
		limit = len(pt.runs)
	}
	out := make([]RunRecord, 0, limit)
	for i := len(pt.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, pt.runs[i])
	}
	return out
}
