package db

import (
	"path/filepath"
	"testing"
	"time"

	"bankruptcywatch/ml"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := InitDB(filepath.Join(t.TempDir(), "history", "test.db")); err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestTrainingLogRoundTrip(t *testing.T) {
	initTestDB(t)

	auc := 0.91
	first := &ml.EvaluationReport{
		Model:     ml.KNNKind,
		Params:    map[string]any{"n_neighbors": 5},
		Accuracy:  0.88,
		Precision: 0.9,
		Recall:    0.85,
		F1:        0.874,
		ROCAUC:    &auc,
		TrainRows: 200,
		TestRows:  50,
		TrainedAt: time.Now().UTC().Add(-time.Minute),
	}
	second := &ml.EvaluationReport{
		Model:     ml.LogisticRegressionKind,
		Params:    map[string]any{},
		Accuracy:  0.96,
		TrainRows: 200,
		TestRows:  50,
		TrainedAt: time.Now().UTC(),
	}
	for _, r := range []*ml.EvaluationReport{first, second} {
		if err := SaveTrainingRun("session-1", r); err != nil {
			t.Fatalf("SaveTrainingRun() error = %v", err)
		}
	}

	logs, err := LoadTrainingLog(0)
	if err != nil {
		t.Fatalf("LoadTrainingLog() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(logs))
	}
	if logs[0].ModelName != string(ml.LogisticRegressionKind) {
		t.Fatalf("expected newest run first, got %s", logs[0].ModelName)
	}
	if logs[0].ROCAUC != nil {
		t.Fatalf("expected NULL roc_auc, got %v", *logs[0].ROCAUC)
	}
	if logs[1].ROCAUC == nil || *logs[1].ROCAUC != auc {
		t.Fatalf("roc_auc not stored: %v", logs[1].ROCAUC)
	}
	if logs[1].Params["n_neighbors"] != float64(5) {
		t.Fatalf("params not stored: %v", logs[1].Params)
	}

	limited, err := LoadTrainingLog(1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("LoadTrainingLog(1) = %d rows, %v", len(limited), err)
	}
}

func TestSavePrediction(t *testing.T) {
	initTestDB(t)

	p := &ml.Prediction{Class: 1, Label: ml.BankruptcyLabel, Confidence: 0.8, HasConfidence: true}
	if err := SavePrediction("session-2", ml.KNNKind, []float64{0, 0.5, 1, 1, 0.5, 0}, p); err != nil {
		t.Fatalf("SavePrediction() error = %v", err)
	}

	logs, err := LoadPredictions(10)
	if err != nil {
		t.Fatalf("LoadPredictions() error = %v", err)
	}
	if len(logs) != 1 || logs[0].Label != ml.BankruptcyLabel || len(logs[0].Features) != 6 {
		t.Fatalf("unexpected prediction log: %+v", logs)
	}
	if logs[0].Confidence == nil || *logs[0].Confidence != 0.8 {
		t.Fatalf("confidence not stored: %v", logs[0].Confidence)
	}
}

func TestUninitialized(t *testing.T) {
	Close()
	if err := SaveTrainingRun("s", &ml.EvaluationReport{}); err == nil {
		t.Fatalf("expected error before InitDB")
	}
	if _, err := LoadTrainingLog(0); err == nil {
		t.Fatalf("expected error before InitDB")
	}
}
