package ml

import (
	"errors"
	"testing"
)

func TestKNNTieGoesToNonBankruptcy(t *testing.T) {
	m := NewKNN(2)
	if err := m.Fit([][]float64{{0}, {1}}, []int{1, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pred, err := m.Predict([][]float64{{0.5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred[0] != 0 {
		t.Fatalf("expected tie to resolve to class 0, got %d", pred[0])
	}
}

func TestKNNNearestNeighbors(t *testing.T) {
	m := NewKNN(3)
	X := [][]float64{{0, 0}, {0.1, 0}, {0, 0.1}, {5, 5}, {5.1, 5}, {5, 5.1}}
	y := []int{0, 0, 0, 1, 1, 1}
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proba, err := m.PredictProba([][]float64{{0.05, 0.05}, {4.9, 5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[0][0] != 1 || proba[1][1] != 1 {
		t.Fatalf("unexpected probabilities: %v", proba)
	}
}

func TestKNNRejectsKLargerThanTrainingSet(t *testing.T) {
	m := NewKNN(4)
	if err := m.Fit([][]float64{{0}, {1}}, []int{0, 1}); err == nil {
		t.Fatalf("expected error when k exceeds the training rows")
	}
}

func TestLogisticRegressionLearnsDirection(t *testing.T) {
	m := NewLogisticRegression(DefaultLogisticOptions())
	X := [][]float64{{-2}, {-1.5}, {-1}, {1}, {1.5}, {2}}
	y := []int{0, 0, 0, 1, 1, 1}
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Coef[0] <= 0 {
		t.Fatalf("expected positive coefficient, got %v", m.Coef[0])
	}
	pred, err := m.Predict([][]float64{{-3}, {3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred[0] != 0 || pred[1] != 1 {
		t.Fatalf("unexpected predictions: %v", pred)
	}
	proba, _ := m.PredictProba([][]float64{{0.5}})
	if sum := proba[0][0] + proba[0][1]; sum < 1-1e-12 || sum > 1+1e-12 {
		t.Fatalf("probabilities do not sum to 1: %v", proba[0])
	}
}

func TestLogisticRegressionUnfitted(t *testing.T) {
	m := NewLogisticRegression(LogisticOptions{})
	if _, err := m.Predict([][]float64{{1}}); err == nil {
		t.Fatalf("expected error from unfitted model")
	}
}

func TestNewClassifierValidatesK(t *testing.T) {
	opts := DefaultTrainOptions()
	for _, k := range []int{0, 21} {
		_, err := NewClassifier(ModelSpec{Kind: KNNKind, K: k}, opts)
		var paramErr *ParamError
		if !errors.As(err, &paramErr) {
			t.Fatalf("k=%d: expected ParamError, got %v", k, err)
		}
	}
	for _, k := range []int{1, 20} {
		if _, err := NewClassifier(ModelSpec{Kind: KNNKind, K: k}, opts); err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
	}
	if _, err := NewClassifier(ModelSpec{Kind: "svm"}, opts); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestParseModelKind(t *testing.T) {
	cases := map[string]ModelKind{
		"Logistic Regression": LogisticRegressionKind,
		"logistic_regression": LogisticRegressionKind,
		"KNN":                 KNNKind,
	}
	for in, want := range cases {
		got, err := ParseModelKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseModelKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseModelKind("random forest"); err == nil {
		t.Fatalf("expected error for unknown model")
	}
}
