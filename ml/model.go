package ml

import (
	"fmt"
	"strings"
)

// Classifier is a binary classifier over labels {0, 1}.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
}

// ProbabilisticClassifier additionally exposes class probabilities. Each row of
// PredictProba is a distribution over {0, 1}.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X [][]float64) ([][]float64, error)
}

// ModelKind names a supported classifier.
type ModelKind string

const (
	LogisticRegressionKind ModelKind = "logistic_regression"
	KNNKind                ModelKind = "knn"
)

// ParseModelKind accepts the API names as well as the display names used by
// the dashboard ("Logistic Regression", "KNN").
func ParseModelKind(s string) (ModelKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logistic_regression", "logistic regression", "logistic":
		return LogisticRegressionKind, nil
	case "knn", "k_nearest_neighbors", "k-nearest neighbors":
		return KNNKind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidModel, s)
	}
}

// DisplayName returns the dashboard label.
func (k ModelKind) DisplayName() string {
	switch k {
	case LogisticRegressionKind:
		return "Logistic Regression"
	case KNNKind:
		return "KNN"
	default:
		return string(k)
	}
}

// ModelSpec is the user's model choice.
type ModelSpec struct {
	Kind ModelKind `json:"kind"`
	K    int       `json:"k,omitempty"`
}

// Params returns the hyperparameters recorded alongside a run.
func (s ModelSpec) Params() map[string]any {
	if s.Kind == KNNKind {
		return map[string]any{"n_neighbors": s.K}
	}
	return map[string]any{}
}

// NewClassifier builds an unfitted classifier for spec.
func NewClassifier(spec ModelSpec, opts TrainOptions) (Classifier, error) {
	switch spec.Kind {
	case LogisticRegressionKind:
		return NewLogisticRegression(opts.Logistic), nil
	case KNNKind:
		maxK := opts.MaxNeighbors
		if maxK <= 0 {
			maxK = DefaultMaxNeighbors
		}
		if spec.K < 1 || spec.K > maxK {
			return nil, &ParamError{Name: "k", Value: spec.K, Min: 1, Max: maxK}
		}
		return NewKNN(spec.K), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, spec.Kind)
	}
}
