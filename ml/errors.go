package ml

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyDataset is returned when a fit is attempted on zero rows.
	ErrEmptyDataset = errors.New("dataset has no rows")
	// ErrInvalidModel is returned for an unknown model kind.
	ErrInvalidModel = errors.New("unsupported model type")
)

// UnknownLabelError reports a target value outside the binary label set.
type UnknownLabelError struct {
	Row   int
	Value string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("row %d: unknown class label %q (expected %s)", e.Row, e.Value, strings.Join(KnownLabels(), ", "))
}

// FeatureTypeError reports a feature cell that is not numeric.
type FeatureTypeError struct {
	Column string
	Row    int
	Value  string
}

func (e *FeatureTypeError) Error() string {
	return fmt.Sprintf("row %d: feature %q is not numeric: %q", e.Row, e.Column, e.Value)
}

// FeatureMismatchError reports a prediction vector of the wrong length.
type FeatureMismatchError struct {
	Expected int
	Got      int
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("expected %d feature values, got %d", e.Expected, e.Got)
}

// UntrainedModelError is returned when a prediction is requested before any
// model has been trained in the session.
type UntrainedModelError struct{}

func (e *UntrainedModelError) Error() string {
	return "no trained model: train a model before making predictions"
}

// UnsupportedMetricError marks a metric that cannot be computed for a model
// or a test split. It degrades the report, it never aborts it.
type UnsupportedMetricError struct {
	Metric string
	Reason string
}

func (e *UnsupportedMetricError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Metric, e.Reason)
}

// ParamError reports a hyperparameter outside its allowed range.
type ParamError struct {
	Name  string
	Value int
	Min   int
	Max   int
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s must be in [%d, %d], got %d", e.Name, e.Min, e.Max, e.Value)
}
