package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// LogisticOptions are the L2-regularized logistic regression hyperparameters.
type LogisticOptions struct {
	C       float64 `json:"c"`
	MaxIter int     `json:"max_iter"`
	Tol     float64 `json:"tol"`
}

// DefaultLogisticOptions mirrors the usual library defaults.
func DefaultLogisticOptions() LogisticOptions {
	return LogisticOptions{C: 1.0, MaxIter: 100, Tol: 1e-4}
}

// LogisticRegression is a binary logistic regression fit with L-BFGS. The
// intercept is not regularized.
type LogisticRegression struct {
	Coef      []float64       `json:"coef"`
	Intercept float64         `json:"intercept"`
	Options   LogisticOptions `json:"options"`
}

// NewLogisticRegression returns an unfitted model.
func NewLogisticRegression(opts LogisticOptions) *LogisticRegression {
	def := DefaultLogisticOptions()
	if opts.C <= 0 {
		opts.C = def.C
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = def.MaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = def.Tol
	}
	return &LogisticRegression{Options: opts}
}

// Fit minimizes mean log-loss plus ||w||²/(2Cn).
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmptyDataset
	}
	if len(X) != len(y) {
		return errors.New("features and labels size mismatch")
	}
	n := float64(len(X))
	d := len(X[0])
	penalty := 1 / (m.Options.C * n)

	target := make([]float64, len(y))
	for i, label := range y {
		target[i] = float64(label)
	}

	// params = [w_0 .. w_{d-1}, b]
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			w, b := params[:d], params[d]
			loss := 0.0
			for i, row := range X {
				z := floats.Dot(w, row) + b
				loss += log1pExp(z) - target[i]*z
			}
			return loss/n + 0.5*penalty*floats.Dot(w, w)
		},
		Grad: func(grad, params []float64) {
			w, b := params[:d], params[d]
			for j := range grad {
				grad[j] = 0
			}
			gw := grad[:d]
			for i, row := range X {
				r := sigmoid(floats.Dot(w, row)+b) - target[i]
				floats.AddScaled(gw, r, row)
				grad[d] += r
			}
			floats.Scale(1/n, grad)
			floats.AddScaled(gw, penalty, w)
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: m.Options.Tol,
		MajorIterations:   m.Options.MaxIter,
	}
	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if err != nil {
		// the line search can stall right next to the optimum
		if result == nil || result.Gradient == nil || floats.Norm(result.Gradient, math.Inf(1)) > math.Sqrt(m.Options.Tol) {
			return fmt.Errorf("logistic regression did not converge: %w", err)
		}
	}

	m.Coef = append([]float64(nil), result.X[:d]...)
	m.Intercept = result.X[d]
	return nil
}

func (m *LogisticRegression) fitted() error {
	if m.Coef == nil {
		return errors.New("model not trained")
	}
	return nil
}

// PredictProba returns [p(0), p(1)] for every row.
func (m *LogisticRegression) PredictProba(X [][]float64) ([][]float64, error) {
	if err := m.fitted(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Coef) {
			return nil, &FeatureMismatchError{Expected: len(m.Coef), Got: len(row)}
		}
		p := sigmoid(floats.Dot(m.Coef, row) + m.Intercept)
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

// Predict thresholds p(1) at 0.5.
func (m *LogisticRegression) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmax(proba), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// log1pExp computes log(1+e^z) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// argmax picks the most probable class; ties go to class 0.
func argmax(proba [][]float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p[1] > p[0] {
			out[i] = 1
		}
	}
	return out
}
