package ml

import (
	"errors"
	"time"
)

// TrainedModel bundles a fitted classifier with the scaler and feature order
// it was trained with.
type TrainedModel struct {
	Spec         ModelSpec
	Classifier   Classifier
	Scaler       *StandardScaler
	FeatureNames []string
	TrainedAt    time.Time
}

// Prediction is the outcome for one feature vector.
type Prediction struct {
	Model ModelKind `json:"model"`
	Class int       `json:"class"`
	Label string    `json:"label"`
	// Confidence is the probability of the predicted class.
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	// HasConfidence is false when the classifier has no probability output.
	HasConfidence bool `json:"has_confidence"`
}

// Predict scores one raw feature vector given in FeatureNames order. The
// vector is standardized with the training scaler first.
func (m *TrainedModel) Predict(values []float64) (*Prediction, error) {
	if m == nil || m.Classifier == nil {
		return nil, &UntrainedModelError{}
	}
	if len(values) != len(m.FeatureNames) {
		return nil, &FeatureMismatchError{Expected: len(m.FeatureNames), Got: len(values)}
	}
	if m.Scaler == nil {
		return nil, errors.New("model has no scaler")
	}
	scaled, err := m.Scaler.TransformRow(values)
	if err != nil {
		return nil, err
	}
	X := [][]float64{scaled}

	labels, err := m.Classifier.Predict(X)
	if err != nil {
		return nil, err
	}
	p := &Prediction{Model: m.Spec.Kind, Class: labels[0], Label: LabelName(labels[0])}

	if pc, ok := m.Classifier.(ProbabilisticClassifier); ok {
		proba, err := pc.PredictProba(X)
		if err != nil {
			return nil, err
		}
		p.Probabilities = proba[0]
		p.Confidence = proba[0][p.Class]
		p.HasConfidence = true
	}
	return p, nil
}
