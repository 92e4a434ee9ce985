package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

type bundleFile struct {
	Spec         ModelSpec           `json:"spec"`
	FeatureNames []string            `json:"feature_names"`
	Scaler       *StandardScaler     `json:"scaler"`
	Logistic     *LogisticRegression `json:"logistic,omitempty"`
	KNN          *KNN                `json:"knn,omitempty"`
	TrainedAt    time.Time           `json:"trained_at"`
}

// Save writes the model, its scaler and feature order as JSON.
func (m *TrainedModel) Save(path string) error {
	if m == nil || m.Classifier == nil {
		return &UntrainedModelError{}
	}
	bundle := bundleFile{
		Spec:         m.Spec,
		FeatureNames: m.FeatureNames,
		Scaler:       m.Scaler,
		TrainedAt:    m.TrainedAt,
	}
	switch clf := m.Classifier.(type) {
	case *LogisticRegression:
		bundle.Logistic = clf
	case *KNN:
		bundle.KNN = clf
	default:
		return fmt.Errorf("%w: cannot persist %T", ErrInvalidModel, m.Classifier)
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadModel reads a bundle written by Save.
func LoadModel(path string) (*TrainedModel, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle bundleFile
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, err
	}
	if !bundle.Scaler.Fitted() {
		return nil, errors.New("model bundle has no fitted scaler")
	}

	model := &TrainedModel{
		Spec:         bundle.Spec,
		Scaler:       bundle.Scaler,
		FeatureNames: bundle.FeatureNames,
		TrainedAt:    bundle.TrainedAt,
	}
	switch bundle.Spec.Kind {
	case LogisticRegressionKind:
		if bundle.Logistic == nil {
			return nil, errors.New("model bundle is missing logistic parameters")
		}
		model.Classifier = bundle.Logistic
	case KNNKind:
		if bundle.KNN == nil {
			return nil, errors.New("model bundle is missing knn parameters")
		}
		model.Classifier = bundle.KNN
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, bundle.Spec.Kind)
	}
	return model, nil
}
