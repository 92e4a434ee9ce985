package ml

import (
	"errors"
	"time"
)

// TrainOptions control the split and the classifiers.
type TrainOptions struct {
	Seed         int64
	TestRatio    float64
	MaxNeighbors int
	Logistic     LogisticOptions
}

// DefaultTrainOptions uses seed 42 and an 80/20 split.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Seed:         42,
		TestRatio:    0.2,
		MaxNeighbors: DefaultMaxNeighbors,
		Logistic:     DefaultLogisticOptions(),
	}
}

// Train splits ds, fits the chosen classifier on the training part and
// evaluates it on the test part. Each call starts from scratch.
func Train(ds *Dataset, spec ModelSpec, opts TrainOptions) (*TrainedModel, *EvaluationReport, error) {
	if ds == nil {
		return nil, nil, errors.New("dataset is nil")
	}
	clf, err := NewClassifier(spec, opts)
	if err != nil {
		return nil, nil, err
	}

	split, err := TrainTestSplit(ds.Rows(), opts.TestRatio, opts.Seed)
	if err != nil {
		return nil, nil, err
	}
	trainX, trainY := Take(ds.Scaled, ds.Y, split.Train)
	testX, testY := Take(ds.Scaled, ds.Y, split.Test)

	if err := clf.Fit(trainX, trainY); err != nil {
		return nil, nil, err
	}
	pred, err := clf.Predict(testX)
	if err != nil {
		return nil, nil, err
	}

	var scores []float64
	if pc, ok := clf.(ProbabilisticClassifier); ok {
		proba, err := pc.PredictProba(testX)
		if err != nil {
			return nil, nil, err
		}
		scores = make([]float64, len(proba))
		for i, p := range proba {
			scores[i] = p[1]
		}
	}

	report, err := Evaluate(testY, pred, scores)
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	report.Model = spec.Kind
	report.Params = spec.Params()
	report.TrainRows = len(trainY)
	report.TrainedAt = now

	model := &TrainedModel{
		Spec:         spec,
		Classifier:   clf,
		Scaler:       ds.Scaler,
		FeatureNames: append([]string(nil), ds.FeatureNames...),
		TrainedAt:    now,
	}
	return model, report, nil
}
