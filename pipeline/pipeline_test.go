package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcywatch/config"
	"bankruptcywatch/ml"
)

func newTestPipeline() *Pipeline {
	return New(config.Default().ML, nil)
}

func uploaded(t *testing.T, p *Pipeline, table *Table) State {
	t.Helper()
	state, out, err := p.Apply(NewState(), Upload{Source: "test.xlsx", Table: table})
	require.NoError(t, err)
	require.NotNil(t, out.Upload)
	return state
}

func TestUploadRemovesDuplicatesAndPrepares(t *testing.T) {
	p := newTestPipeline()
	table := bankruptcyTable(100, 1)
	table.Rows = append(table.Rows, table.Rows[0], table.Rows[1])

	state, out, err := p.Apply(NewState(), Upload{Source: "dup.csv", Table: table})
	require.NoError(t, err)

	assert.Equal(t, UploadAction, out.Kind)
	assert.Equal(t, 102, out.Upload.RawRows)
	assert.Equal(t, 100, out.Upload.Rows)
	assert.Equal(t, 2, out.Upload.DuplicatesRemoved)
	assert.Equal(t, RequiredColumns[:6], out.Upload.FeatureNames)
	assert.Equal(t, 100, out.Upload.ClassCounts[0]+out.Upload.ClassCounts[1])
	assert.Len(t, out.Upload.Preview.Rows, 20)
	assert.True(t, state.HasDataset())
	assert.False(t, state.HasModel())
}

func TestUploadFailuresLeaveStateUntouched(t *testing.T) {
	p := newTestPipeline()
	state := uploaded(t, p, bankruptcyTable(50, 2))

	badLabel := bankruptcyTable(10, 3)
	badLabel.Rows[0][6] = "solvent"
	badFeature := bankruptcyTable(10, 4)
	badFeature.Rows[2][0] = "high"

	tests := []struct {
		name   string
		table  *Table
		target any
	}{
		{name: "missing column", table: &Table{Columns: []string{"a"}}, target: new(*SchemaError)},
		{name: "unknown label", table: badLabel, target: new(*ml.UnknownLabelError)},
		{name: "non-numeric feature", table: badFeature, target: new(*ml.FeatureTypeError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := p.Apply(state, Upload{Table: tt.table})
			require.ErrorAs(t, err, tt.target)
			assert.Same(t, state.Dataset, next.Dataset)
		})
	}
}

func TestUploadRowLimit(t *testing.T) {
	p := newTestPipeline()
	limits := p.Limits()
	limits.MaxRows = 10
	p.SetLimits(limits)

	_, _, err := p.Apply(NewState(), Upload{Table: bankruptcyTable(11, 1)})
	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 11, limitErr.Value)
	assert.Equal(t, 10, limitErr.Max)
}

func TestUploadEmptyDataset(t *testing.T) {
	p := newTestPipeline()
	_, _, err := p.Apply(NewState(), Upload{Table: &Table{Columns: RequiredColumns}})
	assert.True(t, errors.Is(err, ml.ErrEmptyDataset))
}

func TestTrainRequiresDataset(t *testing.T) {
	p := newTestPipeline()
	_, _, err := p.Apply(NewState(), Train{Spec: ml.ModelSpec{Kind: ml.LogisticRegressionKind}})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestTrainSetsModelAndReport(t *testing.T) {
	p := newTestPipeline()
	state := uploaded(t, p, bankruptcyTable(250, 9))

	next, out, err := p.Apply(state, Train{Spec: ml.ModelSpec{Kind: ml.LogisticRegressionKind}})
	require.NoError(t, err)

	require.NotNil(t, out.Report)
	assert.Equal(t, 50, out.Report.TestRows)
	assert.True(t, next.HasModel())
	assert.Equal(t, RequiredColumns[:6], next.FeatureNames)
	assert.Same(t, out.Report, next.LastReport)
	assert.False(t, state.HasModel(), "input state must not change")
}

func TestTrainKNNDefaultsAndLimits(t *testing.T) {
	p := newTestPipeline()
	state := uploaded(t, p, bankruptcyTable(80, 9))

	_, out, err := p.Apply(state, Train{Spec: ml.ModelSpec{Kind: ml.KNNKind}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n_neighbors": 5}, out.Report.Params)

	next, _, err := p.Apply(state, Train{Spec: ml.ModelSpec{Kind: ml.KNNKind, K: 21}})
	var paramErr *ml.ParamError
	require.ErrorAs(t, err, &paramErr)
	assert.False(t, next.HasModel())

	limits := p.Limits()
	limits.MaxNeighbors = 3
	p.SetLimits(limits)
	_, _, err = p.Apply(state, Train{Spec: ml.ModelSpec{Kind: ml.KNNKind, K: 5}})
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, 3, paramErr.Max)
}

func TestPredictBeforeTrain(t *testing.T) {
	p := newTestPipeline()
	state := uploaded(t, p, bankruptcyTable(40, 1))

	_, _, err := p.Apply(state, Predict{Values: make([]float64, 6)})
	var untrained *ml.UntrainedModelError
	require.ErrorAs(t, err, &untrained)
	assert.Contains(t, err.Error(), "train a model")
}

func TestPredictDoesNotMutateState(t *testing.T) {
	p := newTestPipeline()
	state := uploaded(t, p, bankruptcyTable(200, 6))
	state, _, err := p.Apply(state, Train{Spec: ml.ModelSpec{Kind: ml.KNNKind, K: 3}})
	require.NoError(t, err)

	next, out, err := p.Apply(state, Predict{Values: []float64{1, 1, 0, 0, 0, 1}})
	require.NoError(t, err)
	require.NotNil(t, out.Prediction)
	assert.Equal(t, ml.BankruptcyLabel, out.Prediction.Label)
	assert.GreaterOrEqual(t, out.Prediction.Confidence, 0.5)
	assert.Equal(t, state, next)

	_, _, err = p.Apply(state, Predict{Values: []float64{1, 1}})
	var mismatch *ml.FeatureMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestNewUploadKeepsTrainedModel(t *testing.T) {
	p := newTestPipeline()
	state := uploaded(t, p, bankruptcyTable(120, 2))
	state, _, err := p.Apply(state, Train{Spec: ml.ModelSpec{Kind: ml.LogisticRegressionKind}})
	require.NoError(t, err)

	next, _, err := p.Apply(state, Upload{Table: bankruptcyTable(60, 8)})
	require.NoError(t, err)
	assert.NotSame(t, state.Dataset, next.Dataset)
	assert.Same(t, state.Model, next.Model)
	assert.Same(t, state.LastReport, next.LastReport)
}
