package pipeline

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bankruptcywatch/config"
	"bankruptcywatch/ml"
)

// ActionKind 动作类型
type ActionKind string

const (
	UploadAction  ActionKind = "upload"
	TrainAction   ActionKind = "train"
	PredictAction ActionKind = "predict"
)

// Action 用户的一次操作
type Action interface {
	Kind() ActionKind
}

// Upload 上传新数据集
type Upload struct {
	Source string
	Table  *Table
}

// Train 训练模型
type Train struct {
	Spec ml.ModelSpec
}

// Predict 对一组原始特征值预测
type Predict struct {
	Values []float64
}

func (Upload) Kind() ActionKind  { return UploadAction }
func (Train) Kind() ActionKind   { return TrainAction }
func (Predict) Kind() ActionKind { return PredictAction }

// UploadResult 上传后展示给用户的信息
type UploadResult struct {
	Source            string   `json:"source"`
	RawRows           int      `json:"raw_rows"`
	RawCols           int      `json:"raw_cols"`
	Rows              int      `json:"rows"`
	Cols              int      `json:"cols"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	FeatureNames      []string `json:"feature_names"`
	ClassCounts       [2]int   `json:"class_counts"`
	Preview           *Table   `json:"preview"`
}

// Output 动作的输出，只有与动作对应的字段非空
type Output struct {
	Kind       ActionKind           `json:"kind"`
	Upload     *UploadResult        `json:"upload,omitempty"`
	Report     *ml.EvaluationReport `json:"report,omitempty"`
	Prediction *ml.Prediction       `json:"prediction,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// Pipeline 校验 → 预处理 → 训练 → 预测
type Pipeline struct {
	limits      atomic.Pointer[config.Limits]
	opts        ml.TrainOptions
	cleaner     *DataCleaner
	previewRows int
	logger      *zap.Logger
}

// New 创建 Pipeline
func New(cfg config.MLConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := ml.DefaultTrainOptions()
	if cfg.Seed != 0 {
		opts.Seed = cfg.Seed
	}
	if cfg.TestRatio > 0 && cfg.TestRatio < 1 {
		opts.TestRatio = cfg.TestRatio
	}
	opts.Logistic = ml.LogisticOptions{
		C:       cfg.Logistic.C,
		MaxIter: cfg.Logistic.MaxIter,
		Tol:     cfg.Logistic.Tol,
	}

	p := &Pipeline{
		opts:        opts,
		cleaner:     NewDataCleaner(logger),
		previewRows: 20,
		logger:      logger,
	}
	p.SetLimits(cfg.Limits)
	return p
}

// SetLimits 更新软限制，可在运行中调用
func (p *Pipeline) SetLimits(l config.Limits) {
	l = l.Normalize()
	p.limits.Store(&l)
	p.logger.Info("pipeline limits updated",
		zap.Int("max_rows", l.MaxRows),
		zap.Int("max_neighbors", l.MaxNeighbors))
}

// Limits 当前软限制
func (p *Pipeline) Limits() config.Limits {
	return *p.limits.Load()
}

// CleaningStats 累计的清洗统计
func (p *Pipeline) CleaningStats() CleaningStats {
	return p.cleaner.GetStats()
}

// Apply 对状态执行一个动作，返回新状态和输出。出错时返回原状态。
func (p *Pipeline) Apply(state State, action Action) (State, Output, error) {
	start := time.Now()
	var (
		next State
		out  Output
		err  error
	)
	switch a := action.(type) {
	case Upload:
		next, out, err = p.upload(state, a)
	case *Upload:
		next, out, err = p.upload(state, *a)
	case Train:
		next, out, err = p.train(state, a)
	case *Train:
		next, out, err = p.train(state, *a)
	case Predict:
		next, out, err = p.predict(state, a)
	case *Predict:
		next, out, err = p.predict(state, *a)
	default:
		return state, Output{}, fmt.Errorf("unsupported action %T", action)
	}
	if err != nil {
		p.logger.Warn("action failed", zap.String("action", string(action.Kind())), zap.Error(err))
		return state, Output{Kind: action.Kind()}, err
	}
	out.Kind = action.Kind()
	out.Duration = time.Since(start)
	return next, out, nil
}

func (p *Pipeline) upload(state State, a Upload) (State, Output, error) {
	if err := Validate(a.Table); err != nil {
		return state, Output{}, err
	}
	rawRows, rawCols := a.Table.Shape()
	if limit := p.Limits().MaxRows; rawRows > limit {
		return state, Output{}, &LimitError{Limit: "rows", Value: rawRows, Max: limit}
	}

	cleaned := p.cleaner.Clean(a.Table)
	ds, err := ml.Preprocess(cleaned.Table.Columns, cleaned.Table.Rows)
	if err != nil {
		return state, Output{}, err
	}

	next := state
	next.Raw = a.Table
	next.Cleaned = cleaned.Table
	next.DuplicatesRemoved = cleaned.Removed
	next.Dataset = ds

	rows, cols := cleaned.Table.Shape()
	result := &UploadResult{
		Source:            a.Source,
		RawRows:           rawRows,
		RawCols:           rawCols,
		Rows:              rows,
		Cols:              cols,
		DuplicatesRemoved: cleaned.Removed,
		FeatureNames:      ds.FeatureNames,
		ClassCounts:       ds.ClassCounts(),
		Preview:           cleaned.Table.Head(p.previewRows),
	}
	p.logger.Info("dataset accepted",
		zap.String("source", a.Source),
		zap.Int("rows", rows),
		zap.Int("duplicates_removed", cleaned.Removed))
	return next, Output{Upload: result}, nil
}

func (p *Pipeline) train(state State, a Train) (State, Output, error) {
	if !state.HasDataset() {
		return state, Output{}, ErrNoDataset
	}
	limits := p.Limits()
	spec := a.Spec
	if spec.Kind == ml.KNNKind && spec.K == 0 {
		spec.K = limits.DefaultNeighbors
	}
	opts := p.opts
	opts.MaxNeighbors = limits.MaxNeighbors

	model, report, err := ml.Train(state.Dataset, spec, opts)
	if err != nil {
		return state, Output{}, err
	}

	next := state
	next.Model = model
	next.FeatureNames = model.FeatureNames
	next.LastReport = report

	p.logger.Info("model trained",
		zap.String("model", string(spec.Kind)),
		zap.Any("params", report.Params),
		zap.Float64("accuracy", report.Accuracy),
		zap.String("roc_auc", report.ROCAUCText()))
	return next, Output{Report: report}, nil
}

// predict 不修改状态
func (p *Pipeline) predict(state State, a Predict) (State, Output, error) {
	if !state.HasModel() {
		return state, Output{}, &ml.UntrainedModelError{}
	}
	prediction, err := state.Model.Predict(a.Values)
	if err != nil {
		return state, Output{}, err
	}
	return state, Output{Prediction: prediction}, nil
}
