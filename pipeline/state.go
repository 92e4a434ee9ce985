package pipeline

import (
	"bankruptcywatch/ml"
)

// State 单个会话的状态。Apply 只返回新值，不会修改传入的 State。
type State struct {
	// Raw 最近一次上传的原始表格
	Raw *Table
	// Cleaned 去重后的表格
	Cleaned           *Table
	DuplicatesRemoved int
	Dataset           *ml.Dataset

	// 以下字段只由成功的训练写入，上传新数据集时保留
	Model        *ml.TrainedModel
	FeatureNames []string
	LastReport   *ml.EvaluationReport
}

// NewState 新会话的空状态
func NewState() State {
	return State{}
}

// HasDataset 是否已有可训练的数据集
func (s State) HasDataset() bool {
	return s.Dataset != nil
}

// HasModel 是否已有训练好的模型
func (s State) HasModel() bool {
	return s.Model != nil
}
