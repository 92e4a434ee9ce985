package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoDataset 训练前没有上传数据集
var ErrNoDataset = errors.New("no dataset: upload a dataset before training")

// SchemaError 缺少必需列
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("this is not the bankruptcy dataset: missing columns %s", strings.Join(e.Missing, ", "))
}

// LimitError 超出配置的软限制
type LimitError struct {
	Limit string
	Value int
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s=%d exceeds the configured limit %d", e.Limit, e.Value, e.Max)
}

// FormatError 无法识别或解析的上传文件
type FormatError struct {
	Name string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot read %q: %v", e.Name, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
