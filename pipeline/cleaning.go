package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bankruptcywatch/ml"
)

// RequiredColumns 破产数据集必须包含的列
var RequiredColumns = []string{
	"industrial_risk",
	"management_risk",
	"financial_flexibility",
	"credibility",
	"competitiveness",
	"operating_risk",
	ml.TargetColumn,
}

// Validate 检查表头是否包含全部必需列，多余的列允许存在
func Validate(t *Table) error {
	if t == nil {
		return &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}
	var missing []string
	for _, name := range RequiredColumns {
		if t.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// CleaningRule 行级清洗规则，返回错误表示该行被剔除
type CleaningRule interface {
	Apply(row []string) error
	Name() string
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// CleaningResult 单次清洗结果
type CleaningResult struct {
	Table    *Table         `json:"-"`
	Removed  int            `json:"removed"`
	ByRule   map[string]int `json:"by_rule"`
	Duration time.Duration  `json:"duration"`
}

// DataCleaner 数据清洗器。规则工厂在每次 Clean 时生成新的规则实例，
// 保证有状态的规则（如去重）不会跨上传共享。
type DataCleaner struct {
	factories []func() CleaningRule
	logger    *zap.Logger

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器，默认只做整行去重
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	dc := &DataCleaner{
		logger: logger,
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}
	dc.AddRule(func() CleaningRule { return NewDuplicateDetectionRule() })
	return dc
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(factory func() CleaningRule) {
	dc.factories = append(dc.factories, factory)
	dc.logger.Debug("added cleaning rule", zap.String("rule", factory().Name()))
}

// Clean 按顺序应用规则，保留通过的行并维持原顺序。输入表不会被修改。
func (dc *DataCleaner) Clean(t *Table) CleaningResult {
	start := time.Now()
	rules := make([]CleaningRule, len(dc.factories))
	for i, f := range dc.factories {
		rules[i] = f()
	}

	result := CleaningResult{
		Table:  &Table{Columns: append([]string(nil), t.Columns...)},
		ByRule: make(map[string]int),
	}
	result.Table.Rows = make([][]string, 0, len(t.Rows))

	for _, row := range t.Rows {
		rejected := false
		for _, rule := range rules {
			if err := rule.Apply(row); err != nil {
				result.ByRule[rule.Name()]++
				rejected = true
				break
			}
		}
		if rejected {
			result.Removed++
			continue
		}
		result.Table.Rows = append(result.Table.Rows, row)
	}
	result.Duration = time.Since(start)

	dc.statsLock.Lock()
	dc.stats.TotalProcessed += int64(len(t.Rows))
	dc.stats.Passed += int64(len(result.Table.Rows))
	dc.stats.Rejected += int64(result.Removed)
	for name, n := range result.ByRule {
		dc.stats.Issues[name] += int64(n)
	}
	dc.stats.LastClean = time.Now()
	dc.statsLock.Unlock()

	return result
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// DropDuplicates 删除完全重复的行，保留首次出现，返回删除的行数
func DropDuplicates(t *Table) (*Table, int) {
	result := NewDataCleaner(nil).Clean(t)
	return result.Table, result.Removed
}

// DuplicateDetectionRule 整行重复检测规则
type DuplicateDetectionRule struct {
	seen map[string]struct{}
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{seen: make(map[string]struct{})}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(row []string) error {
	key := rowKey(row)
	if _, exists := r.seen[key]; exists {
		return fmt.Errorf("duplicate row: %s", strings.Join(row, ","))
	}
	r.seen[key] = struct{}{}
	return nil
}

// rowKey 数值单元格按数值比较，"1" 与 "1.0" 视为相同
func rowKey(row []string) string {
	var b strings.Builder
	for i, cell := range row {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			continue
		}
		b.WriteString(cell)
	}
	return b.String()
}
