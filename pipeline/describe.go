package pipeline

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NumericSummary 数值列的描述统计。无法定义的值（单行的标准差）为 nil。
type NumericSummary struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Std    *float64 `json:"std"`
	Min    float64  `json:"min"`
	Q25    float64  `json:"25%"`
	Q50    float64  `json:"50%"`
	Q75    float64  `json:"75%"`
	Max    float64  `json:"max"`
}

// ValueCount 类别值及出现次数
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoricalSummary 文本列的计数
type CategoricalSummary struct {
	Column string       `json:"column"`
	Counts []ValueCount `json:"counts"`
}

// Histogram 数值列的分布
type Histogram struct {
	Column string    `json:"column"`
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
}

// CorrelationMatrix 数值列之间的皮尔逊相关系数，常数列对应的值为 nil
type CorrelationMatrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// Summary 数据集概览
type Summary struct {
	Rows        int                  `json:"rows"`
	Cols        int                  `json:"cols"`
	Numeric     []NumericSummary     `json:"numeric"`
	Categorical []CategoricalSummary `json:"categorical"`
	Correlation CorrelationMatrix    `json:"correlation"`
	Histograms  []Histogram          `json:"histograms"`
}

// Describe 计算数值列统计、文本列计数、相关矩阵和直方图。
// 一列中所有非空单元格都能解析为数字时视为数值列，空单元格按缺失处理。
func Describe(t *Table) *Summary {
	rows, cols := t.Shape()
	s := &Summary{
		Rows:        rows,
		Cols:        cols,
		Numeric:     []NumericSummary{},
		Categorical: []CategoricalSummary{},
		Histograms:  []Histogram{},
	}

	var numericCols []string
	var numericValues [][]float64
	for j, name := range t.Columns {
		raw := t.Column(j)
		values, ok := numericColumn(raw)
		if !ok {
			s.Categorical = append(s.Categorical, CategoricalSummary{Column: name, Counts: valueCounts(raw)})
			continue
		}
		if len(values) == 0 {
			continue
		}
		numericCols = append(numericCols, name)
		numericValues = append(numericValues, values)

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		s.Numeric = append(s.Numeric, describeNumeric(name, sorted))
		s.Histograms = append(s.Histograms, histogram(name, sorted))
	}

	s.Correlation = correlation(t, numericCols)
	return s
}

func numericColumn(raw []string) ([]float64, bool) {
	values := make([]float64, 0, len(raw))
	for _, cell := range raw {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

func describeNumeric(name string, sorted []float64) NumericSummary {
	ns := NumericSummary{
		Column: name,
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Q25:    stat.Quantile(0.25, stat.LinInterp, sorted, nil),
		Q50:    stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Q75:    stat.Quantile(0.75, stat.LinInterp, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		std := stat.StdDev(sorted, nil)
		ns.Std = &std
	}
	return ns
}

// histogram 使用 Sturges 规则确定分箱数
func histogram(name string, sorted []float64) Histogram {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	bins := int(math.Ceil(math.Log2(float64(len(sorted))))) + 1
	if lo == hi {
		lo, hi, bins = lo-0.5, hi+0.5, 1
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := append([]float64(nil), edges...)
	// stat.Histogram 的最后一个分界是开区间
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	return Histogram{Column: name, Edges: edges, Counts: counts}
}

func valueCounts(raw []string) []ValueCount {
	counts := make(map[string]int)
	for _, v := range raw {
		counts[v]++
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Value < out[b].Value
	})
	return out
}

// correlation 只使用所有数值列都有值的行
func correlation(t *Table, columns []string) CorrelationMatrix {
	cm := CorrelationMatrix{Columns: columns, Values: make([][]*float64, len(columns))}
	if len(columns) == 0 {
		cm.Columns = []string{}
		return cm
	}

	idx := make([]int, len(columns))
	for i, name := range columns {
		idx[i] = t.ColumnIndex(name)
	}
	data := make([][]float64, len(columns))
	for _, row := range t.Rows {
		vals := make([]float64, len(idx))
		complete := true
		for i, j := range idx {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				complete = false
				break
			}
			vals[i] = v
		}
		if !complete {
			continue
		}
		for i, v := range vals {
			data[i] = append(data[i], v)
		}
	}

	for i := range columns {
		cm.Values[i] = make([]*float64, len(columns))
		for j := range columns {
			if len(data[i]) < 2 {
				continue
			}
			r := stat.Correlation(data[i], data[j], nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			cm.Values[i][j] = &r
		}
	}
	return cm
}
