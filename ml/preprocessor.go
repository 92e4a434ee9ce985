package ml

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TargetColumn is the name of the label column.
const TargetColumn = "class"

const (
	BankruptcyLabel   = "Bankruptcy"
	NoBankruptcyLabel = "No Bankruptcy"
)

// targetLabels maps textual class values to the binary domain.
var targetLabels = map[string]int{
	"bankruptcy":     1,
	"non-bankruptcy": 0,
}

// KnownLabels lists the accepted textual class values.
func KnownLabels() []string {
	labels := make([]string, 0, len(targetLabels))
	for label := range targetLabels {
		labels = append(labels, strconv.Quote(label))
	}
	sort.Strings(labels)
	return labels
}

// LabelName returns the display name of a class id.
func LabelName(class int) string {
	if class == 1 {
		return BankruptcyLabel
	}
	return NoBankruptcyLabel
}

// Dataset is a preprocessed table ready for training. X keeps the raw feature
// values, Scaled the standardized ones. Scaler is fit on all of X.
type Dataset struct {
	FeatureNames []string        `json:"feature_names"`
	X            [][]float64     `json:"-"`
	Scaled       [][]float64     `json:"-"`
	Y            []int           `json:"-"`
	Scaler       *StandardScaler `json:"scaler"`
}

// Rows returns the number of samples.
func (d *Dataset) Rows() int { return len(d.Y) }

// ClassCounts returns the number of rows per class.
func (d *Dataset) ClassCounts() [2]int {
	var counts [2]int
	for _, y := range d.Y {
		counts[y]++
	}
	return counts
}

// Preprocess separates features from the target, encodes the target and
// standardizes the features. Every column except the target is a feature, in
// header order.
func Preprocess(header []string, rows [][]string) (*Dataset, error) {
	targetIdx := -1
	featureIdx := make([]int, 0, len(header))
	names := make([]string, 0, len(header))
	for i, name := range header {
		if name == TargetColumn {
			targetIdx = i
			continue
		}
		featureIdx = append(featureIdx, i)
		names = append(names, name)
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("missing target column %q", TargetColumn)
	}

	targets := make([]string, len(rows))
	X := make([][]float64, len(rows))
	for r, row := range rows {
		targets[r] = cell(row, targetIdx)
		vec := make([]float64, len(featureIdx))
		for j, idx := range featureIdx {
			raw := cell(row, idx)
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &FeatureTypeError{Column: names[j], Row: r, Value: raw}
			}
			vec[j] = v
		}
		X[r] = vec
	}

	y, err := EncodeTarget(targets)
	if err != nil {
		return nil, err
	}

	scaler := NewStandardScaler()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		FeatureNames: names,
		X:            X,
		Scaled:       scaled,
		Y:            y,
		Scaler:       scaler,
	}, nil
}

// EncodeTarget maps class values to {0, 1}. A column with any non-numeric
// value is treated as textual and must only hold known labels; a numeric
// column must already be binary.
func EncodeTarget(values []string) ([]int, error) {
	textual := false
	for _, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			textual = true
			break
		}
	}

	out := make([]int, len(values))
	for i, v := range values {
		if textual {
			label, ok := targetLabels[v]
			if !ok {
				return nil, &UnknownLabelError{Row: i, Value: v}
			}
			out[i] = label
			continue
		}
		f, _ := strconv.ParseFloat(v, 64)
		switch f {
		case 0:
			out[i] = 0
		case 1:
			out[i] = 1
		default:
			return nil, &UnknownLabelError{Row: i, Value: v}
		}
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
