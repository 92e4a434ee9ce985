package ml

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ClassMetrics are the per-class scores of the classification report.
type ClassMetrics struct {
	Class     int     `json:"class"`
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// ROCPoint is one (FPR, TPR) pair of the ROC curve.
type ROCPoint struct {
	FPR float64 `json:"fpr"`
	TPR float64 `json:"tpr"`
}

// EvaluationReport summarizes a model on the held-out split.
type EvaluationReport struct {
	Model     ModelKind      `json:"model"`
	Params    map[string]any `json:"params"`
	TrainRows int            `json:"train_rows"`
	TestRows  int            `json:"test_rows"`

	Accuracy float64 `json:"accuracy"`
	// ConfusionMatrix[i][j] counts rows of true class i predicted as class j.
	ConfusionMatrix [2][2]int      `json:"confusion_matrix"`
	Precision       float64        `json:"precision"`
	Recall          float64        `json:"recall"`
	F1              float64        `json:"f1_score"`
	Classes         []ClassMetrics `json:"classes"`
	Text            string         `json:"classification_report"`

	// ROCAUC and ROCCurve are nil when ROCError is set.
	ROCAUC   *float64   `json:"roc_auc"`
	ROCCurve []ROCPoint `json:"roc_curve,omitempty"`
	ROCError string     `json:"roc_unavailable,omitempty"`

	TrainedAt time.Time `json:"trained_at"`
}

// ROCAUCText renders the AUC, or "N/A" when it could not be computed.
func (r *EvaluationReport) ROCAUCText() string {
	if r.ROCAUC == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*r.ROCAUC, 'f', 4, 64)
}

// Evaluate scores predictions against the truth. scores holds p(1) per row and
// may be nil when the model has no probability output.
func Evaluate(yTrue, yPred []int, scores []float64) (*EvaluationReport, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("truth/prediction length mismatch: %d vs %d", len(yTrue), len(yPred))
	}
	r := &EvaluationReport{TestRows: len(yTrue)}

	correct := 0
	for i := range yTrue {
		r.ConfusionMatrix[yTrue[i]][yPred[i]]++
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	if len(yTrue) > 0 {
		r.Accuracy = float64(correct) / float64(len(yTrue))
	}

	for class := 0; class <= 1; class++ {
		r.Classes = append(r.Classes, classMetrics(r.ConfusionMatrix, class))
	}
	positive := r.Classes[1]
	r.Precision, r.Recall, r.F1 = positive.Precision, positive.Recall, positive.F1
	r.Text = classificationReport(r)

	if scores == nil {
		r.ROCError = (&UnsupportedMetricError{Metric: "roc_auc", Reason: "model does not output probabilities"}).Error()
		return r, nil
	}
	curve, auc, err := rocCurve(yTrue, scores)
	if err != nil {
		r.ROCError = err.Error()
		return r, nil
	}
	r.ROCCurve = curve
	r.ROCAUC = &auc
	return r, nil
}

func classMetrics(cm [2][2]int, class int) ClassMetrics {
	other := 1 - class
	tp := cm[class][class]
	fp := cm[other][class]
	fn := cm[class][other]
	m := ClassMetrics{Class: class, Label: LabelName(class), Support: tp + fn}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// classificationReport renders the familiar plain-text table.
func classificationReport(r *EvaluationReport) string {
	const width = 12
	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")

	var macroP, macroR, macroF, weightP, weightR, weightF float64
	total := 0
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*d %9.2f %9.2f %9.2f %9d\n", width, c.Class, c.Precision, c.Recall, c.F1, c.Support)
		macroP += c.Precision / 2
		macroR += c.Recall / 2
		macroF += c.F1 / 2
		weightP += c.Precision * float64(c.Support)
		weightR += c.Recall * float64(c.Support)
		weightF += c.F1 * float64(c.Support)
		total += c.Support
	}
	if total > 0 {
		weightP /= float64(total)
		weightR /= float64(total)
		weightF /= float64(total)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "macro avg", macroP, macroR, macroF, total)
	fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, "weighted avg", weightP, weightR, weightF, total)
	return b.String()
}

// rocCurve computes the ROC curve and its trapezoidal AUC.
func rocCurve(yTrue []int, scores []float64) ([]ROCPoint, float64, error) {
	if len(scores) != len(yTrue) {
		return nil, 0, fmt.Errorf("truth/score length mismatch: %d vs %d", len(yTrue), len(scores))
	}
	positives := 0
	for _, y := range yTrue {
		positives += y
	}
	if positives == 0 || positives == len(yTrue) {
		return nil, 0, &UnsupportedMetricError{Metric: "roc_auc", Reason: "test split contains a single class"}
	}

	y := append([]float64(nil), scores...)
	classes := make([]bool, len(yTrue))
	for i, label := range yTrue {
		classes[i] = label == 1
	}
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	curve := make([]ROCPoint, len(tpr))
	for i := range tpr {
		curve[i] = ROCPoint{FPR: fpr[i], TPR: tpr[i]}
	}
	return curve, integrate.Trapezoidal(fpr, tpr), nil
}
