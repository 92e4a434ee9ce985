package monitoring

import (
	"errors"
	"strings"
	"testing"
)

func TestMetricsCollectorCounters(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordUpload(nil)
	mc.RecordUpload(nil)
	mc.RecordUpload(errors.New("bad file"))
	mc.RecordTraining("knn", 0.9, nil)
	mc.RecordTraining("knn", 0.8, nil)
	mc.RecordPrediction("Bankruptcy")

	if got := mc.Value(MetricUploads, nil); got != 2 {
		t.Fatalf("uploads = %v, want 2", got)
	}
	if got := mc.Value(MetricUploadFailures, nil); got != 1 {
		t.Fatalf("upload failures = %v, want 1", got)
	}
	knn := map[string]string{"model": "knn"}
	if got := mc.Value(MetricTrainings, knn); got != 2 {
		t.Fatalf("trainings = %v, want 2", got)
	}
	if got := mc.Value(MetricLastAccuracy, knn); got != 0.8 {
		t.Fatalf("last accuracy = %v, want 0.8", got)
	}
}

func TestExportPrometheus(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordPrediction("Bankruptcy")
	mc.RecordPrediction("No Bankruptcy")
	mc.SetGauge(MetricSessions, 3, nil)

	out := mc.ExportPrometheus()
	for _, want := range []string{
		"# TYPE bankruptcywatch_predictions_total counter",
		`bankruptcywatch_predictions_total{label="Bankruptcy"} 1`,
		`bankruptcywatch_predictions_total{label="No Bankruptcy"} 1`,
		"bankruptcywatch_sessions 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "# TYPE bankruptcywatch_predictions_total") != 1 {
		t.Errorf("TYPE line repeated:\n%s", out)
	}
}
