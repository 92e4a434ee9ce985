package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// 服务指标名
const (
	MetricUploads        = "bankruptcywatch_uploads_total"
	MetricUploadFailures = "bankruptcywatch_upload_failures_total"
	MetricTrainings      = "bankruptcywatch_trainings_total"
	MetricTrainFailures  = "bankruptcywatch_training_failures_total"
	MetricPredictions    = "bankruptcywatch_predictions_total"
	MetricLastAccuracy   = "bankruptcywatch_last_accuracy"
	MetricSessions       = "bankruptcywatch_sessions"
)

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector 指标收集器，每个 名称+标签 组合只保留最新值
type MetricsCollector struct {
	metrics     map[string]*Metric
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string]*Metric),
		startTime: time.Now(),
	}
}

func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (mc *MetricsCollector) record(name string, t MetricType, value float64, labels map[string]string, add bool) {
	key := seriesKey(name, labels)

	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	m, ok := mc.metrics[key]
	if !ok {
		m = &Metric{Name: name, Type: t, Labels: labels}
		mc.metrics[key] = m
	}
	if add {
		m.Value += value
	} else {
		m.Value = value
	}
	m.Timestamp = time.Now()
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, value float64, labels map[string]string) {
	mc.record(name, MetricTypeCounter, value, labels, true)
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.record(name, MetricTypeGauge, value, labels, false)
}

// Value 返回某个序列的当前值
func (mc *MetricsCollector) Value(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	if m, ok := mc.metrics[seriesKey(name, labels)]; ok {
		return m.Value
	}
	return 0
}

// GetAllMetrics 按序列名排序返回副本
func (mc *MetricsCollector) GetAllMetrics() []Metric {
	mc.metricsLock.RLock()
	keys := make([]string, 0, len(mc.metrics))
	for k := range mc.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, *mc.metrics[k])
	}
	mc.metricsLock.RUnlock()
	return out
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	var b strings.Builder
	typed := make(map[string]bool)
	for _, m := range mc.GetAllMetrics() {
		if !typed[m.Name] {
			fmt.Fprintf(&b, "# TYPE %s %s\n", m.Name, m.Type)
			typed[m.Name] = true
		}
		key := seriesKey(m.Name, m.Labels)
		fmt.Fprintf(&b, "%s %g\n", key, m.Value)
	}
	return b.String()
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// GetSystemStats 获取进程统计
func (mc *MetricsCollector) GetSystemStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime":     mc.GetUptime().String(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":      m.Alloc,
			"heap_alloc": m.HeapAlloc,
			"heap_sys":   m.HeapSys,
			"gc_count":   m.NumGC,
		},
		"num_cpu": runtime.NumCPU(),
	}
}

// RecordUpload 记录一次上传
func (mc *MetricsCollector) RecordUpload(err error) {
	if err != nil {
		mc.IncrCounter(MetricUploadFailures, 1, nil)
		return
	}
	mc.IncrCounter(MetricUploads, 1, nil)
}

// RecordTraining 记录一次训练
func (mc *MetricsCollector) RecordTraining(model string, accuracy float64, err error) {
	labels := map[string]string{"model": model}
	if err != nil {
		mc.IncrCounter(MetricTrainFailures, 1, labels)
		return
	}
	mc.IncrCounter(MetricTrainings, 1, labels)
	mc.SetGauge(MetricLastAccuracy, accuracy, labels)
}

// RecordPrediction 记录一次预测
func (mc *MetricsCollector) RecordPrediction(label string) {
	mc.IncrCounter(MetricPredictions, 1, map[string]string{"label": label})
}
