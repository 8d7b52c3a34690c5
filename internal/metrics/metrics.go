// Package metrics 进程指标。指标集在启动时构造一次，按引用传入各组件，
// 不使用进程级单例（默认注册表）。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 系统指标集
type Metrics struct {
	registry *prometheus.Registry

	// 消息接收
	ReceivedMessages    prometheus.Counter
	BadMessages         prometheus.Counter
	ReceivedTestResults prometheus.Counter

	// 连接
	Reconnections   prometheus.Counter
	ConnectionTries prometheus.Gauge

	// 预测
	Predictions         prometheus.Counter
	PositivePredictions prometheus.Counter
	BloodTestDist       prometheus.Histogram

	// 呼叫
	AlertsSent    prometheus.Counter
	AlertRetries  prometheus.Counter
	IgnoredAlerts prometheus.Counter
}

// New 创建指标集（独立注册表）
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ReceivedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "messages_received_total",
			Help: "Number of MLLP messages received",
		}),
		BadMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "bad_messages_total",
			Help: "Number of invalid or corrupted messages received",
		}),
		ReceivedTestResults: factory.NewCounter(prometheus.CounterOpts{
			Name: "test_results_received_total",
			Help: "Number of lab result messages received",
		}),
		Reconnections: factory.NewCounter(prometheus.CounterOpts{
			Name: "mllp_reconnections_total",
			Help: "Number of times the system reconnected to the MLLP server",
		}),
		ConnectionTries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mllp_connection_tries",
			Help: "Connection attempts since the last successful connect",
		}),
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Number of patients sent to the model for prediction",
		}),
		PositivePredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "positive_predictions_total",
			Help: "Number of AKI detections",
		}),
		BloodTestDist: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "blood_test_distribution",
			Help:    "Distribution of blood test result values",
			Buckets: prometheus.LinearBuckets(50, 10, 10),
		}),
		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Number of alerts delivered to the pager",
		}),
		AlertRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "alert_retries_total",
			Help: "Number of retried pager alerts",
		}),
		IgnoredAlerts: factory.NewCounter(prometheus.CounterOpts{
			Name: "alerts_ignored_total",
			Help: "Number of alerts dropped after rejection or retry exhaustion",
		}),
	}
}

// Handler 指标抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
