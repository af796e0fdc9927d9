// Package metrics содержит Prometheus-метрики портала заявок.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaveportal",
		Subsystem: "form",
		Name:      "rejections_total",
		Help:      "Total number of leave request rejections broken down by kind.",
	}, []string{"kind"})

	overlapChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaveportal",
		Subsystem: "backend",
		Name:      "overlap_checks_total",
		Help:      "Total number of completed overlap checks broken down by result.",
	}, []string{"result"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaveportal",
		Subsystem: "backend",
		Name:      "submissions_total",
		Help:      "Total number of leave request submissions broken down by result.",
	}, []string{"result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "leaveportal",
		Subsystem: "form",
		Name:      "active_sessions",
		Help:      "Number of open form sessions.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaveportal",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests broken down by method and status.",
	}, []string{"method", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "leaveportal",
		Subsystem: "http",
		Name:      "latency_seconds",
		Help:      "Latency distribution for HTTP requests.",
		Buckets: []float64{
			0.001, 0.005, 0.01, 0.05,
			0.1, 0.5, 1, 5, 10,
		},
	}, []string{"method"})
)

// ObserveRejection учитывает отказ указанного вида.
func ObserveRejection(kind string) {
	rejections.WithLabelValues(kind).Inc()
}

// ObserveOverlapCheck учитывает завершённую проверку пересечений.
func ObserveOverlapCheck(err error) {
	overlapChecks.WithLabelValues(result(err)).Inc()
}

// ObserveSubmission учитывает попытку подачи заявки.
func ObserveSubmission(err error) {
	submissions.WithLabelValues(result(err)).Inc()
}

// SetActiveSessions выставляет число открытых сессий формы.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveHTTPRequest учитывает обработанный HTTP-запрос.
func ObserveHTTPRequest(method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
