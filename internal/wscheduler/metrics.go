package wscheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queuedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webhookd_scheduler_queued_tasks",
			Help: "Tasks currently queued, by webhook.",
		},
		[]string{"webhook"},
	)

	runningGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webhookd_scheduler_running_tasks",
			Help: "Tasks currently running, by webhook.",
		},
		[]string{"webhook"},
	)

	tasksAdmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhookd_scheduler_tasks_admitted_total",
			Help: "Tasks accepted into the queue, by webhook.",
		},
		[]string{"webhook"},
	)

	tasksRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhookd_scheduler_tasks_rejected_total",
			Help: "Tasks dropped by the per-webhook admission policy, by webhook.",
		},
		[]string{"webhook"},
	)

	tasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhookd_scheduler_tasks_completed_total",
			Help: "Tasks finalised, by webhook and outcome.",
		},
		[]string{"webhook", "outcome"},
	)
)

func outcomeLabel(exitCode int32) string {
	if exitCode == 0 {
		return "success"
	}
	return "failure"
}

func recordCounts(counts map[string]int, gauge *prometheus.GaugeVec) {
	for name, n := range counts {
		gauge.WithLabelValues(name).Set(float64(n))
	}
}
