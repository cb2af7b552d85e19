// Package metrics exposes Prometheus instruments for dispatch runs.
package metrics

import (
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch runs partitioned by final status
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_runs_total",
			Help: "Total number of dispatch runs by status",
		},
		[]string{"status"},
	)

	// Wall-clock duration of a run
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_dispatch_run_duration_seconds",
			Help:    "Dispatch run latencies in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	// Campaigns handled, partitioned by trigger kind and outcome
	campaignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_campaigns_total",
			Help: "Campaigns processed by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	recipientsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_messages_enqueued_total",
			Help: "Newsletter messages submitted to the mail queue",
		},
		[]string{"trigger"},
	)

	queueFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_dispatch_queue_failures_total",
			Help: "Failed mail queue submissions",
		},
		[]string{"trigger"},
	)
)

// ObserveRun records the status and duration of a finished run.
func ObserveRun(r *domain.RunReport) {
	runsTotal.WithLabelValues(string(r.Status)).Inc()
	if !r.FinishedAt.IsZero() && r.FinishedAt.After(r.StartedAt) {
		runDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}
}

// ObserveCampaign records one campaign outcome.
func ObserveCampaign(o domain.CampaignOutcome) {
	trigger := string(o.Trigger)
	outcome := "dispatched"
	if o.Skipped {
		outcome = "skipped"
	}
	campaignsTotal.WithLabelValues(trigger, outcome).Inc()
	recipientsEnqueued.WithLabelValues(trigger).Add(float64(o.Enqueued))
	queueFailures.WithLabelValues(trigger).Add(float64(o.Failed))
}
