package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	summariesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "dispatch",
		Name:      "summaries_sent_total",
		Help:      "Summary emails successfully handed to the dispatcher.",
	})

	sendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "dispatch",
		Name:      "send_failures_total",
		Help:      "Summary send attempts that failed and stayed retryable.",
	})

	graceTimersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "reportd",
		Subsystem: "dispatch",
		Name:      "grace_timers_active",
		Help:      "Submitters currently inside their grace window.",
	})
)
