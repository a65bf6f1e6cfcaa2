package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "app",
		Name:      "messages_received_total",
		Help:      "Chat messages consumed from the event bus.",
	})

	reportsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "app",
		Name:      "reports_collected_total",
		Help:      "Messages recognized as daily reports and stored.",
	})

	recallsHandled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reportd",
		Subsystem: "app",
		Name:      "recalls_handled_total",
		Help:      "Recall events that removed a stored report.",
	})
)
