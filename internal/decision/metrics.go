package decision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksRescheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classnotify_decision_tasks_rescheduled_total",
		Help: "Decision tasks re-enqueued because the record was still pending.",
	})

	tasksAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classnotify_decision_tasks_abandoned_total",
		Help: "Decision tasks abandoned after exhausting the retry budget.",
	})

	decisionsNotified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classnotify_decision_notifications_total",
		Help: "Outcome notifications handed to the notification writer.",
	})
)
