package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var remindersEmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "classnotify_class_reminders_emitted_total",
	Help: "Class-start reminder intents handed to the notification writer.",
})
