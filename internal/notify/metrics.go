package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classnotify_notifications_written_total",
		Help: "Notification documents persisted, by surface and type.",
	}, []string{"surface", "type"})

	dedupeHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classnotify_notification_dedupe_hits_total",
		Help: "Writes skipped because the composite dedupe key already existed.",
	}, []string{"surface"})
)
