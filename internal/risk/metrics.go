package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var riskWarningsEmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "classnotify_attendance_risk_warnings_total",
	Help: "Absence-threshold crossing warnings handed to the notification writer.",
})
