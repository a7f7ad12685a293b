package flags

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var createCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modflags_created",
	Help: "Number of flags created",
}, []string{"type"})

var updateCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modflags_updates",
	Help: "Number of applied (non-empty) flag changesets",
})

var listDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "modflags_list_duration_sec",
	Help: "Duration of flag list queries",
})

var hydrateErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modflags_hydrate_errors",
	Help: "Number of flag view entries degraded during hydration",
})

var notifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modflags_notify_errors",
	Help: "Number of failed flag notification deliveries",
})
