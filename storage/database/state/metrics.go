package statedb

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	remotePushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academia",
		Subsystem: "sync",
		Name:      "remote_pushes_total",
		Help:      "Rows pushed to the remote backend, by collection, operation and result.",
	}, []string{"collection", "op", "result"})

	remoteEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academia",
		Subsystem: "sync",
		Name:      "remote_events_total",
		Help:      "Remote change events merged into the local state, by collection and type.",
	}, []string{"collection", "type"})

	localWriteErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academia",
		Subsystem: "sync",
		Name:      "local_write_errors_total",
		Help:      "Failed writes to the local storage, by collection.",
	}, []string{"collection"})
)

// Collectors returns the sync metrics, to be registered by the app.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{remotePushes, remoteEvents, localWriteErrors}
}
