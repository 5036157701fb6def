package membership

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	submitted          prometheus.Counter
	decisions          *prometheus.CounterVec
	warnings           prometheus.Counter
	expulsions         *prometheus.CounterVec
	capabilityFailures *prometheus.CounterVec
}

// newMetrics registers collectors on reg. A nil reg yields unregistered collectors.
func newMetrics(reg prometheus.Registerer) *serviceMetrics {
	factory := promauto.With(reg)
	return &serviceMetrics{
		submitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatebot",
			Name:      "applications_submitted_total",
			Help:      "number of completed questionnaires stored as pending",
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatebot",
			Name:      "decisions_total",
			Help:      "admin decisions on pending applications",
		}, []string{"action"}),
		warnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gatebot",
			Name:      "warnings_total",
			Help:      "warnings issued to members",
		}),
		expulsions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatebot",
			Name:      "expulsions_total",
			Help:      "member records removed, by cause",
		}, []string{"cause"}),
		capabilityFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatebot",
			Name:      "capability_failures_total",
			Help:      "failed outbound platform calls",
		}, []string{"capability"}),
	}
}
