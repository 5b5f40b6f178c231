// Package metrics exposes the sync core's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set groups the counters the relay and peer manager increment. Create one
// per process; tests pass their own registry to keep registrations isolated.
type Set struct {
	PacketsDecoded       *prometheus.CounterVec
	DecodeFailures       prometheus.Counter
	PacketsRelayed       prometheus.Counter
	ValidationRejections prometheus.Counter
	SendFailures         prometheus.Counter
	EntitiesEvicted      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Set {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Set{
		PacketsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coopsync",
			Name:      "packets_decoded_total",
			Help:      "Inbound packets decoded successfully, by sender role.",
		}, []string{"direction"}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coopsync",
			Name:      "decode_failures_total",
			Help:      "Inbound packets dropped because they failed to decode.",
		}),
		PacketsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coopsync",
			Name:      "packets_relayed_total",
			Help:      "Host-side packets fanned out to clients.",
		}),
		ValidationRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coopsync",
			Name:      "validation_rejections_total",
			Help:      "Client updates rejected by the numeric sanity check.",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coopsync",
			Name:      "send_failures_total",
			Help:      "Sends the transport reported as failed.",
		}),
		EntitiesEvicted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coopsync",
			Name:      "entities_evicted_total",
			Help:      "Remote entity records evicted, by kind.",
		}, []string{"kind"}),
	}
}
