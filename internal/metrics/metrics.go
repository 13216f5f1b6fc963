package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	TenantResolutions   *prometheus.CounterVec
	StaleResolutions    prometheus.Counter
	FeedRefetchFailures prometheus.Counter
	FeedLiveEvents      *prometheus.CounterVec
	MessagesSent        prometheus.Counter
	RoutingFailures     prometheus.Counter
	OpenSessions        prometheus.Gauge
	PendingReports      *prometheus.GaugeVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TenantResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Tenant resolutions by source.",
		}, []string{"source"}), // identity, custom_domain, subdomain, dev_override, none, error
		StaleResolutions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "tenant",
			Name:      "stale_resolutions_discarded_total",
			Help:      "Resolution results dropped because a newer attempt was issued.",
		}),
		FeedRefetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "chat",
			Name:      "feed_refetch_failures_total",
			Help:      "Chat feed refetches that failed and kept the previous state.",
		}),
		FeedLiveEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "chat",
			Name:      "feed_live_events_total",
			Help:      "Live insert events seen by open feeds, by outcome.",
		}, []string{"outcome"}), // applied, duplicate, ignored
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Messages persisted.",
		}),
		RoutingFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coachhub",
			Subsystem: "chat",
			Name:      "routing_failures_total",
			Help:      "Client sends rejected because no coach was available.",
		}),
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "coachhub",
			Subsystem: "session",
			Name:      "open",
			Help:      "Currently connected client sessions.",
		}),
		PendingReports: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coachhub",
			Subsystem: "moderation",
			Name:      "pending_reports",
			Help:      "Reports awaiting moderator review per tenant.",
		}, []string{"tenant_id"}),
	}
}

// NewNop returns collectors registered on a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
