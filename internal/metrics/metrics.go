package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signal_agent"

// Metrics holds the Prometheus collectors of the synchronization engine.
type Metrics struct {
	MessagesTotal    *prometheus.CounterVec
	UpdatesApplied   prometheus.Counter
	UpdatesDangling  prometheus.Counter
	StaleEvents      prometheus.Counter
	ChannelsOpened   prometheus.Counter
	ChannelsClosed   *prometheus.CounterVec
	AuthAttempts     *prometheus.CounterVec
	ConnectionState  prometheus.Gauge
	ConnectedUsers   prometheus.Gauge
	SignalsTotal     prometheus.Gauge
	BridgePublishErr prometheus.Counter
}

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Incoming channel messages by dispatch outcome and command.",
		}, []string{"outcome", "command"}),
		UpdatesApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_applied_total",
			Help:      "Signal updates applied to the store.",
		}),
		UpdatesDangling: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_dangling_total",
			Help:      "Signal updates skipped because their index is not in the store.",
		}),
		StaleEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_total",
			Help:      "Channel events dropped because they belong to a replaced generation.",
		}),
		ChannelsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_opened_total",
			Help:      "Channel generations successfully opened.",
		}),
		ChannelsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_closed_total",
			Help:      "Channel generations closed, by cause.",
		}, []string{"cause"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Lifecycle state: 0 unauthenticated, 1 connecting, 2 active, 3 handoff.",
		}),
		ConnectedUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Connected-user count last reported by the server.",
		}),
		SignalsTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signals",
			Help:      "Records in the current signal store.",
		}),
		BridgePublishErr: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_publish_errors_total",
			Help:      "Store events the MQTT bridge failed to publish.",
		}),
	}
}
