package peer

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	connections prometheus.Counter
	active      prometheus.Gauge
	guesses     *prometheus.CounterVec
	flags       prometheus.Counter
	invalid     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twister_peer_connections_total",
			Help: "Total number of accepted game connections",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "twister_peer_active_connections",
			Help: "Game connections currently open",
		}),
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twister_peer_guesses_total",
			Help: "Guesses judged, by result",
		}, []string{"result"}),
		flags: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twister_peer_flags_total",
			Help: "Total number of flags released",
		}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twister_peer_invalid_messages_total",
			Help: "Messages rejected as malformed or of the wrong type",
		}),
	}
	reg.MustRegister(m.connections, m.active, m.guesses, m.flags, m.invalid)
	return m
}
