package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"twister/pkg/proto"
)

// Metrics counts session activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Observations prometheus.Counter
	Guesses      prometheus.Counter
	Outcomes     *prometheus.CounterVec
}

// NewMetrics creates the session collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Observations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twister_observations_total",
			Help: "Total number of raw generator outputs collected",
		}),
		Guesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "twister_guesses_total",
			Help: "Total number of predicted guesses sent",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twister_sessions_total",
			Help: "Finished sessions by terminal phase",
		}, []string{"phase"}),
	}
	reg.MustRegister(m.Observations, m.Guesses, m.Outcomes)
	return m
}

func (m *Metrics) observed() {
	if m != nil {
		m.Observations.Inc()
	}
}

func (m *Metrics) guessed() {
	if m != nil {
		m.Guesses.Inc()
	}
}

func (m *Metrics) outcome(p proto.Phase) {
	if m != nil {
		m.Outcomes.WithLabelValues(p.String()).Inc()
	}
}
