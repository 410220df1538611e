// Package metrics records session store activity.
//
// Metrics:
//   - drinkshelf_session_auth_attempts_total{op,outcome}: counter
//   - drinkshelf_session_restore_fetches_total: counter
//   - drinkshelf_session_inflight: gauge
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OpLogin    = "login"
	OpRegister = "register"
	OpRestore  = "restore"

	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDiscarded = "discarded"
)

// Recorder receives session store events.
type Recorder interface {
	AuthAttempt(op, outcome string)
	RestoreFetch()
	InFlight(delta int)
}

// Nop drops everything.
type Nop struct{}

func (Nop) AuthAttempt(string, string) {}
func (Nop) RestoreFetch()              {}
func (Nop) InFlight(int)               {}

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	attempts *prometheus.CounterVec
	restores prometheus.Counter
	inflight prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drinkshelf",
			Subsystem: "session",
			Name:      "auth_attempts_total",
			Help:      "Login, register and restore attempts by outcome.",
		}, []string{"op", "outcome"}),
		restores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drinkshelf",
			Subsystem: "session",
			Name:      "restore_fetches_total",
			Help:      "Current-user fetches issued to restore a stored session.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drinkshelf",
			Subsystem: "session",
			Name:      "inflight",
			Help:      "Login and register requests awaiting an answer.",
		}),
	}

	for _, c := range []prometheus.Collector{p.attempts, p.restores, p.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) AuthAttempt(op, outcome string) {
	p.attempts.WithLabelValues(op, outcome).Inc()
}

func (p *Prometheus) RestoreFetch() {
	p.restores.Inc()
}

func (p *Prometheus) InFlight(delta int) {
	p.inflight.Add(float64(delta))
}
