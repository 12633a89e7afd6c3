package authcore

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "authcore"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	login                *prometheus.CounterVec
	refresh              *prometheus.CounterVec
	logout               prometheus.Counter
	passwordReset        *prometheus.CounterVec
	revocationFailures   *prometheus.CounterVec
	notificationsDropped prometheus.Counter
	auditDropped         prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "login_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_total",
			Help:      "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		logout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logout_total",
			Help:      "Completed logouts.",
		}),
		passwordReset: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "password_reset_total",
			Help:      "Password reset requests and confirmations by outcome.",
		}, []string{"stage", "outcome"}),
		revocationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "revocation_failures_total",
			Help:      "Revocation list backend failures by operation.",
		}, []string{"op"}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications discarded because the queue was full.",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "audit_dropped_total",
			Help:      "Audit events discarded because the buffer was full.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.login, m.refresh, m.logout, m.passwordReset,
		m.revocationFailures, m.notificationsDropped, m.auditDropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) loginOutcome(outcome string)   { m.login.WithLabelValues(outcome).Inc() }
func (m *Metrics) refreshOutcome(outcome string) { m.refresh.WithLabelValues(outcome).Inc() }
func (m *Metrics) resetOutcome(stage, outcome string) {
	m.passwordReset.WithLabelValues(stage, outcome).Inc()
}
