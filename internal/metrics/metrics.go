// Package metrics holds the Prometheus collectors for sign-in, email
// verification and the delivery queue. A nil *Metrics records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth"

type Metrics struct {
	logins          *prometheus.CounterVec
	codesSent       prometheus.Counter
	codeChecks      *prometheus.CounterVec
	emailJobs       *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	registry        *prometheus.Registry
}

// New registers all collectors, plus the Go and process collectors, on a
// private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by kind (user, admin) and outcome.",
		}, []string{"kind", "outcome"}),
		codesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_codes_sent_total",
			Help:      "Verification codes stored and queued for delivery.",
		}),
		codeChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_checks_total",
			Help:      "Verification code checks by outcome (accepted, incorrect, absent).",
		}, []string{"outcome"}),
		emailJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_jobs_total",
			Help:      "Email job deliveries by outcome (delivered, retried, dropped).",
		}, []string{"outcome"}),
		guardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Requests refused by the guard chain, by reason.",
		}, []string{"reason"}),
		registry: reg,
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins, m.codesSent, m.codeChecks, m.emailJobs, m.guardRejections,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Login(kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.logins.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) CodeSent() {
	if m == nil {
		return
	}
	m.codesSent.Inc()
}

func (m *Metrics) CodeCheck(outcome string) {
	if m == nil {
		return
	}
	m.codeChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EmailJob(outcome string) {
	if m == nil {
		return
	}
	m.emailJobs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GuardRejection(reason string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(reason).Inc()
}
