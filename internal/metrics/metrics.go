// Package metrics exposes Prometheus counters for evaluation and profile
// outcomes. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests can create as many as they like.
type Recorder struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	profiles    *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	answers     *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqdrill",
			Name:      "free_text_evaluations_total",
			Help:      "Free-text evaluations by scoring path.",
		}, []string{"path"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqdrill",
			Name:      "profiles_total",
			Help:      "Skill profiles produced by scoring path.",
		}, []string{"path"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqdrill",
			Name:      "fallbacks_total",
			Help:      "Model failures that degraded to the rule-based path.",
		}, []string{"component", "reason"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqdrill",
			Name:      "llm_requests_total",
			Help:      "Model requests by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cqdrill",
			Name:      "llm_request_seconds",
			Help:      "Model request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 9),
		}, []string{"purpose"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqdrill",
			Name:      "answers_total",
			Help:      "Graded answers by item type.",
		}, []string{"type"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.evaluations, r.profiles, r.fallbacks, r.llmRequests, r.llmLatency, r.answers,
	)
	return r
}

// Evaluation counts one free-text evaluation. path is "model", "fallback" or "short".
func (r *Recorder) Evaluation(path string) {
	if r == nil {
		return
	}
	r.evaluations.WithLabelValues(path).Inc()
}

// Profile counts one profile. path is "model", "fallback" or "insufficient".
func (r *Recorder) Profile(path string) {
	if r == nil {
		return
	}
	r.profiles.WithLabelValues(path).Inc()
}

// Fallback counts a degraded model call.
func (r *Recorder) Fallback(component, reason string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(component, reason).Inc()
}

// LLMRequest records one provider round trip.
func (r *Recorder) LLMRequest(purpose string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.llmRequests.WithLabelValues(purpose, outcome).Inc()
	r.llmLatency.WithLabelValues(purpose).Observe(d.Seconds())
}

// Answer counts graded answers of the given item type.
func (r *Recorder) Answer(itemType string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.answers.WithLabelValues(itemType).Add(float64(n))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
