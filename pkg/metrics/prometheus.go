package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	passDuration *prom.HistogramVec
	passOutcomes *prom.CounterVec
	drainRounds  prom.Histogram
	callbacks    *prom.CounterVec
	liveScopes   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		passDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "scopesync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of coordinator load and save passes",
			Buckets:   prom.DefBuckets,
		}, []string{"pass"}),
		passOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "scopesync",
			Name:      "pass_outcomes_total",
			Help:      "Coordinator pass outcomes by pass kind",
		}, []string{"pass", "outcome"}),
		drainRounds: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "scopesync",
			Name:      "drain_rounds",
			Help:      "Rounds needed for a load drain to reach a fixed point",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		callbacks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "scopesync",
			Name:      "listener_callbacks_total",
			Help:      "Listener callbacks delivered by kind",
		}, []string{"callback"}),
		liveScopes: prom.NewGauge(prom.GaugeOpts{
			Namespace: "scopesync",
			Name:      "live_scopes",
			Help:      "Number of scopes currently alive in the tree",
		}),
	}
	reg.MustRegister(pr.passDuration, pr.passOutcomes, pr.drainRounds, pr.callbacks, pr.liveScopes)
	return pr
}

func (p *PrometheusRecorder) ObservePassDuration(pass PassLabel, d time.Duration) {
	if p == nil || p.passDuration == nil {
		return
	}
	p.passDuration.WithLabelValues(string(pass)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPassOutcome(pass PassLabel, outcome OutcomeLabel) {
	if p == nil || p.passOutcomes == nil {
		return
	}
	p.passOutcomes.WithLabelValues(string(pass), string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveDrainRounds(rounds int) {
	if p == nil || p.drainRounds == nil {
		return
	}
	p.drainRounds.Observe(float64(rounds))
}

func (p *PrometheusRecorder) AddCallbacks(callback CallbackLabel, n int) {
	if p == nil || p.callbacks == nil || n <= 0 {
		return
	}
	p.callbacks.WithLabelValues(string(callback)).Add(float64(n))
}

func (p *PrometheusRecorder) SetLiveScopes(n int) {
	if p == nil || p.liveScopes == nil {
		return
	}
	p.liveScopes.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
