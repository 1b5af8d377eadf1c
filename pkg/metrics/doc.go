// Package metrics records scope lifecycle metrics.
//
// Components receive a [Recorder] through options and default to
// [NoopRecorder], so metrics cost nothing unless a real implementation is
// injected. [PrometheusRecorder] exports pass durations, pass outcomes, drain
// rounds, listener callback counts and the live scope count; [HTTPHandler]
// serves a registry over HTTP.
//
//	reg := prometheus.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	coordinator := lifecycle.New(lifecycle.WithRecorder(recorder))
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
