// Package metrics records pipeline observations.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can
// be disabled without nil checks. PrometheusRecorder is the production
// implementation; HTTPHandler exposes its registry.
package metrics
