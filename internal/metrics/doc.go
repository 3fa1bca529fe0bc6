// Package metrics records build observability data.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless configured:
//
//	svc := build.NewBuildService().WithRecorder(metrics.NewPrometheusRecorder(nil))
//
// PrometheusRecorder can export its registry as a node_exporter textfile
// (metrics.textfile in the tool config) after each build, or serve it over
// HTTP while `spvbuild watch` runs.
package metrics
