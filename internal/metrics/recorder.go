package metrics

import "time"

// ResultLabel enumerates per-unit compile results for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel is the final status of a build.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build, variant and unit metrics.
// Implementations may forward to Prometheus. NoopRecorder is the default.
type Recorder interface {
	ObserveUnitDuration(stage string, d time.Duration)
	IncUnitResult(stage string, result ResultLabel)
	ObserveVariantDuration(project string, d time.Duration)
	AddArtifactBytes(project string, n int)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveUnitDuration(string, time.Duration)    {}
func (NoopRecorder) IncUnitResult(string, ResultLabel)            {}
func (NoopRecorder) ObserveVariantDuration(string, time.Duration) {}
func (NoopRecorder) AddArtifactBytes(string, int)                 {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)           {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)            {}
