package metrics

import "time"

// testRecorder counts calls; it doubles as a compile-time check that the
// interface stays implementable outside the Prometheus adapter.
type testRecorder struct {
	unitResults   map[string]map[ResultLabel]int
	buildOutcomes map[BuildOutcomeLabel]int
	bytes         int
}

var (
	_ Recorder = (*testRecorder)(nil)
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func (t *testRecorder) ObserveUnitDuration(string, time.Duration) {}
func (t *testRecorder) IncUnitResult(stage string, result ResultLabel) {
	m, ok := t.unitResults[stage]
	if !ok {
		m = map[ResultLabel]int{}
		t.unitResults[stage] = m
	}
	m[result]++
}
func (t *testRecorder) ObserveVariantDuration(string, time.Duration) {}
func (t *testRecorder) AddArtifactBytes(_ string, n int)             { t.bytes += n }
func (t *testRecorder) ObserveBuildDuration(time.Duration)           {}
func (t *testRecorder) IncBuildOutcome(o BuildOutcomeLabel)          { t.buildOutcomes[o]++ }
