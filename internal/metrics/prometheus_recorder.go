package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "spvbuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	reg             *prom.Registry
	unitDuration    *prom.HistogramVec
	unitResults     *prom.CounterVec
	variantDuration *prom.HistogramVec
	artifactBytes   *prom.CounterVec
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
	lastBuild       prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.unitDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_compile_duration_seconds",
			Help:      "Duration of individual shader compilations",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.unitResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "unit_results_total",
			Help:      "Shader compilation results by stage and outcome",
		}, []string{"stage", "result"})
		pr.variantDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "variant_duration_seconds",
			Help:      "Duration of one macro combination of a project",
			Buckets:   prom.DefBuckets,
		}, []string{"project"})
		pr.artifactBytes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Bytes of SPIR-V produced per project",
		}, []string{"project"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.lastBuild = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time of the last finished build",
		})
		reg.MustRegister(pr.unitDuration, pr.unitResults, pr.variantDuration, pr.artifactBytes,
			pr.buildDuration, pr.buildOutcome, pr.lastBuild)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveUnitDuration(stage string, d time.Duration) {
	if p == nil || p.unitDuration == nil {
		return
	}
	p.unitDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncUnitResult(stage string, result ResultLabel) {
	if p == nil || p.unitResults == nil {
		return
	}
	p.unitResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveVariantDuration(project string, d time.Duration) {
	if p == nil || p.variantDuration == nil {
		return
	}
	p.variantDuration.WithLabelValues(project).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddArtifactBytes(project string, n int) {
	if p == nil || p.artifactBytes == nil {
		return
	}
	p.artifactBytes.WithLabelValues(project).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
	p.lastBuild.SetToCurrentTime()
}

// WriteTextfile writes the current metrics in the Prometheus text exposition
// format, for collection by node_exporter's textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
