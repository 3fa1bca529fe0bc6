package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/report"
	"git.home.luguber.info/inful/spvbuild/internal/variant"
)

// BuildService is the canonical interface for executing shader builds.
// The build, watch and discover commands are thin wrappers over it.
type BuildService interface {
	// Run loads the manifest and compiles every selected variant.
	// Returns a BuildResult with detailed outcomes and any error encountered.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a shader build.
type BuildRequest struct {
	// Config is the resolved tool configuration for this build.
	Config *config.Config

	// Options provides optional build behavior modifiers.
	Options BuildOptions
}

// BuildOptions provides optional configuration for build behavior.
type BuildOptions struct {
	// Projects restricts the build to the named projects (empty = all).
	Projects []string

	// DryRun compiles every unit but writes no output files.
	DryRun bool

	// Jobs overrides the configured variant concurrency when > 0.
	Jobs int
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	// BuildID identifies the build in logs, reports and notifications.
	BuildID string

	// Status indicates overall build outcome.
	Status BuildStatus

	// Profile is the output profile directory name.
	Profile string

	// Variants is the count of compiled variants.
	Variants int

	// Units is the count of compiled shader units.
	Units int

	// Skipped is the count of source files without a stage suffix.
	Skipped int

	// Artifacts lists every written binary in build order.
	Artifacts []variant.ArtifactInfo

	// Report is the build record, also written to ReportPath when configured.
	Report *report.BuildReport

	// ReportPath is where the report was written (empty when disabled).
	ReportPath string

	// Duration is the total build execution time.
	Duration time.Duration

	// StartTime is when the build started.
	StartTime time.Time

	// EndTime is when the build completed.
	EndTime time.Time
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates the build completed successfully.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates the build encountered an error.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the build was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusFailed || s == BuildStatusCancelled
}

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
