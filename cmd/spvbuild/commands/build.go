package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if err := b.Apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err = RunBuild(ctx, os.Stdout, newService(cfg), cfg, b.options())
	return err
}

func (f *BuildFlags) options() build.BuildOptions {
	return build.BuildOptions{
		Projects: f.Project,
		DryRun:   f.DryRun,
		Jobs:     f.Jobs,
	}
}

// newService wires a build service for cfg. Prometheus metrics are only
// collected when they are exported.
func newService(cfg *config.Config) *build.DefaultBuildService {
	svc := build.NewBuildService()
	if cfg.Metrics.Textfile != "" || cfg.Metrics.Listen != "" {
		svc.WithRecorder(metrics.NewPrometheusRecorder(nil))
	}
	return svc
}

// RunBuild runs one build and prints a summary to out.
func RunBuild(ctx context.Context, out io.Writer, svc build.BuildService, cfg *config.Config, opts build.BuildOptions) (*build.BuildResult, error) {
	_, _ = fmt.Fprintf(out, "Building shaders from %s (profile %s, backend %s)\n", cfg.ShaderRoot, cfg.Profile, cfg.Compiler.Backend)

	result, err := svc.Run(ctx, build.BuildRequest{Config: cfg, Options: opts})
	if err != nil {
		return result, err
	}

	verb := "wrote"
	if opts.DryRun {
		verb = "compiled (dry run)"
	}
	_, _ = fmt.Fprintf(out, "Build %s: %d variants, %s %d binaries to %s in %s\n",
		result.Status, result.Variants, verb, result.Units, cfg.OutputRoot, result.Duration.Round(time.Millisecond))
	if result.Skipped > 0 {
		_, _ = fmt.Fprintf(out, "Skipped %d files without a stage suffix\n", result.Skipped)
	}
	if result.ReportPath != "" {
		_, _ = fmt.Fprintf(out, "Report written to %s\n", result.ReportPath)
	}
	return result, nil
}
