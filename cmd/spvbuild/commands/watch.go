package commands

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/logfields"
	"git.home.luguber.info/inful/spvbuild/internal/metrics"
	"git.home.luguber.info/inful/spvbuild/internal/notify"
	"git.home.luguber.info/inful/spvbuild/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildFlags
	MetricsListen string `name:"metrics-listen" help:"Serve Prometheus metrics on this address (e.g. :9464)"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if w.MetricsListen != "" {
		cfg.Metrics.Listen = w.MetricsListen
	}
	if err := w.Apply(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, cfg, w.options())
}

// RunWatch builds once, then rebuilds on every settled change until ctx is done.
// Failed builds are reported and watching continues.
func RunWatch(ctx context.Context, cfg *config.Config, opts build.BuildOptions) error {
	rec := metrics.NewPrometheusRecorder(nil)
	svc := build.NewBuildService().WithRecorder(rec)

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = notifier.Close() }()

	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, rec)
		if err != nil {
			return err
		}
		defer stop()
	}

	rebuild := func(ctx context.Context) {
		result, err := RunBuild(ctx, os.Stdout, svc, cfg, opts)
		if err != nil {
			if ctx.Err() == nil {
				_, _ = os.Stderr.WriteString(errors.NewCLIErrorAdapter(false, nil).FormatError(err) + "\n")
			}
			return
		}
		if err := notifier.Notify(ctx, notify.EventFromResult(result)); err != nil {
			slog.Warn("Failed to publish rebuild event", logfields.Error(err))
		}
	}

	ignore := []string{cfg.OutputRoot}
	if cfg.Build.WorkspaceDir != "" {
		ignore = append(ignore, cfg.Build.WorkspaceDir)
	}
	watcher, err := watch.New(watch.Options{
		Root:     cfg.ShaderRoot,
		Debounce: cfg.Watch.DebounceDuration(),
		Ignore:   ignore,
		Build:    rebuild,
	})
	if err != nil {
		return errors.RuntimeError("failed to watch shader root").
			WithCause(err).
			WithContext("path", cfg.ShaderRoot).
			Build()
	}

	rebuild(ctx)
	return watcher.Run(ctx)
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Notify.NATSURL == "" {
		return notify.NoopNotifier{}, nil
	}
	return notify.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.Subject)
}

// serveMetrics exposes rec on addr at /metrics and returns a shutdown func.
func serveMetrics(addr string, rec *metrics.PrometheusRecorder) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.RuntimeError("failed to listen for metrics").
			WithCause(err).
			WithContext("address", addr).
			Build()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(rec.Registry()))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("address", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown error", logfields.Error(err))
		}
	}, nil
}
