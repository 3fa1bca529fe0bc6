package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/git"
	"git.home.luguber.info/inful/spvbuild/internal/include"
	"git.home.luguber.info/inful/spvbuild/internal/logfields"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
	"git.home.luguber.info/inful/spvbuild/internal/metrics"
	"git.home.luguber.info/inful/spvbuild/internal/observability"
	"git.home.luguber.info/inful/spvbuild/internal/output"
	"git.home.luguber.info/inful/spvbuild/internal/report"
	"git.home.luguber.info/inful/spvbuild/internal/variant"
	"git.home.luguber.info/inful/spvbuild/internal/workspace"
)

// WorkspaceFactory creates the staging workspace for a build.
type WorkspaceFactory func(cfg *config.Config) *workspace.Manager

// RevisionReader reads the source revision recorded in the build report.
type RevisionReader func(path string) (*git.Revision, error)

// TextfileWriter is implemented by recorders that can export their metrics to a file.
type TextfileWriter interface {
	WriteTextfile(path string) error
}

// DefaultBuildService is the standard implementation of BuildService.
// It orchestrates the pipeline: manifest → workspace → variants → report.
type DefaultBuildService struct {
	// Optional dependencies that can be injected
	workspaceFactory WorkspaceFactory
	sessionFactory   variant.SessionFactory
	revisionReader   RevisionReader
	idGenerator      func() string
	recorder         metrics.Recorder
}

// NewBuildService creates a new DefaultBuildService with default factories.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		workspaceFactory: DefaultWorkspace,
		sessionFactory:   compiler.NewSession,
		revisionReader:   git.ReadRevision,
		idGenerator:      uuid.NewString,
		recorder:         metrics.NoopRecorder{},
	}
}

// DefaultWorkspace stages below the system temp directory, or keeps a
// persistent staging directory when build.keep_workspace is set.
func DefaultWorkspace(cfg *config.Config) *workspace.Manager {
	if cfg.Build.KeepWorkspace {
		base := cfg.Build.WorkspaceDir
		if base == "" {
			base = filepath.Join(cfg.OutputRoot, ".spvbuild")
		}
		return workspace.NewPersistentManager(base, "staging")
	}
	return workspace.NewManager(cfg.Build.WorkspaceDir)
}

// WithWorkspaceFactory allows injecting a custom workspace factory (for testing).
func (s *DefaultBuildService) WithWorkspaceFactory(factory WorkspaceFactory) *DefaultBuildService {
	s.workspaceFactory = factory
	return s
}

// WithSessionFactory replaces compiler.NewSession.
func (s *DefaultBuildService) WithSessionFactory(factory variant.SessionFactory) *DefaultBuildService {
	s.sessionFactory = factory
	return s
}

// WithRevisionReader replaces the go-git revision lookup.
func (s *DefaultBuildService) WithRevisionReader(reader RevisionReader) *DefaultBuildService {
	s.revisionReader = reader
	return s
}

// WithIDGenerator replaces the random build ID source.
func (s *DefaultBuildService) WithIDGenerator(gen func() string) *DefaultBuildService {
	s.idGenerator = gen
	return s
}

// WithRecorder sets the metrics recorder. A recorder implementing
// TextfileWriter also exports to metrics.textfile after each build.
func (s *DefaultBuildService) WithRecorder(rec metrics.Recorder) *DefaultBuildService {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	s.recorder = rec
	return s
}

// Run executes the complete build pipeline.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{
		BuildID:   s.idGenerator(),
		StartTime: startTime,
	}

	// Add build context for observability
	ctx = observability.WithBuildID(ctx, result.BuildID)

	if req.Config == nil {
		return result, s.finish(ctx, result, nil, nil, errors.ConfigError("config required").Build())
	}
	cfg := req.Config
	result.Profile = cfg.Profile
	ctx = observability.WithProfile(ctx, cfg.Profile)

	manifestPath := cfg.ManifestPath()
	observability.InfoContext(ctx, "Loading shader manifest", logfields.Path(manifestPath))
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return result, s.finish(ctx, result, cfg, nil, err)
	}
	if err := m.Validate(cfg.ShaderRoot); err != nil {
		return result, s.finish(ctx, result, cfg, nil, err)
	}
	variants, err := selectVariants(m, req.Options.Projects)
	if err != nil {
		return result, s.finish(ctx, result, cfg, nil, err)
	}

	rep := report.New(result.BuildID, startTime, s.inputs(ctx, cfg, manifestPath))

	wsManager := s.workspaceFactory(cfg)
	if err := wsManager.Create(); err != nil {
		return result, s.finish(ctx, result, cfg, rep,
			errors.FileSystemError("failed to create workspace").WithCause(err).Build())
	}
	defer func() {
		if err := wsManager.Cleanup(); err != nil {
			observability.WarnContext(ctx, "Failed to cleanup workspace", logfields.Error(err))
		}
	}()

	vc, err := s.variantCompiler(cfg, req.Options.DryRun)
	if err != nil {
		return result, s.finish(ctx, result, cfg, rep, err)
	}

	jobs := cfg.Build.Jobs
	if req.Options.Jobs > 0 {
		jobs = req.Options.Jobs
	}
	observability.InfoContext(ctx, "Compiling variants",
		logfields.Count(len(variants)),
		logfields.Backend(cfg.Compiler.Backend.String()),
		slog.Int("jobs", jobs),
		slog.Bool("dry_run", req.Options.DryRun))

	results, err := s.compileVariants(ctx, vc, wsManager, variants, jobs)
	for _, res := range results {
		if res == nil {
			continue
		}
		rep.AddResult(res)
		result.Variants++
		result.Units += len(res.Artifacts)
		result.Skipped += len(res.Skipped)
		result.Artifacts = append(result.Artifacts, res.Artifacts...)
	}
	if err != nil {
		return result, s.finish(ctx, result, cfg, rep, err)
	}
	return result, s.finish(ctx, result, cfg, rep, nil)
}

// compileVariants runs every variant, sequentially when jobs <= 1. Results are
// indexed like variants; entries for variants that did not complete are nil.
func (s *DefaultBuildService) compileVariants(ctx context.Context, vc *variant.Compiler, ws *workspace.Manager, variants []manifest.Variant, jobs int) ([]*variant.Result, error) {
	results := make([]*variant.Result, len(variants))

	if jobs <= 1 {
		for i, v := range variants {
			if err := ctx.Err(); err != nil {
				return results, errors.Canceled(err).Build()
			}
			res, err := s.compileVariant(ctx, vc, ws, i, v)
			if err != nil {
				return results, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, v := range variants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.Canceled(err).Build()
			}
			res, err := s.compileVariant(gctx, vc, ws, i, v)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	return results, g.Wait()
}

// compileVariant gives each variant its own staging directory so concurrent
// variants of one project never share staged files.
func (s *DefaultBuildService) compileVariant(ctx context.Context, vc *variant.Compiler, ws *workspace.Manager, index int, v manifest.Variant) (*variant.Result, error) {
	dir, err := ws.CreateSubdir(fmt.Sprintf("variant-%03d", index))
	if err != nil {
		return nil, errors.FileSystemError("failed to create variant staging directory").
			WithCause(err).
			WithContext("project", v.Project.Name).
			WithContext("combination", v.Key()).
			Build()
	}
	return vc.Compile(ctx, v, dir)
}

func (s *DefaultBuildService) variantCompiler(cfg *config.Config, dryRun bool) (*variant.Compiler, error) {
	resolver, err := include.NewResolver(cfg.ShaderRoot)
	if err != nil {
		return nil, errors.ConfigError("invalid shader root").
			WithCause(err).
			WithContext("path", cfg.ShaderRoot).
			Build()
	}
	return &variant.Compiler{
		SourceRoot:  cfg.ShaderRoot,
		Backend:     cfg.Compiler.Backend,
		Base:        cfg.CompilerOptions(),
		MacroPrefix: cfg.Compiler.MacroPrefix,
		Layout: output.Layout{
			Root:            cfg.OutputRoot,
			Profile:         cfg.Profile,
			KeepStageSuffix: cfg.Output.KeepStageSuffix,
		},
		Writer:     &output.Writer{DryRun: dryRun},
		Include:    resolver.Func(),
		Recorder:   s.recorder,
		NewSession: s.sessionFactory,
	}, nil
}

// inputs collects the report inputs. Failures only cost report detail.
func (s *DefaultBuildService) inputs(ctx context.Context, cfg *config.Config, manifestPath string) report.Inputs {
	in := report.Inputs{
		Profile:    cfg.Profile,
		Backend:    cfg.Compiler.Backend.String(),
		ShaderRoot: cfg.ShaderRoot,
	}
	if h, err := report.HashFile(manifestPath); err == nil {
		in.ManifestHash = h
	} else {
		observability.WarnContext(ctx, "Failed to hash manifest", logfields.Error(err))
	}
	if h, err := git.ContentHash(cfg.ShaderRoot, cfg.Compiler.Backend.Extension()); err == nil {
		in.SourceHash = h
	} else {
		observability.WarnContext(ctx, "Failed to hash shader sources", logfields.Error(err))
	}
	if s.revisionReader != nil {
		rev, err := s.revisionReader(cfg.ShaderRoot)
		switch {
		case err == nil:
			in.Revision = rev
		case stderrors.Is(err, git.ErrNotRepository):
			observability.DebugContext(ctx, "Shader root is not under version control")
		default:
			observability.WarnContext(ctx, "Failed to read source revision", logfields.Error(err))
		}
	}
	return in
}

// finish settles the result status, records metrics and writes the report
// and metrics textfile. It returns the error the build ends with.
func (s *DefaultBuildService) finish(ctx context.Context, result *BuildResult, cfg *config.Config, rep *report.BuildReport, buildErr error) error {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if buildErr != nil && ctx.Err() != nil && !errors.HasCategory(buildErr, errors.CategoryCanceled) {
		buildErr = errors.Canceled(ctx.Err()).WithCause(buildErr).Build()
	}
	switch {
	case buildErr == nil:
		result.Status = BuildStatusSuccess
	case errors.HasCategory(buildErr, errors.CategoryCanceled):
		result.Status = BuildStatusCancelled
	default:
		result.Status = BuildStatusFailed
	}

	if rep != nil {
		rep.Finish(string(result.Status), result.Duration, buildErr)
		result.Report = rep
		if cfg != nil && cfg.Report.Path != "" {
			if err := rep.Write(cfg.Report.Path); err != nil {
				observability.ErrorContext(ctx, "Failed to write build report", logfields.Path(cfg.Report.Path), logfields.Error(err))
				if buildErr == nil {
					result.Status = BuildStatusFailed
					buildErr = errors.FileSystemError("failed to write build report").
						WithCause(err).
						WithContext("path", cfg.Report.Path).
						Build()
				}
			} else {
				result.ReportPath = cfg.Report.Path
			}
		}
	}

	outcome := metrics.BuildOutcomeSuccess
	switch result.Status {
	case BuildStatusFailed:
		outcome = metrics.BuildOutcomeFailed
	case BuildStatusCancelled:
		outcome = metrics.BuildOutcomeCanceled
	}
	s.recorder.IncBuildOutcome(outcome)
	s.recorder.ObserveBuildDuration(result.Duration)

	if tw, ok := s.recorder.(TextfileWriter); ok && cfg != nil && cfg.Metrics.Textfile != "" {
		if err := tw.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			observability.WarnContext(ctx, "Failed to write metrics textfile", logfields.Path(cfg.Metrics.Textfile), logfields.Error(err))
		}
	}

	if buildErr != nil {
		observability.ErrorContext(ctx, "Build failed",
			slog.String("status", string(result.Status)),
			logfields.Count(result.Variants),
			logfields.Error(buildErr))
		return buildErr
	}
	observability.InfoContext(ctx, "Build completed",
		logfields.Count(result.Variants),
		slog.Int("units", result.Units),
		logfields.Skipped(result.Skipped),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return nil
}

// selectVariants expands the manifest, restricted to the named projects when
// any are given. Declaration order is kept.
func selectVariants(m *manifest.ShaderManifest, projects []string) ([]manifest.Variant, error) {
	if len(projects) == 0 {
		return m.Variants(), nil
	}
	wanted := make(map[string]struct{}, len(projects))
	for _, name := range projects {
		if _, ok := m.Project(name); !ok {
			return nil, errors.ValidationError("unknown project").
				WithContext("project", name).
				Build()
		}
		wanted[name] = struct{}{}
	}
	var variants []manifest.Variant
	for _, p := range m.Projects {
		if _, ok := wanted[p.Name]; ok {
			variants = append(variants, p.Variants()...)
		}
	}
	return variants, nil
}
