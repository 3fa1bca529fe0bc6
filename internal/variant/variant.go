// Package variant compiles every unit of one (project, macro combination)
// variant and hands the binaries to the output writer.
package variant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/include"
	"git.home.luguber.info/inful/spvbuild/internal/logfields"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
	"git.home.luguber.info/inful/spvbuild/internal/metrics"
	"git.home.luguber.info/inful/spvbuild/internal/observability"
	"git.home.luguber.info/inful/spvbuild/internal/output"
)

// DefaultMacroPrefix is prepended to optional combination tokens.
const DefaultMacroPrefix = "USE_"

// ArtifactInfo describes one compiled unit.
type ArtifactInfo struct {
	Project     string        `json:"project"`
	Combination string        `json:"combination"`
	Source      string        `json:"source"`
	Stage       string        `json:"stage"`
	Output      string        `json:"output"`
	Bytes       int           `json:"bytes"`
	SHA256      string        `json:"sha256"`
	Duration    time.Duration `json:"-"`
}

// Result is the outcome of one variant.
type Result struct {
	Variant   manifest.Variant
	Artifacts []ArtifactInfo
	// Skipped lists source files without a recognized stage suffix.
	Skipped  []string
	Duration time.Duration
}

// SessionFactory opens a compiler session. compiler.NewSession is the default.
type SessionFactory func(backend compiler.Backend, opts compiler.Options) (compiler.Session, error)

// Compiler compiles variants of projects below SourceRoot.
type Compiler struct {
	SourceRoot  string
	Backend     compiler.Backend
	Base        compiler.Options
	MacroPrefix string
	Layout      output.Layout
	Writer      *output.Writer
	Include     include.Func
	Recorder    metrics.Recorder
	NewSession  SessionFactory
}

// Options returns the session options for v: the base options with the
// variant's macros, each defined as 1.
func (c *Compiler) Options(v manifest.Variant) compiler.Options {
	prefix := c.MacroPrefix
	if prefix == "" {
		prefix = DefaultMacroPrefix
	}
	opts := c.Base
	opts.Defines = compiler.DefinesFromMacros(v.Macros(prefix))
	opts.Include = c.Include
	return opts
}

// Units lists the units of the project of v for the configured backend.
func (c *Compiler) Units(v manifest.Variant) ([]discovery.Unit, error) {
	dir := filepath.Join(c.SourceRoot, v.Project.Name)
	units, err := discovery.Discover(dir, c.Backend.Extension())
	if err != nil {
		return nil, errors.FileSystemError("failed to list project sources").
			WithCause(err).
			WithContext("project", v.Project.Name).
			WithContext("path", dir).
			Build()
	}
	return units, nil
}

// Compile compiles every classified unit of v with one session and writes
// each binary as soon as it is produced. The first failure stops the variant.
// workspace is the staging directory for exec backends; it may be empty for
// in-process backends.
func (c *Compiler) Compile(ctx context.Context, v manifest.Variant, workspace string) (*Result, error) {
	start := time.Now()
	ctx = observability.WithVariant(ctx, v.Project.Name, v.Key())
	rec := c.recorder()

	opts := c.Options(v)
	opts.Workspace = workspace
	observability.InfoContext(ctx, "Compiling variant", logfields.Macros(opts.MacroNames()), logfields.Backend(c.Backend.String()))

	newSession := c.NewSession
	if newSession == nil {
		newSession = compiler.NewSession
	}
	session, err := newSession(c.Backend, opts)
	if err != nil {
		return nil, withVariant(err, v)
	}

	units, err := c.Units(v)
	if err != nil {
		return nil, err
	}
	if err := c.checkOutputs(v, units); err != nil {
		return nil, withVariant(err, v)
	}

	res := &Result{Variant: v}
	for _, u := range units {
		if !u.Classified() {
			observability.DebugContext(ctx, "Skipping file without stage suffix", logfields.File(u.Path))
			rec.IncUnitResult(u.Stage.String(), metrics.ResultSkipped)
			res.Skipped = append(res.Skipped, u.Path)
			continue
		}

		info, err := c.compileUnit(ctx, session, v, u)
		if err != nil {
			label := metrics.ResultFailed
			if errors.HasCategory(err, errors.CategoryCanceled) {
				label = metrics.ResultCanceled
			}
			rec.IncUnitResult(u.Stage.String(), label)
			return nil, withVariant(err, v)
		}
		rec.IncUnitResult(u.Stage.String(), metrics.ResultSuccess)
		rec.ObserveUnitDuration(u.Stage.String(), info.Duration)
		rec.AddArtifactBytes(v.Project.Name, info.Bytes)
		res.Artifacts = append(res.Artifacts, info)
	}

	res.Duration = time.Since(start)
	rec.ObserveVariantDuration(v.Project.Name, res.Duration)
	observability.InfoContext(ctx, "Variant compiled",
		logfields.Count(len(res.Artifacts)),
		logfields.Skipped(len(res.Skipped)),
		logfields.Since(start))
	return res, nil
}

func (c *Compiler) compileUnit(ctx context.Context, session compiler.Session, v manifest.Variant, u discovery.Unit) (ArtifactInfo, error) {
	start := time.Now()
	ctx = observability.WithStage(ctx, u.Stage.String())

	source, err := os.ReadFile(u.Path)
	if err != nil {
		return ArtifactInfo{}, errors.FileSystemError("failed to read shader source").
			WithCause(err).
			WithContext("file", u.Path).
			Build()
	}

	binary, err := session.Compile(ctx, u, string(source))
	if err != nil {
		return ArtifactInfo{}, err
	}

	out := c.Layout.Path(v.Project.Name, v.Combination, u)
	if err := c.writer().Write(ctx, out, binary); err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return ArtifactInfo{}, ce.WithContext("file", u.Path)
		}
		return ArtifactInfo{}, err
	}

	sum := sha256.Sum256(binary)
	info := ArtifactInfo{
		Project:     v.Project.Name,
		Combination: v.Key(),
		Source:      u.Path,
		Stage:       u.Stage.String(),
		Output:      out,
		Bytes:       len(binary),
		SHA256:      hex.EncodeToString(sum[:]),
		Duration:    time.Since(start),
	}
	observability.DebugContext(ctx, "Compiled unit", logfields.File(u.Path), logfields.Output(out), logfields.Bytes(len(binary)), logfields.Since(start))
	return info, nil
}

// checkOutputs rejects units that would be written to the same output file,
// such as x.vert.glsl and x.frag.glsl when stage suffixes are dropped.
func (c *Compiler) checkOutputs(v manifest.Variant, units []discovery.Unit) error {
	owners := make(map[string]string, len(units))
	for _, u := range units {
		if !u.Classified() {
			continue
		}
		out := c.Layout.Path(v.Project.Name, v.Combination, u)
		if prev, taken := owners[out]; taken {
			return errors.ValidationError("two shaders map to the same output file; set output.keep_stage_suffix to keep the stage in file names").
				WithContext("file", u.Path).
				WithContext("conflicts_with", prev).
				WithContext("path", out).
				Fatal().
				Build()
		}
		owners[out] = u.Path
	}
	return nil
}

func (c *Compiler) recorder() metrics.Recorder {
	if c.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return c.Recorder
}

func (c *Compiler) writer() *output.Writer {
	if c.Writer == nil {
		return &output.Writer{}
	}
	return c.Writer
}

// withVariant attaches project and combination to a classified error.
func withVariant(err error, v manifest.Variant) error {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return errors.BuildError("variant failed").
			WithCause(err).
			WithContext("project", v.Project.Name).
			WithContext("combination", v.Key()).
			Build()
	}
	return ce.WithContextMap(errors.ErrorContext{
		"project":     v.Project.Name,
		"combination": v.Key(),
	})
}
