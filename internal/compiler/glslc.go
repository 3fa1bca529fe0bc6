package compiler

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/preprocess"
	"git.home.luguber.info/inful/spvbuild/internal/stage"
	"git.home.luguber.info/inful/spvbuild/internal/workspace"
)

type glslcSession struct {
	opts Options
	bin  string
}

func newGlslcSession(opts Options) (Session, error) {
	bin, err := exec.LookPath(opts.GlslcPath)
	if err != nil {
		return nil, initError(BackendGLSLC, fmt.Errorf("glslc executable not found: %w", err))
	}
	if opts.Workspace == "" {
		return nil, initError(BackendGLSLC, stderrors.New("no staging workspace configured"))
	}
	return &glslcSession{opts: opts, bin: bin}, nil
}

func (s *glslcSession) Backend() Backend { return BackendGLSLC }
func (s *glslcSession) Options() Options { return s.opts }

// GlslcArgs builds the glslc command line compiling src into out.
func GlslcArgs(opts Options, kind stage.Kind, out, src string) []string {
	args := []string{
		"-fshader-stage=" + kind.GlslcStage(),
		"--target-env=" + opts.TargetEnv,
		"--target-spv=spv" + opts.SPIRVVersion,
		"-fentry-point=" + opts.EntryPoint,
	}
	if opts.Optimize() {
		args = append(args, "-O")
	} else {
		args = append(args, "-O0")
	}
	if opts.DebugInfo() {
		args = append(args, "-g")
	}
	for _, d := range opts.Defines {
		args = append(args, "-D"+d.Name+"="+d.Value)
	}
	return append(args, "-o", out, src)
}

// Compile stages the expanded source at the unit's project-relative path and
// runs glslc from the workspace, so paths embedded as debug info do not
// depend on where the workspace lives.
func (s *glslcSession) Compile(ctx context.Context, unit discovery.Unit, source string) ([]byte, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	src, err := expand(unit, source, preprocess.Retain, s.opts)
	if err != nil {
		return nil, err
	}

	rel := filepath.ToSlash(unit.RelPath())
	if _, err := workspace.Stage(s.opts.Workspace, rel, []byte(src.Text)); err != nil {
		return nil, err
	}
	outRel := rel + ".spv"
	outPath := filepath.Join(s.opts.Workspace, filepath.FromSlash(outRel))
	defer func() { _ = os.Remove(outPath) }()

	// #nosec G204 -- binary resolved via LookPath from configuration, arguments built by GlslcArgs
	cmd := exec.CommandContext(ctx, s.bin, GlslcArgs(s.opts, unit.Stage, outRel, rel)...)
	cmd.Dir = s.opts.Workspace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if c := canceled(ctx); c != nil {
			return nil, c
		}
		diag := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
		return nil, compileError(unit, remapDiagnostics(diag, rel, src), err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, compileError(unit, "", fmt.Errorf("read glslc output: %w", err))
	}
	return data, nil
}

var glslcDiagnostic = regexp.MustCompile(`^(.+?):(\d+): (.*)$`)

// remapDiagnostics rewrites "file:line:" prefixes that refer to the staged
// source into the original file and line recorded by the preprocessor.
func remapDiagnostics(diag, staged string, src *preprocess.Source) string {
	if diag == "" || src == nil {
		return diag
	}
	lines := strings.Split(diag, "\n")
	for i, line := range lines {
		m := glslcDiagnostic.FindStringSubmatch(line)
		if m == nil || filepath.ToSlash(m[1]) != staged {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if origin, ok := src.Origin(n); ok {
			lines[i] = fmt.Sprintf("%s:%d: %s", origin.File, origin.Line, m[3])
		}
	}
	return strings.Join(lines, "\n")
}
