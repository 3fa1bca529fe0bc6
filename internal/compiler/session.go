// Package compiler turns shader sources into SPIR-V. A Session binds one set
// of Options (profile, target, macros, include strategy) to a backend and is
// reused for every unit of a variant.
package compiler

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/include"
	"git.home.luguber.info/inful/spvbuild/internal/preprocess"
)

// Session compiles units with a fixed set of options.
type Session interface {
	// Compile compiles source, the content of unit.Path, to a SPIR-V binary.
	Compile(ctx context.Context, unit discovery.Unit, source string) ([]byte, error)
	Backend() Backend
	Options() Options
}

// NewSession validates opts and returns a session for backend. Failures are
// CompilerInitError.
func NewSession(backend Backend, opts Options) (Session, error) {
	opts = opts.WithDefaults()
	if _, _, err := spirvVersion(opts.SPIRVVersion); err != nil {
		return nil, initError(backend, err)
	}

	switch backend {
	case BackendGLSLC:
		if err := validateTargetEnv(opts.TargetEnv); err != nil {
			return nil, initError(backend, err)
		}
		return newGlslcSession(opts)
	case BackendNaga:
		return newNagaSession(opts)
	default:
		return nil, initError(backend, fmt.Errorf("unknown backend %q", backend))
	}
}

func initError(backend Backend, cause error) error {
	return errors.CompilerInitError("failed to initialize shader compiler").
		WithCause(cause).
		WithContext("backend", string(backend)).
		Build()
}

// preprocessError classifies a failure of the include preprocessor.
func preprocessError(unit discovery.Unit, err error) error {
	var nf *include.NotFoundError
	if stderrors.As(err, &nf) {
		return errors.IncludeError("include not found").
			WithCause(err).
			WithContext("file", unit.Path).
			WithContext("include", nf.Target).
			WithContext("path", nf.LastAttempt).
			Build()
	}
	return errors.IncludeError("failed to expand includes").
		WithCause(err).
		WithContext("file", unit.Path).
		Build()
}

// compileError classifies a source rejected by a backend. Diagnostics are
// kept verbatim in the error context for the CLI to print.
func compileError(unit discovery.Unit, diagnostics string, cause error) error {
	diagnostics = strings.TrimRight(diagnostics, "\n")
	b := errors.CompileError("shader compilation failed").
		WithContext("file", unit.Path).
		WithContext("stage", unit.Stage.String())
	if diagnostics != "" {
		b = b.WithContext("diagnostics", diagnostics)
	}
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}

// canceled reports a compilation stopped by its context.
func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Canceled(err).Build()
	}
	return nil
}

func expand(unit discovery.Unit, source string, mode preprocess.Mode, opts Options) (*preprocess.Source, error) {
	src, err := preprocess.Process(unit.Path, source, preprocess.Options{
		Mode:    mode,
		Defines: opts.DefineMap(),
		Include: opts.Include,
	})
	if err != nil {
		return nil, preprocessError(unit, err)
	}
	return src, nil
}
