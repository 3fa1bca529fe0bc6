package errors

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "manifest missing", err: ManifestMissing("src/make_shaders.yaml").Build(), expected: 3},
		{name: "manifest parse", err: ManifestParseError("m.yaml", fmt.Errorf("bad yaml")).Build(), expected: 7},
		{name: "project directory missing", err: ProjectDirectoryMissing("demo", "src/demo").Build(), expected: 2},
		{name: "compiler init", err: CompilerInitError("glslc not found").Build(), expected: 9},
		{name: "include", err: IncludeError("include not found").Build(), expected: 11},
		{name: "compile", err: CompileError("shader rejected").Build(), expected: 11},
		{name: "filesystem", err: FileSystemError("write failed").Build(), expected: 11},
		{name: "canceled", err: Canceled(context.Canceled).Build(), expected: 130},
		{name: "wrapped classified", err: fmt.Errorf("outer: %w", CompileError("x").Build()), expected: 11},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, adapter.FormatError(nil))
	})

	t.Run("compile error names project, combination and file", func(t *testing.T) {
		err := CompileError("shader rejected by compiler").
			WithContext("project", "demo").
			WithContext("combination", "A#B").
			WithContext("file", "src/demo/x.comp.glsl").
			WithContext("diagnostics", "x.comp.glsl:3: error: 'foo' : undeclared identifier").
			Build()

		got := adapter.FormatError(err)
		assert.Contains(t, got, "compile: shader rejected by compiler")
		assert.Contains(t, got, "project: demo")
		assert.Contains(t, got, "combination: A#B")
		assert.Contains(t, got, "file: src/demo/x.comp.glsl")
		assert.Contains(t, got, "undeclared identifier")
	})

	t.Run("cause is shown without diagnostics", func(t *testing.T) {
		err := FileSystemError("failed to write artifact").WithCause(fmt.Errorf("disk full")).Build()
		assert.Contains(t, adapter.FormatError(err), "cause: disk full")
	})

	t.Run("verbose mode prints full error", func(t *testing.T) {
		verbose := NewCLIErrorAdapter(true, slog.Default())
		err := ConfigError("bad config").WithContext("path", "spvbuild.yaml").Build()
		assert.Equal(t, err.Error(), verbose.FormatError(err))
	})

	t.Run("unclassified error", func(t *testing.T) {
		assert.Equal(t, "Error: unknown error", adapter.FormatError(&customError{msg: "unknown error"}))
	})
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	var code int
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	adapter.out = &out
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(IncludeError("include not found").WithContext("file", "a.glsl").Build())

	require.Equal(t, 11, code)
	assert.Contains(t, out.String(), "include: include not found")
	assert.Contains(t, out.String(), "file: a.glsl")
}

func TestCLIErrorAdapter_LogsOnlyUnexpectedErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		logged string
	}{
		{"validation stays quiet", ValidationError("bad flag").Build(), ""},
		{"runtime is logged", RuntimeError("watch failed").Build(), "level=ERROR msg=\"watch failed\""},
		{"warning keeps its level", NewError(CategoryRuntime, "slow").WithSeverity(SeverityWarning).Build(), "level=WARN msg=slow"},
		{"unclassified counts as internal", &customError{msg: "boom"}, "Unclassified error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
			adapter.out = &bytes.Buffer{}
			adapter.exit = func(int) {}

			adapter.HandleError(tt.err)
			if tt.logged == "" {
				assert.Empty(t, logs.String())
				return
			}
			assert.Contains(t, logs.String(), tt.logged)
		})
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
