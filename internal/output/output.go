// Package output places compiled SPIR-V binaries in the output tree:
// <root>/<profile>/<project>/<combination key>/<relative dir>/<stem>.spv.
package output

import (
	"context"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/logfields"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
	"git.home.luguber.info/inful/spvbuild/internal/observability"
)

// Extension of compiled binaries.
const Extension = ".spv"

// Layout computes output paths.
type Layout struct {
	Root    string
	Profile string
	// KeepStageSuffix names outputs after the full base name ("x.comp.spv")
	// instead of the stem ("x.spv").
	KeepStageSuffix bool
}

// ProfileDir is the directory holding every project of the profile.
func (l Layout) ProfileDir() string {
	return filepath.Join(l.Root, l.Profile)
}

// VariantDir is the directory of one (project, combination) variant. The empty
// combination maps to the project directory itself.
func (l Layout) VariantDir(project string, combo manifest.MacroCombination) string {
	return filepath.Join(l.Root, l.Profile, project, combo.Key())
}

// Path is the output file of unit within the variant.
func (l Layout) Path(project string, combo manifest.MacroCombination, unit discovery.Unit) string {
	name := unit.Stem
	if l.KeepStageSuffix {
		name = unit.BaseName
	}
	return filepath.Join(l.VariantDir(project, combo), unit.RelDir, name+Extension)
}

// Writer writes binaries, creating parent directories as needed. Existing
// files are overwritten.
type Writer struct {
	// DryRun logs the target path instead of writing.
	DryRun bool
}

// Write stores data at path.
func (w *Writer) Write(ctx context.Context, path string, data []byte) error {
	if w.DryRun {
		observability.InfoContext(ctx, "Dry run: skipping write", logfields.Output(path), logfields.Bytes(len(data)))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.FileSystemError("failed to create output directory").
			WithCause(err).
			WithContext("path", filepath.Dir(path)).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // compiled shaders are loaded by the renderer, non-sensitive
		return errors.FileSystemError("failed to write compiled shader").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	observability.DebugContext(ctx, "Wrote compiled shader", logfields.Output(path), logfields.Bytes(len(data)))
	return nil
}
