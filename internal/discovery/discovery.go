// Package discovery lists the compilation units of a shader project.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/spvbuild/internal/stage"
)

// Source file extensions per compiler backend.
const (
	ExtGLSL = ".glsl"
	ExtWGSL = ".wgsl"
)

// Unit is one shader source file.
type Unit struct {
	// Path is the absolute path of the source file.
	Path string
	// Stem is the file name without extension and stage segment ("x" for x.comp.glsl).
	Stem string
	// BaseName is the file name without extension only ("x.comp" for x.comp.glsl).
	BaseName string
	Stage    stage.Kind
	// RelDir is "" for files directly in the project directory, otherwise the
	// name of the immediate subdirectory holding the file.
	RelDir string
}

// RelPath is the unit's path relative to its project directory.
func (u Unit) RelPath() string {
	return filepath.Join(u.RelDir, u.BaseName) + filepath.Ext(u.Path)
}

// Classified reports whether the unit maps to a pipeline stage.
func (u Unit) Classified() bool { return u.Stage != stage.Unclassified }

// Discover lists files with extension ext directly in projectDir and in its
// immediate subdirectories. Deeper levels are not scanned and entries whose
// name starts with a dot are ignored. Units are returned sorted by relative
// path so that builds visit them in a stable order.
func Discover(projectDir, ext string) ([]Unit, error) {
	root, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory %s: %w", projectDir, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read project directory: %w", err)
	}

	var units []Unit
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() {
			if u, ok := newUnit(root, "", entry, ext); ok {
				units = append(units, u)
			}
			continue
		}

		sub, err := os.ReadDir(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read project subdirectory %s: %w", entry.Name(), err)
		}
		for _, child := range sub {
			if child.IsDir() || strings.HasPrefix(child.Name(), ".") {
				continue
			}
			if u, ok := newUnit(root, entry.Name(), child, ext); ok {
				units = append(units, u)
			}
		}
	}

	sort.Slice(units, func(i, j int) bool {
		return filepath.ToSlash(units[i].RelPath()) < filepath.ToSlash(units[j].RelPath())
	})
	return units, nil
}

func newUnit(root, relDir string, entry os.DirEntry, ext string) (Unit, bool) {
	name := entry.Name()
	if !strings.HasSuffix(name, ext) || len(name) == len(ext) {
		return Unit{}, false
	}
	if !entry.Type().IsRegular() && entry.Type()&os.ModeSymlink == 0 {
		return Unit{}, false
	}
	base := strings.TrimSuffix(name, ext)
	stem, kind := stage.Split(base)
	return Unit{
		Path:     filepath.Join(root, relDir, name),
		Stem:     stem,
		BaseName: base,
		Stage:    kind,
		RelDir:   relDir,
	}, true
}
