// Package include resolves the targets of #include directives against the
// shader source root.
package include

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolved is the outcome of a successful include lookup.
type Resolved struct {
	// Name is the target exactly as written in the directive.
	Name string
	// Path is the absolute path of the file that was read.
	Path string
	// Content is the file content.
	Content string
}

// Func resolves target as included from includer. Compiler sessions receive it
// through their options so the lookup strategy can be swapped in tests.
type Func func(target, includer string) (Resolved, error)

// NotFoundError reports an include target that exists neither next to the
// including file nor directly under the source root.
type NotFoundError struct {
	Target      string
	Includer    string
	LastAttempt string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("include %q from %s not found (last attempt: %s)", e.Target, e.Includer, e.LastAttempt)
}

// Resolver looks up include targets relative to the including file first and
// falls back to the root.
type Resolver struct {
	Root string
}

// NewResolver returns a resolver for the given source root. The root is made
// absolute so containment checks do not depend on how it was spelled.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve include root %s: %w", root, err)
	}
	return &Resolver{Root: filepath.Clean(abs)}, nil
}

// Func returns r.Resolve as a strategy value.
func (r *Resolver) Func() Func {
	return r.Resolve
}

// Resolve finds target for includer. The directory of includer is used as the
// first candidate when it lies under the root; a directory outside the root is
// taken as relative to the root. When the first candidate is missing, target
// is looked up directly under the root.
func (r *Resolver) Resolve(target, includer string) (Resolved, error) {
	first := r.candidate(target, includer)
	if content, err := os.ReadFile(first); err == nil {
		return Resolved{Name: target, Path: first, Content: string(content)}, nil
	} else if !os.IsNotExist(err) {
		return Resolved{}, fmt.Errorf("read include %s: %w", first, err)
	}

	fallback := filepath.Join(r.Root, target)
	content, err := os.ReadFile(fallback)
	if err != nil {
		if os.IsNotExist(err) {
			return Resolved{}, &NotFoundError{Target: target, Includer: includer, LastAttempt: fallback}
		}
		return Resolved{}, fmt.Errorf("read include %s: %w", fallback, err)
	}
	return Resolved{Name: target, Path: fallback, Content: string(content)}, nil
}

func (r *Resolver) candidate(target, includer string) string {
	dir := filepath.Dir(includer)
	if abs, err := filepath.Abs(dir); err == nil && r.contains(abs) {
		return filepath.Join(abs, target)
	}
	if filepath.IsAbs(dir) {
		// Absolute and outside the root: keep only the trailing components.
		dir = strings.TrimPrefix(dir, filepath.VolumeName(dir))
	}
	return filepath.Join(r.Root, dir, target)
}

func (r *Resolver) contains(dir string) bool {
	rel, err := filepath.Rel(r.Root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
