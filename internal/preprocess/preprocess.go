// Package preprocess expands #include directives in shader sources and keeps a
// line map from the expanded text back to the files it was assembled from.
//
// Conditional directives are tracked so that includes inside inactive branches
// are never resolved. In Retain mode every other line is passed through for the
// compiler's own preprocessor; in Strip mode directives are consumed and
// inactive lines are blanked, for languages without a preprocessor.
package preprocess

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/spvbuild/internal/include"
)

// Mode selects what happens to directives other than #include.
type Mode int

const (
	// Retain keeps conditionals and macro definitions in the output.
	Retain Mode = iota
	// Strip evaluates and removes all directives and blanks inactive lines.
	Strip
)

// DefaultMaxDepth bounds include nesting.
const DefaultMaxDepth = 32

// includeExtension is the GLSL extension that enables #include in glslang. The
// directives are spliced before compilation, so the line is dropped.
const includeExtension = "GL_GOOGLE_include_directive"

// Origin locates one output line in its source file. Line is 1-based.
type Origin struct {
	File string
	Line int
}

// Source is an expanded shader source.
type Source struct {
	Text  string
	Lines []Origin
	// Includes lists resolved include paths in order of first inclusion.
	Includes []string
}

// Origin returns the origin of the 1-based output line.
func (s *Source) Origin(line int) (Origin, bool) {
	if line < 1 || line > len(s.Lines) {
		return Origin{}, false
	}
	return s.Lines[line-1], true
}

// Options configures Process.
type Options struct {
	Mode    Mode
	Defines map[string]string
	Include include.Func
	// MaxDepth defaults to DefaultMaxDepth when zero.
	MaxDepth int
}

// Error is a directive failure at a specific source location.
type Error struct {
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrDepthExceeded is wrapped by the Error returned for runaway include nesting.
var ErrDepthExceeded = errors.New("include depth exceeded")

type frame struct {
	parentActive bool
	active       bool
	taken        bool
	seenElse     bool
}

type state struct {
	opts     Options
	macros   map[string]string
	conds    []frame
	once     map[string]bool
	seen     map[string]bool
	out      strings.Builder
	lines    []Origin
	includes []string
}

// Process expands content, read from path, according to opts.
func Process(path, content string, opts Options) (*Source, error) {
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	st := &state{
		opts:   opts,
		macros: make(map[string]string, len(opts.Defines)),
		once:   map[string]bool{},
		seen:   map[string]bool{},
	}
	for k, v := range opts.Defines {
		st.macros[k] = v
	}

	if err := st.file(path, content, 0); err != nil {
		return nil, err
	}
	return &Source{Text: st.out.String(), Lines: st.lines, Includes: st.includes}, nil
}

func (st *state) active() bool {
	if len(st.conds) == 0 {
		return true
	}
	return st.conds[len(st.conds)-1].active
}

func (st *state) emit(text, file string, line int) {
	st.out.WriteString(text)
	st.out.WriteByte('\n')
	st.lines = append(st.lines, Origin{File: file, Line: line})
}

func (st *state) file(path, content string, depth int) error {
	base := len(st.conds)
	lines := strings.Split(strings.TrimSuffix(strings.ReplaceAll(content, "\r\n", "\n"), "\n"), "\n")
	inComment := false
	for i := 0; i < len(lines); i++ {
		raw, n := lines[i], i+1
		startsInComment := inComment
		inComment = blockComment(raw, inComment)

		var name, rest string
		isDirective := false
		if !startsInComment {
			name, rest, isDirective = parseDirective(raw)
		}
		if !isDirective {
			if st.active() || st.opts.Mode == Retain {
				st.emit(raw, path, n)
			} else {
				st.emit("", path, n)
			}
			continue
		}

		physical := []string{raw}
		for strings.HasSuffix(physical[len(physical)-1], "\\") && i+1 < len(lines) {
			i++
			physical = append(physical, lines[i])
			inComment = blockComment(lines[i], inComment)
		}
		if len(physical) > 1 {
			name, rest, _ = parseDirective(joinContinued(physical))
		}

		keep, err := st.directive(path, n, name, rest, depth, base)
		if err != nil {
			return err
		}
		for k, text := range physical {
			switch {
			case keep == emitNothing:
			case keep == emitBlank || st.opts.Mode == Strip:
				st.emit("", path, n+k)
			default:
				st.emit(text, path, n+k)
			}
		}
	}
	if len(st.conds) > base {
		return &Error{File: path, Line: len(lines), Err: errors.New("unterminated conditional")}
	}
	return nil
}

type emitKind int

const (
	emitLine emitKind = iota
	emitBlank
	emitNothing
)

func (st *state) directive(path string, line int, name, rest string, depth, base int) (emitKind, error) {
	fail := func(format string, args ...any) (emitKind, error) {
		return emitLine, &Error{File: path, Line: line, Err: fmt.Errorf(format, args...)}
	}

	switch name {
	case "ifdef", "ifndef":
		_, defined := st.macros[firstWord(rest)]
		st.push(defined == (name == "ifdef"), false)
	case "if":
		ok, err := evaluate(rest, st.macros)
		st.push(ok || err != nil, err != nil)
	case "elif":
		if len(st.conds) <= base {
			return fail("#elif without #if")
		}
		f := &st.conds[len(st.conds)-1]
		if f.seenElse {
			return fail("#elif after #else")
		}
		ok, err := evaluate(rest, st.macros)
		st.branch(f, ok || err != nil, err != nil)
	case "else":
		if len(st.conds) <= base {
			return fail("#else without #if")
		}
		f := &st.conds[len(st.conds)-1]
		if f.seenElse {
			return fail("duplicate #else")
		}
		f.seenElse = true
		st.branch(f, true, false)
	case "endif":
		if len(st.conds) <= base {
			return fail("#endif without #if")
		}
		st.conds = st.conds[:len(st.conds)-1]
	case "define":
		if st.active() {
			name, value := splitDefine(rest)
			if name == "" {
				return fail("malformed #define")
			}
			st.macros[name] = value
		}
	case "undef":
		if st.active() {
			delete(st.macros, firstWord(rest))
		}
	case "pragma":
		if firstWord(rest) == "once" {
			if st.active() {
				st.once[path] = true
			}
			return emitBlank, nil
		}
	case "extension":
		if strings.HasPrefix(strings.TrimSpace(rest), includeExtension) {
			return emitBlank, nil
		}
	case "include":
		if !st.active() {
			return emitBlank, nil
		}
		return emitNothing, st.include(path, line, rest, depth)
	}
	return emitLine, nil
}

// push opens a conditional group. An expression that cannot be evaluated
// counts as true. In Retain mode it does not settle the group, so later
// branches stay reachable for the compiler's own preprocessor.
func (st *state) push(cond, uncertain bool) {
	parent := st.active()
	st.conds = append(st.conds, frame{
		parentActive: parent,
		active:       parent && cond,
		taken:        st.settles(cond, uncertain),
	})
}

func (st *state) branch(f *frame, cond, uncertain bool) {
	f.active = f.parentActive && !f.taken && cond
	if st.settles(cond, uncertain) {
		f.taken = true
	}
}

func (st *state) settles(cond, uncertain bool) bool {
	return cond && (!uncertain || st.opts.Mode == Strip)
}

func (st *state) include(path string, line int, rest string, depth int) error {
	target, ok := parseIncludeTarget(rest)
	if !ok {
		return &Error{File: path, Line: line, Err: fmt.Errorf("malformed #include directive: %q", strings.TrimSpace(rest))}
	}
	if depth+1 > st.opts.MaxDepth {
		return &Error{File: path, Line: line, Err: fmt.Errorf("%w (limit %d) including %q", ErrDepthExceeded, st.opts.MaxDepth, target)}
	}
	if st.opts.Include == nil {
		return &Error{File: path, Line: line, Err: fmt.Errorf("no include resolver configured for %q", target)}
	}

	res, err := st.opts.Include(target, path)
	if err != nil {
		return &Error{File: path, Line: line, Err: err}
	}
	resolved := filepath.Clean(res.Path)
	if st.once[resolved] {
		return nil
	}
	if !st.seen[resolved] {
		st.seen[resolved] = true
		st.includes = append(st.includes, resolved)
	}
	return st.file(resolved, res.Content, depth+1)
}

// parseDirective splits a preprocessor line into directive name and remainder.
func parseDirective(line string) (string, string, bool) {
	s := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(s, "#") {
		return "", "", false
	}
	s = strings.TrimLeft(s[1:], " \t")
	end := 0
	for end < len(s) && isIdentChar(rune(s[end])) {
		end++
	}
	return s[:end], stripComment(s[end:]), true
}

func parseIncludeTarget(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", false
	}
	var closing byte
	switch rest[0] {
	case '"':
		closing = '"'
	case '<':
		closing = '>'
	default:
		return "", false
	}
	end := strings.IndexByte(rest[1:], closing)
	if end <= 0 {
		return "", false
	}
	return rest[1 : end+1], true
}

func splitDefine(rest string) (string, string) {
	rest = strings.TrimSpace(rest)
	end := 0
	for end < len(rest) && isIdentChar(rune(rest[end])) {
		end++
	}
	name := rest[:end]
	if end < len(rest) && rest[end] == '(' {
		// Function-like macros only count as defined.
		return name, ""
	}
	return name, strings.TrimSpace(rest[end:])
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// blockComment reports whether a /* comment is still open at the end of line,
// given whether one was open at its start.
func blockComment(line string, open bool) bool {
	for i := 0; i < len(line); i++ {
		switch {
		case open:
			if strings.HasPrefix(line[i:], "*/") {
				open = false
				i++
			}
		case strings.HasPrefix(line[i:], "//"):
			return false
		case strings.HasPrefix(line[i:], "/*"):
			open = true
			i++
		}
	}
	return open
}

// joinContinued splices directive lines ending in a backslash.
func joinContinued(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i < len(lines)-1 {
			l = strings.TrimSuffix(l, "\\")
		}
		b.WriteString(l)
		b.WriteByte(' ')
	}
	return b.String()
}

func stripComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "/*"); i >= 0 {
		s = s[:i]
	}
	return s
}
