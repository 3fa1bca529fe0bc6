package preprocess

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spvbuild/internal/include"
)

// fakeIncludes resolves targets from an in-memory file table rooted at /src.
func fakeIncludes(files map[string]string) include.Func {
	return func(target, includer string) (include.Resolved, error) {
		content, ok := files[target]
		if !ok {
			return include.Resolved{}, &include.NotFoundError{Target: target, Includer: includer, LastAttempt: "/src/" + target}
		}
		return include.Resolved{Name: target, Path: "/src/" + target, Content: content}, nil
	}
}

func TestProcess_SplicesIncludeAndMapsLines(t *testing.T) {
	src, err := Process("/src/p/main.comp.glsl", "a\n#include \"b.glsl\"\nc\n", Options{
		Include: fakeIncludes(map[string]string{"b.glsl": "b1\nb2\n"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "a\nb1\nb2\nc\n", src.Text)
	assert.Equal(t, []Origin{
		{File: "/src/p/main.comp.glsl", Line: 1},
		{File: "/src/b.glsl", Line: 1},
		{File: "/src/b.glsl", Line: 2},
		{File: "/src/p/main.comp.glsl", Line: 3},
	}, src.Lines)
	assert.Equal(t, []string{"/src/b.glsl"}, src.Includes)

	origin, ok := src.Origin(3)
	require.True(t, ok)
	assert.Equal(t, Origin{File: "/src/b.glsl", Line: 2}, origin)
	_, ok = src.Origin(99)
	assert.False(t, ok)
}

func TestProcess_InactiveBranchIncludesAreNotResolved(t *testing.T) {
	content := "#ifdef USE_MEDIUM\n#include \"medium.glsl\"\n#endif\nvoid main() {}\n"
	includes := fakeIncludes(map[string]string{})

	src, err := Process("/src/p/x.comp.glsl", content, Options{Include: includes})
	require.NoError(t, err)
	assert.Empty(t, src.Includes)
	assert.Equal(t, "#ifdef USE_MEDIUM\n\n#endif\nvoid main() {}\n", src.Text)

	_, err = Process("/src/p/x.comp.glsl", content, Options{
		Include: includes,
		Defines: map[string]string{"USE_MEDIUM": "1"},
	})
	require.Error(t, err)

	var nf *include.NotFoundError
	require.True(t, stderrors.As(err, &nf))
	assert.Equal(t, "medium.glsl", nf.Target)

	var perr *Error
	require.True(t, stderrors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
}

func TestProcess_IncludeInsideBlockCommentIsIgnored(t *testing.T) {
	content := "#version 460\n/*\n#include \"old_header.glsl\"\n*/ void f() {}\n#include \"b.glsl\" /* trailing\n#include \"gone.glsl\" */\nvoid main() {}\n"

	src, err := Process("/src/p/x.comp.glsl", content, Options{
		Include: fakeIncludes(map[string]string{"b.glsl": "b1\n"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/b.glsl"}, src.Includes)
	assert.Equal(t, "#version 460\n/*\n#include \"old_header.glsl\"\n*/ void f() {}\nb1\n#include \"gone.glsl\" */\nvoid main() {}\n", src.Text)

	// A line comment does not open a block.
	_, err = Process("/src/p/x.comp.glsl", "// see /*\n#include \"b.glsl\"\n", Options{
		Include: fakeIncludes(map[string]string{"b.glsl": "b1\n"}),
	})
	require.NoError(t, err)
}

func TestProcess_ContinuedDirective(t *testing.T) {
	content := "#if defined(USE_A) && \\\n    defined(USE_B)\n#include \"ab.glsl\"\n#endif\nvoid main() {}\n"
	includes := fakeIncludes(map[string]string{"ab.glsl": "ab\n"})

	src, err := Process("/src/p/x.comp.glsl", content, Options{Include: includes})
	require.NoError(t, err)
	assert.Empty(t, src.Includes)
	assert.Equal(t, "#if defined(USE_A) && \\\n    defined(USE_B)\n\n#endif\nvoid main() {}\n", src.Text)
	assert.Len(t, src.Lines, 5)

	src, err = Process("/src/p/x.comp.glsl", content, Options{
		Include: includes,
		Defines: map[string]string{"USE_A": "1", "USE_B": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/ab.glsl"}, src.Includes)

	t.Run("strip mode blanks every continued line", func(t *testing.T) {
		src, err := Process("/src/p/x.comp.wgsl", content, Options{Mode: Strip, Include: includes})
		require.NoError(t, err)
		assert.Equal(t, "\n\n\n\nvoid main() {}\n", src.Text)
	})
}

func TestProcess_PragmaOnce(t *testing.T) {
	src, err := Process("/src/p/x.frag.glsl", "#include \"b.glsl\"\n#include \"b.glsl\"\n", Options{
		Include: fakeIncludes(map[string]string{"b.glsl": "#pragma once\nfloat b;\n"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "\nfloat b;\n", src.Text)
}

func TestProcess_RecursionIsBounded(t *testing.T) {
	_, err := Process("/src/p/x.comp.glsl", "#include \"loop.glsl\"\n", Options{
		Include:  fakeIncludes(map[string]string{"loop.glsl": "#include \"loop.glsl\"\n"}),
		MaxDepth: 4,
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrDepthExceeded))
}

func TestProcess_DropsIncludeExtension(t *testing.T) {
	src, err := Process("/src/p/x.comp.glsl", "#version 460\n#extension GL_GOOGLE_include_directive : require\nvoid main() {}\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, "#version 460\n\nvoid main() {}\n", src.Text)
	assert.Len(t, src.Lines, 3)
}

func TestProcess_StripMode(t *testing.T) {
	content := "#define LEVEL 2\n#if LEVEL > 1\nyes\n#else\nno\n#endif\n"

	src, err := Process("/src/p/x.wgsl", content, Options{Mode: Strip})
	require.NoError(t, err)
	assert.Equal(t, "\n\nyes\n\n\n\n", src.Text)
	assert.Len(t, src.Lines, 6)
}

func TestProcess_UnevaluableCondition(t *testing.T) {
	content := "#if WEIRD(1)\n#include \"x.glsl\"\n#else\n#include \"y.glsl\"\n#endif\n"
	includes := fakeIncludes(map[string]string{"x.glsl": "x\n", "y.glsl": "y\n"})

	t.Run("retain resolves every branch", func(t *testing.T) {
		src, err := Process("/src/p/a.comp.glsl", content, Options{Include: includes})
		require.NoError(t, err)
		assert.Equal(t, []string{"/src/x.glsl", "/src/y.glsl"}, src.Includes)
	})

	t.Run("strip takes the first branch", func(t *testing.T) {
		src, err := Process("/src/p/a.wgsl", content, Options{Mode: Strip, Include: includes})
		require.NoError(t, err)
		assert.Equal(t, []string{"/src/x.glsl"}, src.Includes)
	})
}

func TestProcess_ElifChain(t *testing.T) {
	content := "#if defined(A)\na\n#elif defined(B)\nb\n#elif defined(C)\nc\n#else\nnone\n#endif\n"
	tests := map[string]struct {
		defines map[string]string
		want    string
	}{
		"first":    {map[string]string{"A": "1", "B": "1"}, "a"},
		"second":   {map[string]string{"B": "1"}, "b"},
		"third":    {map[string]string{"C": "1"}, "c"},
		"fallback": {nil, "none"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			src, err := Process("/src/p/a.wgsl", content, Options{Mode: Strip, Defines: tt.defines})
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.ReplaceAll(src.Text, "\n", ""))
		})
	}
}

func TestProcess_DirectiveErrors(t *testing.T) {
	cases := map[string]string{
		"malformed include": "#include common.glsl\n",
		"unterminated":      "#ifdef A\n",
		"stray endif":       "#endif\n",
		"stray else":        "#else\n",
		"elif after else":   "#if 1\n#else\n#elif 1\n#endif\n",
		"missing resolver":  "#include \"a.glsl\"\n",
		"malformed define":  "#define\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Process("/src/p/a.comp.glsl", content, Options{})
			require.Error(t, err)
		})
	}
}

func TestEvaluate(t *testing.T) {
	macros := map[string]string{"A": "1", "TWO": "2", "ALIAS": "TWO", "EMPTY": ""}
	tests := []struct {
		expr    string
		want    bool
		unknown bool
	}{
		{expr: "defined(A) && !defined(B)", want: true},
		{expr: "defined A", want: true},
		{expr: "A == 1", want: true},
		{expr: "TWO >= 2 || B", want: true},
		{expr: "TWO < 2", want: false},
		{expr: "UNDEFINED", want: false},
		{expr: "(A) && (TWO != 1)", want: true},
		{expr: "0x10 == 16", want: true},
		{expr: "ALIAS == 2", want: true},
		{expr: "-1 < 0", want: true},
		{expr: "1 + 1", unknown: true},
		{expr: "EMPTY", unknown: true},
		{expr: "(1", unknown: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evaluate(tt.expr, macros)
			if tt.unknown {
				assert.ErrorIs(t, err, errUnknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
