package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spvbuild/internal/stage"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("// "+r+"\n"), 0o600))
	}
}

func TestDiscover_OneLevelDeep(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"x.comp.glsl",
		"a.frag.glsl",
		"common.glsl",
		"sub/y.vert.glsl",
		"sub/deeper/z.comp.glsl",
		"notes.txt",
		".hidden/w.comp.glsl",
		"other.wgsl",
	)

	units, err := Discover(root, ExtGLSL)
	require.NoError(t, err)

	var got []string
	for _, u := range units {
		got = append(got, filepath.ToSlash(u.RelPath()))
	}
	assert.Equal(t, []string{"a.frag.glsl", "common.glsl", "sub/y.vert.glsl", "x.comp.glsl"}, got)

	byRel := map[string]Unit{}
	for _, u := range units {
		byRel[filepath.ToSlash(u.RelPath())] = u
	}

	x := byRel["x.comp.glsl"]
	assert.Equal(t, "x", x.Stem)
	assert.Equal(t, "x.comp", x.BaseName)
	assert.Equal(t, stage.Compute, x.Stage)
	assert.Equal(t, "", x.RelDir)
	assert.Equal(t, filepath.Join(root, "x.comp.glsl"), x.Path)

	y := byRel["sub/y.vert.glsl"]
	assert.Equal(t, "sub", y.RelDir)
	assert.Equal(t, stage.Vertex, y.Stage)

	common := byRel["common.glsl"]
	assert.False(t, common.Classified())
	assert.Equal(t, "common", common.Stem)
}

func TestDiscover_ExtensionSelectsBackendSources(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "x.comp.glsl", "y.frag.wgsl")

	units, err := Discover(root, ExtWGSL)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "y", units[0].Stem)
	assert.Equal(t, stage.Fragment, units[0].Stage)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "absent"), ExtGLSL)
	assert.Error(t, err)
}

func TestDiscover_IsStable(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "b.comp.glsl", "a.comp.glsl", "c/a.frag.glsl")

	first, err := Discover(root, ExtGLSL)
	require.NoError(t, err)
	second, err := Discover(root, ExtGLSL)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
