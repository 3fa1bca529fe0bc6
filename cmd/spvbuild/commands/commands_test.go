package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
	"git.home.luguber.info/inful/spvbuild/internal/notify"
)

const computeWGSL = `@compute @workgroup_size(64, 1, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func nagaConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, src, "make_shaders.yaml", "projects:\n  - name: demo\n    optional_macro_combinations:\n      - [A]\n      - [A, B]\n")
	writeFile(t, src, "demo/x.comp.wgsl", computeWGSL)
	writeFile(t, src, "demo/readme.wgsl", "// helper\n")

	cfg := config.Default()
	cfg.ShaderRoot = src
	cfg.OutputRoot = filepath.Join(root, "output")
	cfg.Compiler.Backend = compiler.BackendNaga
	cfg.Build.WorkspaceDir = filepath.Join(root, "tmp")
	return cfg
}

func TestBuildFlags_Apply(t *testing.T) {
	cfg := config.Default()
	flags := BuildFlags{Profile: "release", Output: "out", Jobs: 4, Backend: "naga"}
	require.NoError(t, flags.Apply(cfg))

	assert.Equal(t, "release", cfg.Profile)
	assert.Equal(t, "out", cfg.OutputRoot)
	assert.Equal(t, 4, cfg.Build.Jobs)
	assert.Equal(t, compiler.BackendNaga, cfg.Compiler.Backend)
}

func TestBuildFlags_ApplyKeepsUnsetValues(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, (&BuildFlags{}).Apply(cfg))
	assert.Equal(t, config.Default(), cfg)
}

func TestBuildFlags_ApplyRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		flags BuildFlags
	}{
		{"unknown backend", BuildFlags{Backend: "dxc"}},
		{"negative jobs", BuildFlags{Jobs: -1}},
		{"profile with separator", BuildFlags{Profile: "a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.Apply(config.Default())
			require.Error(t, err)
			assert.NotEqual(t, errors.CategoryInternal, errors.GetCategory(err))
		})
	}
}

func TestCLI_LoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := (&CLI{Config: config.DefaultFileName}).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultShaderRoot, cfg.ShaderRoot)

	_, err = (&CLI{Config: "custom.yaml"}).LoadConfig()
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNotFound, errors.GetCategory(err))
}

func TestRunBuild(t *testing.T) {
	cfg := nagaConfig(t)
	var out bytes.Buffer

	result, err := RunBuild(context.Background(), &out, build.NewBuildService(), cfg, build.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, build.BuildStatusSuccess, result.Status)
	assert.Equal(t, 2, result.Variants)

	assert.FileExists(t, filepath.Join(cfg.OutputRoot, "debug", "demo", "A", "x.spv"))
	assert.FileExists(t, filepath.Join(cfg.OutputRoot, "debug", "demo", "A#B", "x.spv"))
	assert.Contains(t, out.String(), "Build success: 2 variants, wrote 2 binaries")
	assert.Contains(t, out.String(), "Skipped 2 files without a stage suffix")
}

func TestRunBuild_DryRun(t *testing.T) {
	cfg := nagaConfig(t)
	var out bytes.Buffer

	_, err := RunBuild(context.Background(), &out, build.NewBuildService(), cfg, build.BuildOptions{DryRun: true})
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(cfg.OutputRoot, "debug"))
	assert.Contains(t, out.String(), "compiled (dry run)")
}

func TestRunBuild_UnknownProject(t *testing.T) {
	cfg := nagaConfig(t)
	_, err := RunBuild(context.Background(), &bytes.Buffer{}, build.NewBuildService(), cfg, build.BuildOptions{Projects: []string{"missing"}})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}

func TestRunDiscover(t *testing.T) {
	cfg := nagaConfig(t)
	var out bytes.Buffer

	require.NoError(t, RunDiscover(&out, cfg, nil))
	s := out.String()
	assert.Contains(t, s, "PROJECT")
	assert.Contains(t, s, "A#B")
	assert.Contains(t, s, "x.comp.wgsl")
	assert.Contains(t, s, "compute")
	assert.Contains(t, s, "(1 files without stage suffix)")
	assert.Contains(t, s, "2 variants")
	assert.NoDirExists(t, cfg.OutputRoot)
}

func TestRunInit(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.ShaderRoot = filepath.Join(root, "shaders")
	configPath := filepath.Join(root, config.DefaultFileName)
	var out bytes.Buffer

	require.NoError(t, RunInit(&out, cfg, configPath, false))
	assert.Contains(t, out.String(), "initialized successfully")

	m, err := manifest.Load(cfg.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, manifest.Example().Projects[0].Name, m.Projects[0].Name)

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	t.Run("refuses to overwrite", func(t *testing.T) {
		err := RunInit(&bytes.Buffer{}, cfg, "", false)
		require.Error(t, err)
		assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
	})

	t.Run("force overwrites", func(t *testing.T) {
		require.NoError(t, RunInit(&bytes.Buffer{}, cfg, configPath, true))
	})
}

func TestNewNotifier_DefaultsToNoop(t *testing.T) {
	n, err := newNotifier(config.Default())
	require.NoError(t, err)
	assert.IsType(t, notify.NoopNotifier{}, n)
}
