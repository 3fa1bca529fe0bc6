// Package integration runs complete builds against committed shader trees.
package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/config"
)

// setupShaderRepo writes files under a fresh directory, commits them and
// returns the directory with the commit hash.
func setupShaderRepo(t *testing.T, files map[string]string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err, "failed to initialize git repo")
	w, err := repo.Worktree()
	require.NoError(t, err, "failed to get worktree")
	require.NoError(t, w.AddGlob("."), "failed to add files to git")

	hash, err := w.Commit("Initial shader commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err, "failed to create initial commit")
	return dir, hash.String()
}

// nagaConfig points a naga build at the shader tree in repoDir. Outputs and
// staging live outside the repository so the worktree stays clean.
func nagaConfig(t *testing.T, repoDir, profile string) *config.Config {
	t.Helper()

	out := t.TempDir()
	cfg := config.Default()
	cfg.ShaderRoot = repoDir
	cfg.OutputRoot = filepath.Join(out, "output")
	cfg.Profile = profile
	cfg.Compiler.Backend = compiler.BackendNaga
	cfg.Build.WorkspaceDir = filepath.Join(out, "tmp")
	cfg.Report.Path = filepath.Join(out, "build-report.json")
	require.NoError(t, cfg.Validate())
	return cfg
}

// runBuild runs the default build service.
func runBuild(t *testing.T, cfg *config.Config, opts build.BuildOptions) *build.BuildResult {
	t.Helper()

	result, err := build.NewBuildService().Run(t.Context(), build.BuildRequest{Config: cfg, Options: opts})
	require.NoError(t, err, "build failed")
	require.Equal(t, build.BuildStatusSuccess, result.Status, "build should succeed")
	return result
}

// buildStructureTree creates a nested map representing the directory structure.
func buildStructureTree(t *testing.T, rootDir string) map[string]any {
	t.Helper()

	tree := make(map[string]any)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || path == rootDir {
			return err
		}
		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		addPathToTree(tree, strings.Split(relPath, string(filepath.Separator)), info.IsDir())
		return nil
	})
	require.NoError(t, err)
	return tree
}

// addPathToTree adds a file or directory path to the structure tree.
func addPathToTree(tree map[string]any, parts []string, isDir bool) {
	current := tree
	for i, part := range parts {
		if i < len(parts)-1 {
			current = ensureDir(current, part)
			continue
		}
		if isDir {
			ensureDir(current, part)
		} else {
			current[part] = map[string]any{}
		}
	}
}

func ensureDir(current map[string]any, part string) map[string]any {
	if _, exists := current[part]; !exists {
		current[part] = make(map[string]any)
	}
	return current[part].(map[string]any)
}

// hashTree maps every file under root, by slash-separated relative path, to
// the SHA-256 of its content.
func hashTree(t *testing.T, root string) map[string]string {
	t.Helper()

	hashes := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		// #nosec G304 -- test utility reading files produced by the build
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		hashes[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err)
	return hashes
}
