package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force      bool `help:"Overwrite existing files"`
	WithConfig bool `name:"with-config" help:"Also write a default configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	configPath := ""
	if i.WithConfig {
		configPath = root.Config
	}
	return RunInit(os.Stdout, cfg, configPath, i.Force)
}

// RunInit writes the example manifest under the shader root and, when
// configPath is set, a default configuration file.
func RunInit(out io.Writer, cfg *config.Config, configPath string, force bool) error {
	_, _ = fmt.Fprintln(out, "Initializing spvbuild project")

	path := cfg.ManifestPath()
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError("manifest already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}

	data, err := manifest.Example().Marshal()
	if err != nil {
		return errors.InternalError("failed to render example manifest").WithCause(err).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.FileSystemError("failed to create shader root").
			WithCause(err).
			WithContext("path", filepath.Dir(path)).
			Build()
	}
	//nolint:gosec // the manifest is committed alongside the shaders
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.FileSystemError("failed to write manifest").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	_, _ = fmt.Fprintf(out, "Writing manifest to %s\n", path)

	if configPath != "" {
		if err := config.Init(configPath, force); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", configPath)
	}

	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}
