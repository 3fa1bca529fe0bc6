package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"spvbuild.yaml" env:"SPVBUILD_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Compile every shader variant declared in the manifest"`
	Watch    WatchCmd    `cmd:"" help:"Build, then rebuild whenever shader sources change"`
	Discover DiscoverCmd `cmd:"" help:"List variants, output directories and shader units without compiling"`
	Init     InitCmd     `cmd:"" help:"Write an example shader manifest"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// LoadConfig loads the tool configuration. The default file name is optional;
// an explicitly named file must exist.
func (c *CLI) LoadConfig() (*config.Config, error) {
	if c.Config == config.DefaultFileName {
		return config.LoadOptional(c.Config)
	}
	return config.Load(c.Config)
}

// BuildFlags are the overrides shared by build and watch. Flags take
// precedence over environment and file values.
type BuildFlags struct {
	Profile string   `short:"p" help:"Build profile; names the output subdirectory (debug compiles without optimization)"`
	Output  string   `short:"o" help:"Output root directory"`
	Project []string `short:"P" help:"Only build the named project (repeatable)"`
	Jobs    int      `short:"j" help:"Number of variants compiled concurrently"`
	DryRun  bool     `name:"dry-run" help:"Compile but do not write binaries"`
	Backend string   `help:"Compiler backend (glslc|naga)"`
}

// Apply overrides cfg with every flag that was set and re-validates it.
func (f *BuildFlags) Apply(cfg *config.Config) error {
	if f.Profile != "" {
		cfg.Profile = f.Profile
	}
	if f.Output != "" {
		cfg.OutputRoot = f.Output
	}
	if f.Jobs != 0 {
		cfg.Build.Jobs = f.Jobs
	}
	if f.Backend != "" {
		backend, err := compiler.ParseBackend(f.Backend)
		if err != nil {
			return errors.ValidationError(err.Error()).WithContext("flag", "--backend").Build()
		}
		cfg.Compiler.Backend = backend
	}
	return cfg.Validate()
}
