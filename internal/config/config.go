// Package config loads the spvbuild tool configuration.
//
// Every key of spvbuild.yaml is optional. Values are resolved in the order
// defaults, file, environment (PROFILE and SPVBUILD_*); command flags are
// applied on top by the CLI.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
)

// DefaultFileName is the configuration file looked up in the working directory.
const DefaultFileName = "spvbuild.yaml"

// Config is the tool configuration.
type Config struct {
	ShaderRoot string         `yaml:"shader_root"`
	Manifest   string         `yaml:"manifest"`
	OutputRoot string         `yaml:"output_root"`
	Profile    string         `yaml:"profile"`
	Compiler   CompilerConfig `yaml:"compiler"`
	Output     OutputConfig   `yaml:"output"`
	Build      BuildConfig    `yaml:"build"`
	Report     ReportConfig   `yaml:"report"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Watch      WatchConfig    `yaml:"watch"`
	Notify     NotifyConfig   `yaml:"notify"`
}

// CompilerConfig selects and configures the compiler backend.
type CompilerConfig struct {
	Backend      compiler.Backend `yaml:"backend"`
	GlslcPath    string           `yaml:"glslc_path"`
	TargetEnv    string           `yaml:"target_env"`
	SPIRVVersion string           `yaml:"spirv_version"`
	EntryPoint   string           `yaml:"entry_point"`
	MacroPrefix  string           `yaml:"macro_prefix"`
}

// OutputConfig controls artifact naming.
type OutputConfig struct {
	KeepStageSuffix bool `yaml:"keep_stage_suffix"` // write x.comp.spv instead of x.spv
}

// BuildConfig controls the driver.
type BuildConfig struct {
	Jobs          int    `yaml:"jobs"`
	KeepWorkspace bool   `yaml:"keep_workspace"`
	WorkspaceDir  string `yaml:"workspace_dir"`
}

// ReportConfig controls the JSON build report.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // Prometheus text exposition written after each build
	Listen   string `yaml:"listen"`   // HTTP address serving /metrics in watch mode
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// NotifyConfig controls rebuild notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DebounceDuration returns the parsed watch debounce.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// ManifestPath is the manifest location, defaulting to make_shaders.yaml under the shader root.
func (c *Config) ManifestPath() string {
	if c.Manifest != "" {
		return c.Manifest
	}
	return filepath.Join(c.ShaderRoot, manifest.DefaultFileName)
}

// CompilerOptions translates the compiler section into session options for the configured profile.
func (c *Config) CompilerOptions() compiler.Options {
	return compiler.Options{
		Profile:      c.Profile,
		TargetEnv:    c.Compiler.TargetEnv,
		SPIRVVersion: c.Compiler.SPIRVVersion,
		EntryPoint:   c.Compiler.EntryPoint,
		GlslcPath:    c.Compiler.GlslcPath,
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at path. A missing file is an error.
func Load(path string) (*Config, error) {
	return load(path, false, os.LookupEnv)
}

// LoadOptional reads the configuration at path, falling back to defaults when
// the file does not exist.
func LoadOptional(path string) (*Config, error) {
	return load(path, true, os.LookupEnv)
}

func load(path string, optional bool, lookup func(string) (string, bool)) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables in the YAML content
		expanded := os.Expand(string(data), func(key string) string {
			v, _ := lookup(key)
			return v
		})
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.ConfigError("failed to parse configuration").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
	case stderrors.Is(err, os.ErrNotExist) && optional:
	case stderrors.Is(err, os.ErrNotExist):
		return nil, errors.NotFoundError("configuration file not found").
			WithContext("path", path).
			Build()
	default:
		return nil, errors.FileSystemError("failed to read configuration").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).
			Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.InternalError("failed to marshal configuration").WithCause(err).Build()
	}
	//nolint:gosec // configuration is meant to be readable by the user's tools
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.FileSystemError("failed to write configuration").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
