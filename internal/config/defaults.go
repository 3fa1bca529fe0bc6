package config

import (
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/variant"
)

// Defaults.
const (
	DefaultShaderRoot    = "src"
	DefaultOutputRoot    = "output"
	DefaultProfile       = compiler.ProfileDebug
	DefaultJobs          = 1
	DefaultDebounce      = 300 * time.Millisecond
	DefaultNotifySubject = "spvbuild.rebuilt"
)

func applyDefaults(cfg *Config) {
	if cfg.ShaderRoot == "" {
		cfg.ShaderRoot = DefaultShaderRoot
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = DefaultOutputRoot
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}

	c := &cfg.Compiler
	if c.Backend == "" {
		c.Backend = compiler.BackendGLSLC
	}
	if c.GlslcPath == "" {
		c.GlslcPath = compiler.DefaultGlslcPath
	}
	if c.TargetEnv == "" {
		c.TargetEnv = compiler.DefaultTargetEnv
	}
	if c.SPIRVVersion == "" {
		c.SPIRVVersion = compiler.DefaultSPIRVVersion
	}
	if c.EntryPoint == "" {
		c.EntryPoint = compiler.DefaultEntryPoint
	}
	if c.MacroPrefix == "" {
		c.MacroPrefix = variant.DefaultMacroPrefix
	}

	if cfg.Build.Jobs == 0 {
		cfg.Build.Jobs = DefaultJobs
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = DefaultDebounce.String()
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
}

// Validate checks the resolved configuration and canonicalizes the backend name.
func (c *Config) Validate() error {
	backend, err := compiler.ParseBackend(string(c.Compiler.Backend))
	if err != nil {
		return errors.ConfigError(err.Error()).WithContext("key", "compiler.backend").Build()
	}
	c.Compiler.Backend = backend

	if strings.ContainsAny(c.Profile, `/\`) || c.Profile == "." || c.Profile == ".." {
		return errors.ConfigError(fmt.Sprintf("invalid profile %q: must be a single directory name", c.Profile)).
			WithContext("key", "profile").
			Build()
	}
	if c.Build.Jobs < 1 {
		return errors.ConfigError(fmt.Sprintf("invalid job count %d: must be at least 1", c.Build.Jobs)).
			WithContext("key", "build.jobs").
			Build()
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d <= 0 {
		return errors.ConfigError(fmt.Sprintf("invalid watch debounce %q", c.Watch.Debounce)).
			WithContext("key", "watch.debounce").
			Build()
	}
	return nil
}
