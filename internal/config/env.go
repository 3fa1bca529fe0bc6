package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/spvbuild/internal/compiler"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/logfields"
)

// Environment variables consulted by Load.
const (
	EnvProfile    = "PROFILE"
	EnvShaderRoot = "SPVBUILD_SHADER_ROOT"
	EnvManifest   = "SPVBUILD_MANIFEST"
	EnvOutputRoot = "SPVBUILD_OUTPUT_ROOT"
	EnvBackend    = "SPVBUILD_BACKEND"
	EnvGlslc      = "SPVBUILD_GLSLC"
	EnvJobs       = "SPVBUILD_JOBS"
	EnvNATSURL    = "SPVBUILD_NATS_URL"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads .env and .env.local when present. godotenv never
// overrides variables already set in the process environment.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load environment file", logfields.Path(name), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment file", logfields.Path(name))
	}
}

// applyEnv overrides file values with the environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvProfile, &cfg.Profile)
	str(EnvShaderRoot, &cfg.ShaderRoot)
	str(EnvManifest, &cfg.Manifest)
	str(EnvOutputRoot, &cfg.OutputRoot)
	str(EnvGlslc, &cfg.Compiler.GlslcPath)
	str(EnvNATSURL, &cfg.Notify.NATSURL)

	if v, ok := lookup(EnvBackend); ok && strings.TrimSpace(v) != "" {
		cfg.Compiler.Backend = compiler.Backend(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvJobs); ok && strings.TrimSpace(v) != "" {
		jobs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.ConfigError("invalid job count in environment").
				WithCause(err).
				WithContext("variable", EnvJobs).
				Build()
		}
		cfg.Build.Jobs = jobs
	}
	return nil
}
