package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/foundation"
	"git.home.luguber.info/inful/spvbuild/internal/include"
)

// Backend selects the compiler implementation.
type Backend string

const (
	// BackendGLSLC drives the glslc executable on .glsl sources.
	BackendGLSLC Backend = "glslc"
	// BackendNaga compiles .wgsl sources in process.
	BackendNaga Backend = "naga"
)

var backendNormalizer = foundation.NewNormalizer("compiler backend", map[string]Backend{
	"glslc": BackendGLSLC,
	"naga":  BackendNaga,
}, BackendGLSLC)

// ParseBackend parses a backend name. The empty string selects glslc.
func ParseBackend(s string) (Backend, error) {
	return backendNormalizer.NormalizeWithError(s)
}

// Backends lists the accepted backend names.
func Backends() []string { return backendNormalizer.Values() }

// Extension is the source file extension compiled by the backend.
func (b Backend) Extension() string {
	if b == BackendNaga {
		return discovery.ExtWGSL
	}
	return discovery.ExtGLSL
}

func (b Backend) String() string { return string(b) }

// Build profiles.
const (
	ProfileDebug   = "debug"
	ProfileRelease = "release"
)

// Defaults applied by Options.WithDefaults.
const (
	DefaultTargetEnv    = "vulkan1.3"
	DefaultSPIRVVersion = "1.6"
	DefaultEntryPoint   = "main"
	DefaultGlslcPath    = "glslc"
)

// Define is one preprocessor macro definition.
type Define struct {
	Name  string
	Value string
}

// DefinesFromMacros defines every macro with the value 1.
func DefinesFromMacros(macros []string) []Define {
	defines := make([]Define, 0, len(macros))
	for _, m := range macros {
		defines = append(defines, Define{Name: m, Value: "1"})
	}
	return defines
}

// Options is the configuration of one compiler session.
type Options struct {
	Profile      string
	TargetEnv    string
	SPIRVVersion string
	EntryPoint   string
	Defines      []Define
	// Include resolves #include targets. A nil Include makes any include an error.
	Include include.Func
	// Workspace is the staging directory of the glslc backend.
	Workspace string
	// GlslcPath is the glslc executable, looked up on PATH when not absolute.
	GlslcPath string
}

// WithDefaults fills empty fields with the standard Vulkan 1.3 / SPIR-V 1.6 settings.
func (o Options) WithDefaults() Options {
	if o.Profile == "" {
		o.Profile = ProfileDebug
	}
	if o.TargetEnv == "" {
		o.TargetEnv = DefaultTargetEnv
	}
	if o.SPIRVVersion == "" {
		o.SPIRVVersion = DefaultSPIRVVersion
	}
	if o.EntryPoint == "" {
		o.EntryPoint = DefaultEntryPoint
	}
	if o.GlslcPath == "" {
		o.GlslcPath = DefaultGlslcPath
	}
	return o
}

// Optimize reports whether the profile asks for performance optimization.
// Every profile other than debug is optimized.
func (o Options) Optimize() bool { return o.Profile != ProfileDebug }

// DebugInfo reports whether debug information is emitted.
func (o Options) DebugInfo() bool { return o.Profile == ProfileDebug }

// DefineMap returns the macro table seen by the include preprocessor.
func (o Options) DefineMap() map[string]string {
	m := make(map[string]string, len(o.Defines))
	for _, d := range o.Defines {
		m[d.Name] = d.Value
	}
	return m
}

// MacroNames returns the defined macro names in order.
func (o Options) MacroNames() []string {
	names := make([]string, 0, len(o.Defines))
	for _, d := range o.Defines {
		names = append(names, d.Name)
	}
	return names
}

// spirvVersion parses a "major.minor" SPIR-V version.
func spirvVersion(s string) (major, minor uint8, err error) {
	majStr, minStr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return 0, 0, fmt.Errorf("invalid SPIR-V version %q", s)
	}
	a, err := strconv.ParseUint(majStr, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid SPIR-V version %q", s)
	}
	b, err := strconv.ParseUint(minStr, 10, 8)
	if err != nil || a != 1 || b > 6 {
		return 0, 0, fmt.Errorf("unsupported SPIR-V version %q (want 1.0 to 1.6)", s)
	}
	return uint8(a), uint8(b), nil
}

var targetEnvs = map[string]bool{
	"vulkan": true, "vulkan1.0": true, "vulkan1.1": true, "vulkan1.2": true,
	"vulkan1.3": true, "vulkan1.4": true, "opengl": true, "opengl4.5": true,
}

func validateTargetEnv(env string) error {
	if !targetEnvs[env] {
		return fmt.Errorf("unsupported target environment %q", env)
	}
	return nil
}
