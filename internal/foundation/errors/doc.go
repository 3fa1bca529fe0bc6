// Package errors provides the classified error type used across spvbuild.
//
// Every failure in the shader build is fatal. The classification exists so the
// CLI can print a focused message naming the project, macro combination and
// file responsible, and so it can pick a stable exit code per failure kind.
//
// Key features:
//   - ErrorCategory: failure kind (manifest, include, compile, filesystem, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ClassifiedError: structured error with category, severity, cause and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit code mapping and user-facing formatting
//
// Example usage:
//
//	err := errors.CompileError("shader rejected by compiler").
//		WithCause(cause).
//		WithContext("project", "pathtracer").
//		WithContext("file", path).
//		Build()
package errors
