package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		cause:    err,
		context:  make(ErrorContext),
	}
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithContextMap adds multiple context values.
func (b *ErrorBuilder) WithContextMap(ctx ErrorContext) *ErrorBuilder {
	b.context = b.context.Merge(ctx)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for the build's failure taxonomy. All of them are
// fatal: a partially compiled shader set must never be handed to the renderer.

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// NotFoundError creates an error for a required input that does not exist.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message).Fatal()
}

// ManifestMissing reports an absent manifest file.
func ManifestMissing(path string) *ErrorBuilder {
	return NotFoundError("shader manifest not found").WithContext("path", path)
}

// ManifestParseError reports a manifest that is malformed or misses required fields.
func ManifestParseError(path string, cause error) *ErrorBuilder {
	return ConfigError("failed to parse shader manifest").WithCause(cause).WithContext("path", path)
}

// ProjectDirectoryMissing reports a manifest project without a source directory.
func ProjectDirectoryMissing(project, dir string) *ErrorBuilder {
	return ValidationError("project source directory missing").
		WithContext("project", project).
		WithContext("path", dir)
}

// CompilerInitError creates an error for a compiler that cannot be constructed.
func CompilerInitError(message string) *ErrorBuilder {
	return NewError(CategoryCompilerInit, message).Fatal()
}

// IncludeError creates an include resolution error.
func IncludeError(message string) *ErrorBuilder {
	return NewError(CategoryInclude, message).Fatal()
}

// CompileError creates an error for a source rejected by the compiler.
func CompileError(message string) *ErrorBuilder {
	return NewError(CategoryCompile, message).Fatal()
}

// BuildError creates a build orchestration error.
func BuildError(message string) *ErrorBuilder {
	return NewError(CategoryBuild, message).Fatal()
}

// FileSystemError creates a filesystem error.
func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message).Fatal()
}

// NotifyError creates an error for a failed rebuild notification.
func NotifyError(message string) *ErrorBuilder {
	return NewError(CategoryNotify, message)
}

// RuntimeError creates a runtime error.
func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}

// Canceled creates an error for a build stopped by its context.
func Canceled(cause error) *ErrorBuilder {
	return WrapError(cause, CategoryCanceled, "build canceled").Fatal()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
