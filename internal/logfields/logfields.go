package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyProfile     = "profile"
	KeyProject     = "project"
	KeyCombination = "combination"
	KeyStage       = "stage"
	KeyBackend     = "backend"
	KeyFile        = "file"
	KeyPath        = "path"
	KeyOutput      = "output"
	KeyMacros      = "macros"
	KeyBytes       = "bytes"
	KeyCount       = "count"
	KeySkipped     = "skipped"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Profile(p string) slog.Attr      { return slog.String(KeyProfile, p) }
func Project(name string) slog.Attr   { return slog.String(KeyProject, name) }
func Combination(k string) slog.Attr  { return slog.String(KeyCombination, k) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Backend(name string) slog.Attr   { return slog.String(KeyBackend, name) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Macros(m []string) slog.Attr     { return slog.Any(KeyMacros, m) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Skipped(n int) slog.Attr         { return slog.Int(KeySkipped, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Since renders the elapsed time since start as a duration_ms attribute.
func Since(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
