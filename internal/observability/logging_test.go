package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithBuildID(t *testing.T) {
	ctx := WithBuildID(context.Background(), "build-123")

	lc := GetContext(ctx)
	if lc.BuildID != "build-123" {
		t.Errorf("expected build-123, got %s", lc.BuildID)
	}
}

func TestWithVariant(t *testing.T) {
	ctx := WithVariant(context.Background(), "demo", "A#B")

	lc := GetContext(ctx)
	if lc.Project != "demo" || lc.Combination != "A#B" || !lc.HasVariant {
		t.Errorf("unexpected variant context: %+v", lc)
	}
}

func TestMultipleContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithBuildID(ctx, "build-1")
	ctx = WithProfile(ctx, "release")
	ctx = WithVariant(ctx, "demo", "")
	ctx = WithStage(ctx, "compile")

	lc := GetContext(ctx)

	if lc.BuildID != "build-1" {
		t.Error("expected build-1")
	}
	if lc.Profile != "release" {
		t.Error("expected release")
	}
	if lc.Project != "demo" {
		t.Error("expected demo")
	}
	if lc.Stage != "compile" {
		t.Error("expected compile")
	}
}

func TestOverwriteContextValue(t *testing.T) {
	ctx := WithBuildID(context.Background(), "build-1")
	ctx = WithBuildID(ctx, "build-2")

	if lc := GetContext(ctx); lc.BuildID != "build-2" {
		t.Errorf("expected build-2, got %s", lc.BuildID)
	}
}

func TestEmptyContext(t *testing.T) {
	lc := GetContext(context.Background())

	if lc.BuildID != "" || lc.Project != "" || lc.Stage != "" || lc.HasVariant {
		t.Error("expected empty context")
	}
}

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestInfoContext(t *testing.T) {
	buf := captureDefault(t)

	ctx := WithBuildID(context.Background(), "build-1")
	ctx = WithVariant(ctx, "pathtracer", "MEDIUM")

	InfoContext(ctx, "variant compiled", slog.String("extra", "value"))

	output := buf.String()
	for _, want := range []string{"build-1", "pathtracer", "MEDIUM", "variant compiled", `"extra":"value"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log output: %s", want, output)
		}
	}
}

func TestEmptyCombinationIsLogged(t *testing.T) {
	buf := captureDefault(t)

	WarnContext(WithVariant(context.Background(), "demo", ""), "no units")

	if !strings.Contains(buf.String(), `"combination":""`) {
		t.Errorf("expected empty combination in log output: %s", buf.String())
	}
}

func TestLevels(t *testing.T) {
	buf := captureDefault(t)
	ctx := WithStage(context.Background(), "write")

	DebugContext(ctx, "debug message")
	ErrorContext(ctx, "error message")

	output := buf.String()
	if !strings.Contains(output, `"level":"DEBUG"`) || !strings.Contains(output, `"level":"ERROR"`) {
		t.Errorf("expected both levels in output: %s", output)
	}
	if !strings.Contains(output, `"stage":"write"`) {
		t.Errorf("expected stage in output: %s", output)
	}
}
