package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestShouldIgnoreEvent(t *testing.T) {
	cases := map[string]bool{
		"x.comp.glsl":        false,
		"common.glsl":        false,
		"make_shaders.yaml":  false,
		".x.comp.glsl.swp":   true,
		"x.comp.glsl.swp":    true,
		"x.comp.glsl~":       true,
		"#x.comp.glsl#":      true,
		"4913":               true,
		"x.glsl___jb_tmp___": true,
		"x.glsl.tmp":         true,
		".DS_Store":          true,
		"Thumbs.db":          true,
	}
	for name, want := range cases {
		assert.Equal(t, want, shouldIgnoreEvent(filepath.Join("/src/demo", name)), name)
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var fired atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	for range 10 {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebouncer_StopCancelsPendingFire(t *testing.T) {
	var fired atomic.Int32
	d := newDebouncer(20*time.Millisecond, func() { fired.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRunWorker_SingleFollowUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	requests := make(chan struct{}, 1)

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var builds atomic.Int32
	build := func(context.Context) {
		builds.Add(1)
		started <- struct{}{}
		<-release
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runWorker(ctx, requests, build)
	}()

	enqueue(requests)
	<-started

	// Changes during the running build collapse into one queued request.
	for range 5 {
		enqueue(requests)
	}
	release <- struct{}{}
	<-started
	release <- struct{}{}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), builds.Load())

	cancel()
	wg.Wait()
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "demo"), 0o750))
	require.NoError(t, os.MkdirAll(out, 0o750))

	builds := make(chan struct{}, 16)
	w, err := New(Options{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		Ignore:   []string{out},
		Build:    func(context.Context) { builds <- struct{}{} },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Ignored paths do not trigger.
	require.NoError(t, os.WriteFile(filepath.Join(root, "demo", "x.comp.glsl.swp"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(out, "x.spv"), []byte("x"), 0o600))
	select {
	case <-builds:
		t.Fatal("ignored file triggered a build")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "demo", "x.comp.glsl"), []byte("void main() {}"), 0o600))
	select {
	case <-builds:
	case <-time.After(3 * time.Second):
		t.Fatal("no build after source change")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestNew_RequiresBuild(t *testing.T) {
	_, err := New(Options{Root: t.TempDir()})
	assert.Error(t, err)
}
