package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/git"
	"git.home.luguber.info/inful/spvbuild/internal/report"
	"git.home.luguber.info/inful/spvbuild/internal/variant"
)

type fakeConn struct {
	subject    string
	data       []byte
	publishErr error
	flushErr   error
	closed     bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.publishErr
}

func (f *fakeConn) FlushWithContext(context.Context) error { return f.flushErr }
func (f *fakeConn) Close()                                 { f.closed = true }

func sampleResult() *build.BuildResult {
	end := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &build.BuildResult{
		BuildID:  "b-1",
		Status:   build.BuildStatusSuccess,
		Profile:  "debug",
		Variants: 2,
		Units:    2,
		Duration: 250 * time.Millisecond,
		EndTime:  end,
		Artifacts: []variant.ArtifactInfo{
			{Project: "demo", Combination: "A", Output: "output/debug/demo/A/x.spv", SHA256: "aa"},
			{Project: "demo", Combination: "A#B", Output: "output/debug/demo/A#B/x.spv", SHA256: "bb"},
		},
		Report: &report.BuildReport{Inputs: report.Inputs{Revision: &git.Revision{Commit: "abc", Branch: "main"}}},
	}
}

func TestEventFromResult(t *testing.T) {
	ev := EventFromResult(sampleResult())

	assert.Equal(t, "b-1", ev.BuildID)
	assert.Equal(t, "success", ev.Status)
	assert.Equal(t, int64(250), ev.DurationMS)
	require.NotNil(t, ev.Revision)
	assert.Equal(t, "abc", ev.Revision.Commit)
	require.Len(t, ev.Artifacts, 2)
	assert.Equal(t, "A#B", ev.Artifacts[1].Combination)
}

func TestNATSNotifier_PublishesJSON(t *testing.T) {
	fc := &fakeConn{}
	n := newNATSNotifier(fc, "spvbuild.rebuilt")

	require.NoError(t, n.Notify(context.Background(), EventFromResult(sampleResult())))
	assert.Equal(t, "spvbuild.rebuilt", fc.subject)

	var got Event
	require.NoError(t, json.Unmarshal(fc.data, &got))
	assert.Equal(t, "b-1", got.BuildID)
	assert.Len(t, got.Artifacts, 2)

	require.NoError(t, n.Close())
	assert.True(t, fc.closed)
}

func TestNATSNotifier_Errors(t *testing.T) {
	t.Run("publish", func(t *testing.T) {
		n := newNATSNotifier(&fakeConn{publishErr: stderrors.New("no connection")}, "s")
		err := n.Notify(context.Background(), &Event{})
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryNotify))
	})
	t.Run("flush", func(t *testing.T) {
		n := newNATSNotifier(&fakeConn{flushErr: context.DeadlineExceeded}, "s")
		err := n.Notify(context.Background(), &Event{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewNATSNotifier_Unreachable(t *testing.T) {
	_, err := NewNATSNotifier("nats://127.0.0.1:1", "s")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotify))
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	assert.NoError(t, n.Notify(context.Background(), &Event{}))
	assert.NoError(t, n.Close())
}
