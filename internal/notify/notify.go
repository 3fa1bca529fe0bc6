// Package notify publishes rebuild events so running renderers can reload
// their SPIR-V binaries.
package notify

import (
	"context"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/git"
)

// Notifier publishes build events.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
	Close() error
}

// NoopNotifier is the Notifier used when no broker is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, *Event) error { return nil }
func (NoopNotifier) Close() error                         { return nil }

// Event describes one finished build.
type Event struct {
	BuildID    string        `json:"build_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Status     string        `json:"status"`
	Profile    string        `json:"profile"`
	Variants   int           `json:"variants"`
	Units      int           `json:"units"`
	DurationMS int64         `json:"duration_ms"`
	Revision   *git.Revision `json:"revision,omitempty"`
	Artifacts  []Artifact    `json:"artifacts"`
}

// Artifact is one written binary.
type Artifact struct {
	Project     string `json:"project"`
	Combination string `json:"combination"`
	Output      string `json:"output"`
	SHA256      string `json:"sha256"`
}

// EventFromResult builds the event for a build result.
func EventFromResult(res *build.BuildResult) *Event {
	ev := &Event{
		BuildID:    res.BuildID,
		Timestamp:  res.EndTime.UTC(),
		Status:     string(res.Status),
		Profile:    res.Profile,
		Variants:   res.Variants,
		Units:      res.Units,
		DurationMS: res.Duration.Milliseconds(),
		Artifacts:  make([]Artifact, 0, len(res.Artifacts)),
	}
	if res.Report != nil {
		ev.Revision = res.Report.Inputs.Revision
	}
	for _, a := range res.Artifacts {
		ev.Artifacts = append(ev.Artifacts, Artifact{
			Project:     a.Project,
			Combination: a.Combination,
			Output:      a.Output,
			SHA256:      a.SHA256,
		})
	}
	return ev
}
