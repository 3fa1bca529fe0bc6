package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/logfields"
)

const publishTimeout = 5 * time.Second

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes events as JSON on a core NATS subject.
type NATSNotifier struct {
	conn    conn
	subject string
}

// NewNATSNotifier connects to url. The connection reconnects in the background
// for the lifetime of the notifier.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("spvbuild"),
		nats.Timeout(publishTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.NotifyError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}

	slog.Info("NATS notifier initialized", slog.String("url", url), slog.String("subject", subject))
	return newNATSNotifier(nc, subject), nil
}

func newNATSNotifier(c conn, subject string) *NATSNotifier {
	return &NATSNotifier{conn: c, subject: subject}
}

// Notify publishes event and waits for the server to acknowledge the flush.
func (n *NATSNotifier) Notify(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal build event").WithCause(err).Build()
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return errors.NotifyError("failed to publish build event").
			WithCause(err).
			WithContext("subject", n.subject).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return errors.NotifyError("failed to flush build event").
			WithCause(err).
			WithContext("subject", n.subject).
			Build()
	}

	slog.Debug("Published build event",
		logfields.BuildID(event.BuildID),
		slog.String("subject", n.subject),
		logfields.Count(len(event.Artifacts)))
	return nil
}

// Close closes the NATS connection.
func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
