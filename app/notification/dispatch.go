package notification

import (
	"context"

	"github.com/sirupsen/logrus"
)

// AsyncTrigger decouples enforcement from delivery: each event is handed to
// the wrapped trigger on its own goroutine, and a panicking or failing
// trigger can never affect the enforcement decision that emitted the event.
type AsyncTrigger struct {
	next   Trigger
	logger logrus.FieldLogger
}

func NewAsyncTrigger(next Trigger) *AsyncTrigger {
	return &AsyncTrigger{
		next:   next,
		logger: logrus.WithField("module", "notification-dispatch"),
	}
}

func (t *AsyncTrigger) Notify(_ context.Context, event Event) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.logger.WithFields(logrus.Fields{
					"user_id": event.UserID,
					"type":    string(event.Type),
					"panic":   rec,
				}).Error("notification_trigger_panicked")
			}
		}()

		// The request context may already be gone by the time delivery runs.
		t.next.Notify(context.Background(), event)
	}()
}

// LogTrigger is the default sink: it records the event and leaves delivery
// to downstream consumers of the log stream.
type LogTrigger struct {
	logger logrus.FieldLogger
}

func NewLogTrigger() *LogTrigger {
	return &LogTrigger{logger: logrus.WithField("module", "notification")}
}

func (t *LogTrigger) Notify(_ context.Context, event Event) {
	t.logger.WithFields(logrus.Fields{
		"user_id": event.UserID,
		"type":    string(event.Type),
		"payload": event.Payload,
	}).Info("notification_event")
}
