package notification

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingTrigger struct {
	mu        sync.Mutex
	delivered []Event
	panicWith string
	done      chan struct{}
}

func (r *recordingTrigger) Notify(_ context.Context, event Event) {
	defer close(r.done)
	if r.panicWith != "" {
		panic(r.panicWith)
	}
	r.mu.Lock()
	r.delivered = append(r.delivered, event)
	r.mu.Unlock()
}

func TestAsyncTriggerDelivers(t *testing.T) {
	inner := &recordingTrigger{done: make(chan struct{})}
	trigger := NewAsyncTrigger(inner)

	trigger.Notify(context.Background(), Event{UserID: "u-1", Type: EventBrowseLimitWarning})

	select {
	case <-inner.done:
	case <-time.After(time.Second):
		t.Fatal("delivery did not happen")
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	if len(inner.delivered) != 1 || inner.delivered[0].UserID != "u-1" {
		t.Fatalf("unexpected delivery: %+v", inner.delivered)
	}
}

func TestAsyncTriggerSurvivesPanic(t *testing.T) {
	inner := &recordingTrigger{done: make(chan struct{}), panicWith: "delivery exploded"}
	trigger := NewAsyncTrigger(inner)

	// Must not propagate the panic to the caller.
	trigger.Notify(context.Background(), Event{UserID: "u-1", Type: EventSubscriptionExpired})

	select {
	case <-inner.done:
	case <-time.After(time.Second):
		t.Fatal("trigger was never invoked")
	}
}

func TestLogTriggerDoesNotBlock(t *testing.T) {
	trigger := NewLogTrigger()
	trigger.Notify(context.Background(), Event{
		UserID:  "u-1",
		Type:    EventListingLimitReached,
		Payload: map[string]interface{}{"used": 2, "limit": 2},
	})
}
