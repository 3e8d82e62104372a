package mailjet

import (
	"context"
	"sync"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

// Phase names a point in the send lifecycle at which listeners are notified.
type Phase string

const (
	PhaseBeforeSend    Phase = "beforeSendPerformed"
	PhaseSendPerformed Phase = "sendPerformed"
)

// Event is what the transport sees of a dispatched send event.
type Event interface {
	BubbleCancelled() bool
	SetResult(outcome provider.Outcome)
	SetFailedRecipients(recipients []email.Address)
}

// Dispatcher creates and delivers send events.
type Dispatcher interface {
	// CreateEvent returns nil when nobody is listening.
	CreateEvent(t *Transport, msg *email.Message) Event
	Dispatch(ctx context.Context, ev Event, phase Phase)
}

// Listener is notified around every single-message send.
type Listener interface {
	// BeforeSendPerformed may call ev.CancelBubble to stop the send.
	BeforeSendPerformed(ctx context.Context, ev *SendEvent)
	SendPerformed(ctx context.Context, ev *SendEvent)
}

// SendEvent carries one message through the before/after notifications.
type SendEvent struct {
	transport *Transport
	message   *email.Message
	cancelled bool
	result    provider.Outcome
	failed    []email.Address
}

// Transport returns the transport that created the event.
func (e *SendEvent) Transport() *Transport { return e.transport }

// Message returns the message being sent.
func (e *SendEvent) Message() *email.Message { return e.message }

// CancelBubble stops the send when called during PhaseBeforeSend.
func (e *SendEvent) CancelBubble() { e.cancelled = true }

// BubbleCancelled reports whether a listener cancelled the send.
func (e *SendEvent) BubbleCancelled() bool { return e.cancelled }

// SetResult records the outcome of the send.
func (e *SendEvent) SetResult(outcome provider.Outcome) { e.result = outcome }

// Result returns the outcome recorded by the transport.
func (e *SendEvent) Result() provider.Outcome { return e.result }

// SetFailedRecipients records the recipients that could not be delivered.
func (e *SendEvent) SetFailedRecipients(recipients []email.Address) { e.failed = recipients }

// FailedRecipients returns the recipients reported as failed.
func (e *SendEvent) FailedRecipients() []email.Address { return e.failed }

// EventDispatcher fans send events out to bound listeners in registration order.
type EventDispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewEventDispatcher returns an empty dispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{}
}

// Bind adds a listener.
func (d *EventDispatcher) Bind(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// CreateEvent returns a *SendEvent, or nil when no listener is bound.
func (d *EventDispatcher) CreateEvent(t *Transport, msg *email.Message) Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.listeners) == 0 {
		return nil
	}
	return &SendEvent{transport: t, message: msg}
}

// Dispatch notifies every listener. Events of foreign types are ignored.
// During PhaseBeforeSend dispatch stops at the first cancellation.
func (d *EventDispatcher) Dispatch(ctx context.Context, ev Event, phase Phase) {
	se, ok := ev.(*SendEvent)
	if !ok {
		return
	}

	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, l := range listeners {
		switch phase {
		case PhaseBeforeSend:
			l.BeforeSendPerformed(ctx, se)
			if se.BubbleCancelled() {
				return
			}
		case PhaseSendPerformed:
			l.SendPerformed(ctx, se)
		}
	}
}
