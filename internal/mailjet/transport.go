// Package mailjet implements a Provider that sends emails via the Mailjet Send API.
//
// A Transport converts the generic email.Message into one of the two Send API
// payload shapes (the flat v3 format or the nested v3.1 format), posts it, and
// reconciles the provider's answer into a provider.Result.
package mailjet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

// Config holds the configuration for creating a Transport.
type Config struct {
	APIKey        string
	APISecret     string
	Version       SchemaVersion
	LegacyRouting LegacyRouting
	Client        ClientOptions
}

// Option customizes a Transport.
type Option func(*Transport)

// WithDispatcher replaces the default event dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(t *Transport) { t.dispatcher = d }
}

// WithLogger sets the logger used for send diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithPoster makes the transport use p instead of creating a Client.
func WithPoster(p Poster) Option {
	return func(t *Transport) {
		t.newClient = func() (Poster, error) { return p, nil }
	}
}

// Transport sends messages through the Mailjet Send API.
//
// A Transport is meant to be used from one goroutine at a time; the only
// state it shares between calls is the HTTP client, created on first use.
type Transport struct {
	builder    Builder
	dispatcher Dispatcher
	logger     *slog.Logger

	newClient func() (Poster, error)
	mu        sync.Mutex
	client    Poster
}

// New creates a Transport. The payload schema is fixed here for the lifetime
// of the transport. Credentials are not checked until the first send.
func New(cfg Config, opts ...Option) (*Transport, error) {
	builder, err := NewBuilder(cfg.Version, BuilderOptions{LegacyRouting: cfg.LegacyRouting})
	if err != nil {
		return nil, err
	}

	clientOpts := cfg.Client
	clientOpts.Version = builder.Version()

	t := &Transport{
		builder:    builder,
		dispatcher: NewEventDispatcher(),
		newClient: func() (Poster, error) {
			c, err := NewClient(cfg.APIKey, cfg.APISecret, clientOpts)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	return t, nil
}

// Name returns the provider name.
func (t *Transport) Name() string {
	return "mailjet"
}

// Builder returns the payload builder selected at construction.
func (t *Transport) Builder() Builder {
	return t.builder
}

// RegisterPlugin binds a listener to the transport's dispatcher.
func (t *Transport) RegisterPlugin(l Listener) {
	binder, ok := t.dispatcher.(interface{ Bind(Listener) })
	if !ok {
		t.logger.Warn("dispatcher does not accept listeners", "dispatcher", fmt.Sprintf("%T", t.dispatcher))
		return
	}
	binder.Bind(l)
}

// Send delivers one message. Listeners are notified before and after the
// call and may cancel it. The returned error is non-nil only when the
// message could not be attempted: the payload could not be built or the
// credentials are missing.
func (t *Transport) Send(ctx context.Context, msg *email.Message) (*provider.Result, error) {
	var ev Event
	if t.dispatcher != nil {
		ev = t.dispatcher.CreateEvent(t, msg)
	}
	if ev != nil {
		t.dispatcher.Dispatch(ctx, ev, PhaseBeforeSend)
		if ev.BubbleCancelled() {
			t.logger.Info("send cancelled by listener",
				"message_id", msg.MessageID,
			)
			return &provider.Result{Outcome: provider.OutcomeCancelled}, nil
		}
	}

	payload, err := t.builder.Payload(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s payload: %w", t.builder.Version(), err)
	}

	client, err := t.getClient()
	if err != nil {
		return nil, err
	}

	result := t.post(ctx, client, payload, msg.Recipients())

	if ev != nil {
		ev.SetResult(result.Outcome)
		ev.SetFailedRecipients(result.FailedRecipients)
		t.dispatcher.Dispatch(ctx, ev, PhaseSendPerformed)
	}

	return result, nil
}

// BulkSend delivers several messages in one API call and reconciles one
// result for the whole batch. Listeners are not notified for bulk sends.
func (t *Transport) BulkSend(ctx context.Context, msgs []*email.Message) (*provider.Result, error) {
	payload, err := t.builder.Batch(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s batch payload: %w", t.builder.Version(), err)
	}

	client, err := t.getClient()
	if err != nil {
		return nil, err
	}

	var addressed []email.Address
	for _, msg := range msgs {
		addressed = append(addressed, msg.Recipients()...)
	}

	return t.post(ctx, client, payload, addressed), nil
}

// getClient returns the HTTP client, creating it on first use. A failed
// creation is not cached.
func (t *Transport) getClient() (Poster, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}
	client, err := t.newClient()
	if err != nil {
		return nil, err
	}
	t.client = client
	return client, nil
}

// post performs the call and classifies the outcome. A transport failure
// marks every addressed recipient as failed; a response is trusted for its
// sent count whatever its status.
func (t *Transport) post(ctx context.Context, client Poster, payload any, addressed []email.Address) *provider.Result {
	resp, err := client.Post(ctx, payload)
	if err != nil || resp == nil {
		t.logger.Warn("mailjet send failed",
			"version", t.builder.Version(),
			"recipients", len(addressed),
			"error", err,
		)
		return &provider.Result{
			Outcome:          provider.OutcomeFailed,
			FailedRecipients: addressed,
		}
	}

	result := &provider.Result{
		Outcome:    provider.OutcomeSuccess,
		Sent:       t.builder.SentCount(resp),
		StatusCode: resp.StatusCode,
	}
	if !resp.Success() {
		result.Outcome = provider.OutcomeFailed
		t.logger.Warn("mailjet rejected send",
			"version", t.builder.Version(),
			"sent", result.Sent,
			"error", resp.Err(),
		)
		return result
	}

	t.logger.Debug("mailjet send completed",
		"version", t.builder.Version(),
		"sent", result.Sent,
		"dry_run", resp.DryRun,
	)
	return result
}
