// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"
	"errors"

	"github.com/shineum/mailjet-relay/internal/email"
)

// Provider is the interface that email delivery backends must implement.
// Each provider translates the generic message into its own wire format
// and reports the delivery outcome.
type Provider interface {
	// Send delivers an email message through this provider.
	// A non-nil error means the message could not be attempted at all
	// (invalid message, missing credentials). Failures of an attempted
	// delivery are reported through the Result instead.
	Send(ctx context.Context, msg *email.Message) (*Result, error)

	// Name returns the human-readable name of this provider.
	Name() string
}

// ErrInvalidMessage is wrapped by errors reporting a message that no backend
// could deliver, such as one without a sender or recipients.
var ErrInvalidMessage = errors.New("invalid message")

// Outcome classifies a delivery attempt. The zero value is OutcomeUnknown,
// so a result nobody filled in never reads as a success.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the uniform report of one send call.
//
// Sent is the number of recipients the backend reported as accepted. It is
// passed through unchanged even when it disagrees with Outcome; use Accepted
// for a count that is only trusted on success.
type Result struct {
	Outcome          Outcome
	Sent             int
	FailedRecipients []email.Address
	StatusCode       int
}

// Accepted returns Sent when the outcome is a success, zero otherwise.
func (r *Result) Accepted() int {
	if r == nil || r.Outcome != OutcomeSuccess {
		return 0
	}
	return r.Sent
}
