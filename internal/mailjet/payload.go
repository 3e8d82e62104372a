package mailjet

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

// SchemaVersion selects one of the two Send API payload shapes.
type SchemaVersion string

const (
	// Legacy is the flat v3 payload.
	Legacy SchemaVersion = "v3"
	// Structured is the nested v3.1 payload wrapped in a Messages envelope.
	Structured SchemaVersion = "v3.1"
)

// ParseSchemaVersion accepts the API version string or its descriptive name.
// The empty string selects Legacy.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v3", "legacy":
		return Legacy, nil
	case "v3.1", "structured":
		return Structured, nil
	default:
		return "", fmt.Errorf("unknown mailjet schema version %q", s)
	}
}

// LegacyRouting selects how the v3 payload carries recipients.
type LegacyRouting string

const (
	// RouteRecipients merges To, Cc and Bcc into one Recipients list.
	RouteRecipients LegacyRouting = "recipients"
	// RouteHeaders keeps To, Cc and Bcc apart as formatted address strings.
	RouteHeaders LegacyRouting = "headers"
)

// Payload errors wrap provider.ErrInvalidMessage.
var (
	ErrNoSender     = fmt.Errorf("%w: message has no sender", provider.ErrInvalidMessage)
	ErrNoRecipients = fmt.Errorf("%w: message has no recipients", provider.ErrInvalidMessage)
	ErrNoMessages   = fmt.Errorf("%w: no messages to send", provider.ErrInvalidMessage)
)

// Builder turns generic messages into a Send API request body.
type Builder interface {
	// Version reports the schema this builder produces.
	Version() SchemaVersion
	// Payload builds the request body for one message, or a batch body when
	// more than one message is given.
	Payload(msgs ...*email.Message) (any, error)
	// Batch builds the bulk request body, whatever the number of messages.
	Batch(msgs []*email.Message) (any, error)
	// SentCount reads the number of accepted recipients from a response.
	SentCount(resp *Response) int
}

// BuilderOptions tunes payload construction.
type BuilderOptions struct {
	LegacyRouting LegacyRouting
}

// NewBuilder returns the builder for version v.
func NewBuilder(v SchemaVersion, opts BuilderOptions) (Builder, error) {
	switch v {
	case Legacy:
		routing := opts.LegacyRouting
		if routing == "" {
			routing = RouteRecipients
		}
		if routing != RouteRecipients && routing != RouteHeaders {
			return nil, fmt.Errorf("unknown legacy routing %q", routing)
		}
		return &LegacyBuilder{Routing: routing}, nil
	case Structured:
		return &StructuredBuilder{}, nil
	default:
		return nil, fmt.Errorf("unknown mailjet schema version %q", v)
	}
}

// checkAddressing validates the parts of msg every schema needs.
func checkAddressing(msg *email.Message) (email.Address, error) {
	sender, ok := msg.Sender()
	if !ok || sender.Email == "" {
		return email.Address{}, ErrNoSender
	}
	if msg.To.Len()+msg.Cc.Len()+msg.Bcc.Len() == 0 {
		return email.Address{}, ErrNoRecipients
	}
	return sender, nil
}

// marshalWithReserved encodes core and then adds reserved fields at the top
// level. A reserved field never replaces a core field.
func marshalWithReserved(core any, reserved map[string]any) ([]byte, error) {
	data, err := json.Marshal(core)
	if err != nil {
		return nil, err
	}
	if len(reserved) == 0 {
		return data, nil
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for name, value := range reserved {
		if _, taken := fields[name]; taken {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		fields[name] = raw
	}
	return json.Marshal(fields)
}
