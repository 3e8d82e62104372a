package listener

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shineum/mailjet-relay/internal/mailjet"
)

// DomainPolicy cancels sends addressed to a domain outside an allow list.
// An empty allow list permits every domain.
type DomainPolicy struct {
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewDomainPolicy returns a DomainPolicy for the given domains. Domains are
// compared case-insensitively and a leading "@" is ignored.
func NewDomainPolicy(domains []string, logger *slog.Logger) *DomainPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			allowed[d] = struct{}{}
		}
	}
	return &DomainPolicy{allowed: allowed, logger: logger}
}

// Allows reports whether addr may receive mail.
func (p *DomainPolicy) Allows(addr string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return false
	}
	_, ok := p.allowed[strings.ToLower(addr[at+1:])]
	return ok
}

func (p *DomainPolicy) BeforeSendPerformed(ctx context.Context, ev *mailjet.SendEvent) {
	for _, rcpt := range ev.Message().Recipients() {
		if !p.Allows(rcpt.Email) {
			p.logger.WarnContext(ctx, "recipient domain not allowed, cancelling send",
				"recipient", rcpt.Email,
				"message_id", ev.Message().MessageID,
			)
			ev.CancelBubble()
			return
		}
	}
}

func (p *DomainPolicy) SendPerformed(context.Context, *mailjet.SendEvent) {}
