package mailjet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shineum/mailjet-relay/internal/email"
)

func TestClassifyHeaders_ReservedAndUserDisjoint(t *testing.T) {
	t.Parallel()

	h := email.Header{
		{Name: "X-Mailjet-Campaign", Value: "spring-sale"},
		{Name: "X-Tracking-Ref", Value: "abc-123"},
	}

	reserved, user := classifyHeaders(h, structuredReserved)

	assert.Equal(t, map[string]any{"CustomCampaign": "spring-sale"}, reserved)
	assert.Equal(t, map[string]string{"X-Tracking-Ref": "abc-123"}, user)
	assert.NotContains(t, user, "X-Mailjet-Campaign")
}

func TestClassifyHeaders_CaseInsensitiveLookup(t *testing.T) {
	t.Parallel()

	h := email.Header{{Name: "x-mj-customid", Value: "order-42"}}

	reserved, user := classifyHeaders(h, legacyReserved)

	assert.Equal(t, "order-42", reserved["Mj-CustomID"])
	assert.Empty(t, user)
}

func TestClassifyHeaders_DropsNonCustomHeaders(t *testing.T) {
	t.Parallel()

	h := email.Header{
		{Name: "Subject", Value: "hello"},
		{Name: "Received", Value: "from somewhere"},
		{Name: "List-Unsubscribe", Value: "<mailto:u@example.com>"},
	}

	reserved, user := classifyHeaders(h, legacyReserved)

	assert.Empty(t, reserved)
	assert.Empty(t, user)
}

func TestClassifyHeaders_FirstReservedWinsLastUserWins(t *testing.T) {
	t.Parallel()

	h := email.Header{
		{Name: "X-MJ-CustomID", Value: "first"},
		{Name: "X-MJ-CustomID", Value: "second"},
		{Name: "X-Custom", Value: "one"},
		{Name: "X-Custom", Value: "two"},
	}

	reserved, user := classifyHeaders(h, structuredReserved)

	assert.Equal(t, "first", reserved["CustomID"])
	assert.Equal(t, "two", user["X-Custom"])
}

func TestClassifyHeaders_ValueTyping(t *testing.T) {
	t.Parallel()

	h := email.Header{
		{Name: "X-MJ-TemplateID", Value: "12345"},
		{Name: "X-Mailjet-Prio", Value: "high"},
		{Name: "X-MJ-Vars", Value: `{"name":"Ada"}`},
	}

	reserved, _ := classifyHeaders(h, structuredReserved)

	assert.Equal(t, 12345, reserved["TemplateID"])
	assert.Equal(t, "high", reserved["Priority"])
	assert.Equal(t, json.RawMessage(`{"name":"Ada"}`), reserved["Variables"])
}

func TestClassifyHeaders_MonitoringCategoryOnlyStructured(t *testing.T) {
	t.Parallel()

	h := email.Header{{Name: "X-MJ-MonitoringCategory", Value: "billing"}}

	reserved, user := classifyHeaders(h, structuredReserved)
	assert.Equal(t, "billing", reserved["MonitoringCategory"])
	assert.Empty(t, user)

	reserved, user = classifyHeaders(h, legacyReserved)
	assert.Empty(t, reserved)
	assert.Equal(t, "billing", user["X-MJ-MonitoringCategory"])
}
