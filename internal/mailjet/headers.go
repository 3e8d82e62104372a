package mailjet

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shineum/mailjet-relay/internal/email"
)

// reservedTable maps a Mailjet-specific message header to the payload field it becomes.
type reservedTable map[string]string

// legacyReserved lists the X-MJ/X-Mailjet headers understood by the v3 Send API.
// See https://dev.mailjet.com/email/guides/send-api-V3/.
var legacyReserved = reservedTable{
	"X-MJ-TemplateID":               "Mj-TemplateID",
	"X-MJ-TemplateLanguage":         "Mj-TemplateLanguage",
	"X-MJ-TemplateErrorReporting":   "MJ-TemplateErrorReporting",
	"X-MJ-TemplateErrorDeliver":     "MJ-TemplateErrorDeliver",
	"X-Mailjet-Prio":                "Mj-Prio",
	"X-Mailjet-Campaign":            "Mj-campaign",
	"X-Mailjet-DeduplicateCampaign": "Mj-deduplicatecampaign",
	"X-Mailjet-TrackOpen":           "Mj-trackopen",
	"X-Mailjet-TrackClick":          "Mj-trackclick",
	"X-MJ-CustomID":                 "Mj-CustomID",
	"X-MJ-EventPayLoad":             "Mj-EventPayLoad",
	"X-MJ-Vars":                     "Vars",
}

// structuredReserved lists the same headers for the v3.1 Send API.
var structuredReserved = reservedTable{
	"X-MJ-TemplateID":               "TemplateID",
	"X-MJ-TemplateLanguage":         "TemplateLanguage",
	"X-MJ-TemplateErrorReporting":   "TemplateErrorReporting",
	"X-MJ-TemplateErrorDeliver":     "TemplateErrorDeliver",
	"X-Mailjet-Prio":                "Priority",
	"X-Mailjet-Campaign":            "CustomCampaign",
	"X-Mailjet-DeduplicateCampaign": "DeduplicateCampaign",
	"X-Mailjet-TrackOpen":           "TrackOpens",
	"X-Mailjet-TrackClick":          "TrackClicks",
	"X-MJ-CustomID":                 "CustomID",
	"X-MJ-EventPayLoad":             "EventPayload",
	"X-MJ-MonitoringCategory":       "MonitoringCategory",
	"X-MJ-Vars":                     "Variables",
}

// numericFields are sent as JSON numbers when the header value is an integer.
var numericFields = map[string]bool{
	"Mj-TemplateID": true,
	"Mj-Prio":       true,
	"TemplateID":    true,
	"Priority":      true,
}

// objectFields are sent as raw JSON when the header value is a JSON object.
var objectFields = map[string]bool{
	"Vars":      true,
	"Variables": true,
}

// userHeaderPrefix marks headers passed through verbatim under "Headers".
const userHeaderPrefix = "x-"

// classifyHeaders splits h into reserved payload fields and pass-through user
// headers. The two results never share a header. Headers that are neither
// reserved nor X- prefixed are dropped.
func classifyHeaders(h email.Header, table reservedTable) (map[string]any, map[string]string) {
	reserved := make(map[string]any)
	user := make(map[string]string)

	for _, f := range h {
		if field, ok := table.lookup(f.Name); ok {
			if _, seen := reserved[field]; !seen {
				reserved[field] = reservedValue(field, f.Value)
			}
			continue
		}
		if strings.HasPrefix(strings.ToLower(f.Name), userHeaderPrefix) {
			user[f.Name] = f.Value
		}
	}

	return reserved, user
}

// lookup matches name against the table ignoring case.
func (t reservedTable) lookup(name string) (string, bool) {
	if field, ok := t[name]; ok {
		return field, true
	}
	for header, field := range t {
		if strings.EqualFold(header, name) {
			return field, true
		}
	}
	return "", false
}

func reservedValue(field, value string) any {
	value = strings.TrimSpace(value)
	switch {
	case numericFields[field]:
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	case objectFields[field]:
		if strings.HasPrefix(value, "{") && json.Valid([]byte(value)) {
			return json.RawMessage(value)
		}
	}
	return value
}
