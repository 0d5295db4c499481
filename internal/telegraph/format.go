package telegraph

import (
	"fmt"
	"strings"

	"github.com/zulandar/leadbot/internal/lead"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// FormatLeadEvent renders a completed lead as a structured notification
// for platforms with attachments or embeds.
func FormatLeadEvent(l lead.Lead) FormattedEvent {
	fields := []Field{
		{Name: "Name", Value: orDash(l.Name), Short: true},
		{Name: "Phone", Value: orDash(l.Phone), Short: true},
		{Name: "Email", Value: orDash(l.Email), Short: true},
		{Name: "User ID", Value: orDash(l.Contact.UserID), Short: true},
	}
	if l.Contact.Handle != "" {
		fields = append(fields, Field{Name: "Username", Value: "@" + strings.TrimPrefix(l.Contact.Handle, "@"), Short: true})
	}
	if l.Contact.Platform != "" {
		fields = append(fields, Field{Name: "Platform", Value: l.Contact.Platform, Short: true})
	}
	fields = append(fields, Field{Name: "Language", Value: l.Language.Name(), Short: true})

	return FormattedEvent{
		Title:    "🎯 New lead",
		Body:     "Project: " + l.Project,
		Severity: "success",
		Color:    ColorSuccess,
		Fields:   fields,
	}
}

// EventText renders an event as plain text for platforms without rich
// attachments (Telegram, WhatsApp).
func EventText(ev FormattedEvent) string {
	var b strings.Builder
	if ev.Title != "" {
		b.WriteString(ev.Title)
		b.WriteString("\n")
	}
	if ev.Body != "" {
		b.WriteString(ev.Body)
		b.WriteString("\n")
	}
	for _, f := range ev.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
