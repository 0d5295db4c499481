package telegraph

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/lead"
)

func TestSeverityColor(t *testing.T) {
	tests := map[string]string{
		"success": ColorSuccess,
		"info":    ColorInfo,
		"warning": ColorWarning,
		"error":   ColorError,
		"other":   ColorInfo,
	}
	for sev, want := range tests {
		if got := severityColor(sev); got != want {
			t.Errorf("severityColor(%q) = %q, want %q", sev, got, want)
		}
	}
}

func TestFormatLeadEvent(t *testing.T) {
	ev := FormatLeadEvent(lead.Lead{
		Project:   "Booking app",
		Name:      "Ali",
		Phone:     "+998901234567",
		Email:     "ali@example.com",
		Language:  lang.Secondary,
		Contact:   lead.Contact{Platform: "telegram", UserID: "42", Handle: "ali"},
		CreatedAt: time.Now(),
	})
	if ev.Title != "🎯 New lead" || ev.Color != ColorSuccess {
		t.Errorf("event = %+v", ev)
	}
	want := map[string]string{
		"Name": "Ali", "Phone": "+998901234567", "Email": "ali@example.com",
		"User ID": "42", "Username": "@ali", "Platform": "telegram", "Language": "English",
	}
	got := map[string]string{}
	for _, f := range ev.Fields {
		got[f.Name] = f.Value
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestFormatLeadEvent_NoHandle(t *testing.T) {
	ev := FormatLeadEvent(lead.Lead{Contact: lead.Contact{UserID: "1"}})
	for _, f := range ev.Fields {
		if f.Name == "Username" {
			t.Error("username field should be omitted when unknown")
		}
		if f.Name == "Name" && f.Value != "-" {
			t.Errorf("empty name should render as dash, got %q", f.Value)
		}
	}
}

func TestEventText(t *testing.T) {
	got := EventText(FormattedEvent{
		Title:  "Title",
		Body:   "Body line",
		Fields: []Field{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}},
	})
	want := "Title\nBody line\nA: 1\nB: 2"
	if got != want {
		t.Errorf("EventText = %q, want %q", got, want)
	}
	if !strings.HasPrefix(EventText(FormattedEvent{Body: "only"}), "only") {
		t.Error("missing title should not leave a blank line")
	}
}

func TestOutboundPlainText(t *testing.T) {
	msg := OutboundMessage{
		Text:     "Our office",
		Events:   []FormattedEvent{{Title: "T", Body: "B"}},
		Location: &Location{Latitude: 40.3834, Longitude: 71.7841},
	}
	want := "Our office\n\nT\nB\n\n📍 https://maps.google.com/?q=40.383400,71.784100"
	if got := msg.PlainText(); got != want {
		t.Errorf("PlainText = %q, want %q", got, want)
	}
	if got := (OutboundMessage{}).PlainText(); got != "" {
		t.Errorf("empty PlainText = %q", got)
	}
}

func TestChunkText(t *testing.T) {
	if got := ChunkText("  ", 10); got != nil {
		t.Errorf("blank text chunks = %v", got)
	}
	if got := ChunkText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short chunks = %v", got)
	}
	got := ChunkText("aaaa\nbbbb\ncccc", 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Errorf("line chunks = %q", got)
	}
	got = ChunkText(strings.Repeat("я", 25), 10)
	if len(got) != 3 || len([]rune(got[0])) != 10 || len([]rune(got[2])) != 5 {
		t.Errorf("rune chunks = %q", got)
	}
}
