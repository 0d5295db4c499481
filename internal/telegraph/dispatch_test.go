package telegraph

import (
	"testing"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/session"
)

func idleSession() session.Session {
	return *session.New(session.Identity{ChatID: "C1"})
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		text    string
		kind    ActionKind
		command string
		topic   Topic
	}{
		{"/start", ActionRunCommand, "start", ""},
		{"/HELP", ActionRunCommand, "help", ""},
		{"!order", ActionRunCommand, "order", ""},
		{"/location", ActionRunCommand, "location", ""},
		{"/cancel", ActionRunCommand, "cancel", ""},
		{"/foo", ActionUnknownCommand, "foo", ""},
		{"/help me please", ActionUnknownCommand, "help", ""},
		{"/foo bar", ActionUnknownCommand, "foo", ""},
		{"/pricing for app", ActionUnknownCommand, "pricing", ""},
		{"!order a website", ActionUnknownCommand, "order", ""},
		{"Buyurtma bermoqchiman", ActionTopicalReply, "", TopicOrder},
		{"I want to order a website", ActionTopicalReply, "", TopicOrder},
		{"Ofisingiz qayerda?", ActionTopicalReply, "", TopicLocation},
		{"What is your address?", ActionTopicalReply, "", TopicLocation},
		{"Sayt narxi qancha?", ActionTopicalReply, "", TopicServices},
		{"How much does a mobile app cost?", ActionTopicalReply, "", TopicServices},
		{"salom", ActionFreeForm, "", ""},
		{"good morning", ActionFreeForm, "", ""},
	}
	for _, tt := range tests {
		got := Dispatch(idleSession(), tt.text, lang.Primary)
		if got.Kind != tt.kind {
			t.Errorf("Dispatch(%q).Kind = %s, want %s", tt.text, got.Kind, tt.kind)
			continue
		}
		if got.Command != tt.command {
			t.Errorf("Dispatch(%q).Command = %q, want %q", tt.text, got.Command, tt.command)
		}
		if got.Topic != tt.topic {
			t.Errorf("Dispatch(%q).Topic = %q, want %q", tt.text, got.Topic, tt.topic)
		}
	}
}

func TestDispatch_CollectingWinsOverEverything(t *testing.T) {
	s := idleSession()
	s.Stage = session.CollectingName
	for _, text := range []string{"/help", "Ali", "where is your office?", "/foo"} {
		got := Dispatch(s, text, lang.Secondary)
		if got.Kind != ActionContinueLead || got.Stage != session.CollectingName {
			t.Errorf("Dispatch(%q) = %+v, want continue-lead at collecting_name", text, got)
		}
	}
}

func TestDispatch_CarriesLanguage(t *testing.T) {
	got := Dispatch(idleSession(), "/info", lang.Secondary)
	if got.Language != lang.Secondary {
		t.Errorf("Language = %s, want en", got.Language)
	}
}

func TestTopicInvites(t *testing.T) {
	if !TopicServices.Invites() {
		t.Error("service interest should invite an order")
	}
	if TopicOrder.Invites() || TopicLocation.Invites() {
		t.Error("only service interest invites")
	}
}

func TestActionKindString(t *testing.T) {
	if ActionContinueLead.String() != "continue-lead" || ActionFreeForm.String() != "free-form" {
		t.Errorf("unexpected names: %s, %s", ActionContinueLead, ActionFreeForm)
	}
}
