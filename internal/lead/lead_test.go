package lead

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/session"
)

var testContact = Contact{Platform: "telegram", UserID: "12345", Handle: "johndoe", FirstName: "John", LastName: "Doe"}

func newSession() *session.Session {
	return session.New(session.Identity{ChatID: "C1"})
}

func TestIsCancel(t *testing.T) {
	yes := []string{"stop", "STOP", "please cancel", "quit", "exit", "bekor qilish", "To'xtat", "toxtating"}
	for _, s := range yes {
		if !IsCancel(s) {
			t.Errorf("IsCancel(%q) = false, want true", s)
		}
	}
	no := []string{"Need a booking app", "Ali", "+998901234567", "ali@example.com"}
	for _, s := range no {
		if IsCancel(s) {
			t.Errorf("IsCancel(%q) = true, want false", s)
		}
	}
}

func TestStart_FromIdle(t *testing.T) {
	s := newSession()
	step := Start(s, lang.Primary)
	if step.Outcome != Started {
		t.Errorf("Outcome = %s, want started", step.Outcome)
	}
	if s.Stage != session.CollectingProject {
		t.Errorf("Stage = %s, want collecting_project", s.Stage)
	}
	if !strings.Contains(step.Prompt, "stop") {
		t.Errorf("prompt should remind of the cancel word: %q", step.Prompt)
	}
}

func TestStart_AlreadyCollecting(t *testing.T) {
	s := newSession()
	s.Stage = session.CollectingPhone
	s.Fields[session.FieldProject] = "p"
	s.Fields[session.FieldName] = "n"
	step := Start(s, lang.Secondary)
	if s.Stage != session.CollectingPhone {
		t.Errorf("Stage = %s, want collecting_phone", s.Stage)
	}
	if len(s.Fields) != 2 {
		t.Errorf("fields were touched: %v", s.Fields)
	}
	if !strings.Contains(step.Prompt, "phone") {
		t.Errorf("prompt = %q, want the phone prompt", step.Prompt)
	}
}

func TestAdvance_FullSequenceEmitsOneLead(t *testing.T) {
	s := newSession()
	Start(s, lang.Primary)

	inputs := []string{"Need a booking app", "Ali Valiyev", "+998901234567", "ali@example.com"}
	wantStages := []session.Stage{session.CollectingName, session.CollectingPhone, session.CollectingEmail, session.Idle}

	leads := 0
	var last Step
	for i, in := range inputs {
		last = Advance(s, in, lang.Primary, testContact, time.Now())
		if last.Stage != wantStages[i] || s.Stage != wantStages[i] {
			t.Fatalf("after %q: stage = %s, want %s", in, s.Stage, wantStages[i])
		}
		if last.Lead != nil {
			leads++
		}
		if s.Stage == session.Idle && len(s.Fields) != 0 {
			t.Fatalf("idle session still has fields: %v", s.Fields)
		}
	}

	if leads != 1 {
		t.Fatalf("leads emitted = %d, want 1", leads)
	}
	if last.Outcome != Completed {
		t.Errorf("final outcome = %s, want completed", last.Outcome)
	}
	ld := last.Lead
	if ld.Project != "Need a booking app" || ld.Name != "Ali Valiyev" || ld.Phone != "+998901234567" || ld.Email != "ali@example.com" {
		t.Errorf("lead fields = %+v", ld)
	}
	if ld.ID == "" {
		t.Error("lead ID should be set")
	}
	if ld.Contact.UserID != "12345" {
		t.Errorf("Contact.UserID = %q", ld.Contact.UserID)
	}
	if !strings.Contains(last.Prompt, "Ali Valiyev") {
		t.Errorf("completion text should address the user: %q", last.Prompt)
	}
}

func TestAdvance_CancelAtEveryPosition(t *testing.T) {
	inputs := []string{"Need a booking app", "Ali", "+998901234567", "ali@example.com"}
	for pos := 0; pos < len(inputs); pos++ {
		s := newSession()
		Start(s, lang.Primary)
		leads := 0
		for i, in := range inputs {
			if i == pos {
				step := Advance(s, "stop", lang.Primary, testContact, time.Now())
				if step.Outcome != Cancelled {
					t.Fatalf("pos %d: outcome = %s, want cancelled", pos, step.Outcome)
				}
				break
			}
			if step := Advance(s, in, lang.Primary, testContact, time.Now()); step.Lead != nil {
				leads++
			}
		}
		if leads != 0 {
			t.Errorf("pos %d: leads = %d, want 0", pos, leads)
		}
		if s.Stage != session.Idle || len(s.Fields) != 0 {
			t.Errorf("pos %d: stage=%s fields=%v", pos, s.Stage, s.Fields)
		}
	}
}

func TestAdvance_CancelBeatsData(t *testing.T) {
	s := newSession()
	Start(s, lang.Secondary)
	step := Advance(s, "I want to cancel this project", lang.Secondary, testContact, time.Now())
	if step.Outcome != Cancelled {
		t.Fatalf("outcome = %s, want cancelled", step.Outcome)
	}
	if _, ok := s.Fields[session.FieldProject]; ok {
		t.Error("cancel text must not be stored as the project")
	}
	if !strings.Contains(strings.ToLower(step.Prompt), "cancelled") {
		t.Errorf("cancel reply = %q", step.Prompt)
	}
}

func TestAdvance_UzbekCancelReply(t *testing.T) {
	s := newSession()
	Start(s, lang.Primary)
	step := Advance(s, "bekor", lang.Primary, testContact, time.Now())
	if !strings.Contains(step.Prompt, "bekor") {
		t.Errorf("cancel reply = %q, want to contain bekor", step.Prompt)
	}
}

func TestAdvance_EmptyTextIgnored(t *testing.T) {
	s := newSession()
	Start(s, lang.Primary)
	step := Advance(s, "   ", lang.Primary, testContact, time.Now())
	if step.Outcome != Ignored {
		t.Errorf("outcome = %s, want ignored", step.Outcome)
	}
	if s.Stage != session.CollectingProject {
		t.Errorf("stage = %s, want collecting_project", s.Stage)
	}
}

func TestAdvance_IdleIsNoop(t *testing.T) {
	s := newSession()
	step := Advance(s, "hello", lang.Primary, testContact, time.Now())
	if step.Outcome != Ignored || s.Stage != session.Idle {
		t.Errorf("outcome=%s stage=%s", step.Outcome, s.Stage)
	}
}

func TestAdvance_PromptsRemindCancel(t *testing.T) {
	for _, l := range []lang.Language{lang.Primary, lang.Secondary} {
		s := newSession()
		Start(s, l)
		for _, in := range []string{"p", "n", "123"} {
			step := Advance(s, in, l, testContact, time.Now())
			if !strings.Contains(step.Prompt, "\"stop\"") {
				t.Errorf("[%s] prompt at %s lacks cancel hint: %q", l, s.Stage, step.Prompt)
			}
		}
	}
}

func TestFormat(t *testing.T) {
	ld := Lead{
		Project:   "Test project",
		Name:      "John Doe",
		Phone:     "+998901234567",
		Email:     "john@example.com",
		Contact:   testContact,
		Language:  lang.Primary,
		CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}
	got := Format(ld)
	for _, want := range []string{"@johndoe", "User ID: 12345", "First Name: John", "Last Name: Doe", "Project: Test project", "Email: john@example.com", "Language: Uzbek"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() missing %q:\n%s", want, got)
		}
	}
}

func TestFormat_NoHandle(t *testing.T) {
	ld := Lead{Name: "A", Contact: Contact{UserID: "1"}}
	got := Format(ld)
	if strings.Contains(got, "Username:") {
		t.Errorf("Format() should omit username when unknown:\n%s", got)
	}
	if !strings.Contains(got, "First Name: -") {
		t.Errorf("Format() should dash missing first name:\n%s", got)
	}
}
