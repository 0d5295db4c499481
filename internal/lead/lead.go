// Package lead implements the lead-capture dialogue: project, name, phone
// and email are collected in that order, and a cancel word at any step
// abandons the capture.
package lead

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/session"
)

// Contact is the sender's platform profile attached to a lead.
type Contact struct {
	Platform  string
	UserID    string
	Handle    string // platform username without "@"
	FirstName string
	LastName  string
}

// Lead is a completed capture.
type Lead struct {
	ID        string
	Identity  session.Identity
	Contact   Contact
	Language  lang.Language
	Project   string
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

// cancelKeywords abandon the dialogue when found anywhere in the text.
var cancelKeywords = []string{
	"stop", "cancel", "quit", "exit",
	"bekor", "to'xtat", "toxtat", "chiqish",
}

// IsCancel reports whether text contains a cancel keyword.
func IsCancel(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range cancelKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Outcome says what a dialogue step did.
type Outcome int

const (
	// Ignored means the step had no usable text and nothing changed.
	Ignored Outcome = iota
	// Started means the dialogue moved from Idle to CollectingProject.
	Started
	// Advanced means a field was stored and the next one is requested.
	Advanced
	// Completed means the email was stored and a Lead was produced.
	Completed
	// Cancelled means the dialogue was abandoned.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Started:
		return "started"
	case Advanced:
		return "advanced"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "ignored"
	}
}

// Step is the result of one dialogue turn.
type Step struct {
	Outcome Outcome
	Stage   session.Stage // stage after the turn
	Prompt  string        // text to send back
	Lead    *Lead         // set when Outcome == Completed
}

// Start moves an Idle session into CollectingProject. A session already
// collecting keeps its stage and gets the current prompt again.
func Start(s *session.Session, l lang.Language) Step {
	if !s.Stage.Collecting() {
		s.Reset()
		s.Stage = session.CollectingProject
		return Step{Outcome: Started, Stage: s.Stage, Prompt: promptFor(s.Stage, l, true)}
	}
	return Step{Outcome: Advanced, Stage: s.Stage, Prompt: promptFor(s.Stage, l, false)}
}

// Advance feeds one message into a collecting session. Cancel keywords are
// checked before the text is stored as data.
func Advance(s *session.Session, text string, l lang.Language, who Contact, now time.Time) Step {
	if !s.Stage.Collecting() {
		return Step{Outcome: Ignored, Stage: s.Stage}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Step{Outcome: Ignored, Stage: s.Stage}
	}

	if IsCancel(text) {
		s.Reset()
		return Step{Outcome: Cancelled, Stage: s.Stage, Prompt: cancelledText(l)}
	}

	if s.Fields == nil {
		s.Fields = map[string]string{}
	}
	s.Fields[s.Stage.Field()] = text
	next := s.Stage.Next()

	if next != session.Idle {
		s.Stage = next
		return Step{Outcome: Advanced, Stage: next, Prompt: promptFor(next, l, false)}
	}

	ld := &Lead{
		ID:        uuid.NewString(),
		Identity:  s.Identity,
		Contact:   who,
		Language:  l,
		Project:   s.Fields[session.FieldProject],
		Name:      s.Fields[session.FieldName],
		Phone:     s.Fields[session.FieldPhone],
		Email:     s.Fields[session.FieldEmail],
		CreatedAt: now,
	}
	s.Reset()
	return Step{Outcome: Completed, Stage: s.Stage, Prompt: completedText(l, ld.Name), Lead: ld}
}

// cancelHint is appended to every prompt.
func cancelHint(l lang.Language) string {
	return lang.Pick(l,
		"(Bekor qilish uchun \"stop\" deb yozing)",
		"(Type \"stop\" to cancel)")
}

func promptFor(st session.Stage, l lang.Language, first bool) string {
	var body string
	switch st {
	case session.CollectingProject:
		body = lang.Pick(l,
			"📝 Loyihangiz haqida qisqacha yozing: qanday xizmat kerak?",
			"📝 Tell us briefly about your project: what do you need?")
		if first {
			body = lang.Pick(l,
				"🚀 Ajoyib! Buyurtmani rasmiylashtiramiz.\n\n",
				"🚀 Great! Let's put your order together.\n\n") + body
		}
	case session.CollectingName:
		body = lang.Pick(l,
			"👤 Ismingizni yozing:",
			"👤 What is your name?")
	case session.CollectingPhone:
		body = lang.Pick(l,
			"📞 Telefon raqamingizni yozing (masalan, +998901234567):",
			"📞 Your phone number (for example +998901234567):")
	case session.CollectingEmail:
		body = lang.Pick(l,
			"📧 Elektron pochta manzilingizni yozing:",
			"📧 Your email address:")
	default:
		return ""
	}
	return body + "\n\n" + cancelHint(l)
}

func cancelledText(l lang.Language) string {
	return lang.Pick(l,
		"❌ Buyurtma bekor qilindi. Istalgan vaqtda /order orqali qaytadan boshlashingiz mumkin.",
		"❌ Order cancelled. You can start again any time with /order.")
}

func completedText(l lang.Language, name string) string {
	if name == "" {
		name = lang.Pick(l, "do'stim", "friend")
	}
	return lang.Pick(l,
		fmt.Sprintf("✅ Rahmat, %s! Arizangiz qabul qilindi. Mutaxassislarimiz tez orada siz bilan bog'lanishadi.", name),
		fmt.Sprintf("✅ Thank you, %s! Your request has been received. Our team will contact you shortly.", name))
}

// DeliveryFailedText replaces the completion reply when the lead could not
// be handed to the operations channel.
func DeliveryFailedText(l lang.Language) string {
	return lang.Pick(l,
		"✅ Ma'lumotlaringiz saqlandi. Hozir operatorlarga yetkazishda muammo bor, iltimos /contact orqali biz bilan to'g'ridan-to'g'ri bog'laning.",
		"✅ Your details were saved. We could not reach our team right now, please also contact us directly via /contact.")
}
