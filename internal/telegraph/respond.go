package telegraph

import (
	"context"
	"strings"

	"github.com/zulandar/leadbot/internal/lang"
)

// ResponderRequest is one free-form question.
type ResponderRequest struct {
	Text     string
	Language lang.Language
	UserName string
	IsGroup  bool
}

// Responder answers free-form text. Implementations may call the network;
// the router bounds every call with a timeout and falls back to a fixed
// reply on error.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) (string, error)
}

// CannedResponder answers from keyword lists. It is used when no language
// model is configured.
type CannedResponder struct{}

var (
	greetingWords = []string{"salom", "assalomu", "hello", "hi ", "hey", "good morning", "good afternoon", "xayrli kun"}
	thanksWords   = []string{"rahmat", "raxmat", "thank", "thanks", "tashakkur"}
)

// Respond implements Responder.
func (CannedResponder) Respond(_ context.Context, req ResponderRequest) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(req.Text)) + " "
	l := req.Language
	switch {
	case containsAny(lower, thanksWords):
		return lang.Pick(l,
			"😊 Arzimaydi! Yana savollaringiz bo'lsa, bemalol yozing.",
			"😊 You're welcome! Feel free to write if you have more questions."), nil
	case containsAny(lower, greetingWords):
		name := req.UserName
		if name == "" {
			name = lang.Pick(l, "do'stim", "friend")
		}
		return lang.Pick(l,
			"👋 Salom, "+name+"! Sizga qanday yordam bera olaman?",
			"👋 Hello, "+name+"! How can I help you?"), nil
	default:
		return fallbackText(l), nil
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
