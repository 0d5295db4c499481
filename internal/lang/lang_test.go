package lang

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Language
	}{
		{"empty", "", Primary},
		{"whitespace", "   ", Primary},
		{"ambiguous", "ok", Primary},
		{"uzbek greeting", "Assalomu alaykum, qanday xizmatlar bor?", Primary},
		{"english question", "Hello, what services do you provide?", Secondary},
		{"single english token", "hello", Primary},
		{"mixed languages", "Salom, hello, what is the price?", Primary},
		{"one uzbek token wins", "Hello, I need a website, rahmat", Primary},
		{"override respond", "Please respond in English", Secondary},
		{"override speak", "Can you speak English?", Secondary},
		{"override uzbek phrase", "inglizcha javob bering", Secondary},
		{"override switch", "switch to english", Secondary},
		{"override with primary tokens", "Salom, iltimos, speak in English", Secondary},
		{"override sentence", "I would like to speak in English", Secondary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	inputs := []string{"", "hello there, how are you doing?", "salom", "respond in english"}
	for _, in := range inputs {
		first := Classify(in)
		for i := 0; i < 5; i++ {
			if got := Classify(in); got != first {
				t.Fatalf("Classify(%q) changed between calls: %s then %s", in, first, got)
			}
		}
	}
}

func TestClassify_MarginRequired(t *testing.T) {
	// Exactly one English token is not enough to leave the default.
	if got := Classify("thanks"); got != Primary {
		t.Errorf("Classify(thanks) = %s, want uz", got)
	}
	// Two tokens meet the margin.
	if got := Classify("thanks, hello"); got != Secondary {
		t.Errorf("Classify(thanks, hello) = %s, want en", got)
	}
}

func TestHasOverride(t *testing.T) {
	if !HasOverride("Could you REPLY IN ENGLISH") {
		t.Error("expected override to be case-insensitive")
	}
	if HasOverride("english") {
		t.Error("bare language name should not count as an override")
	}
}

func TestParse(t *testing.T) {
	tests := map[string]Language{
		"en":      Secondary,
		"English": Secondary,
		"uz":      Primary,
		"uzbek":   Primary,
		"":        Primary,
		"fr":      Primary,
	}
	for in, want := range tests {
		if got := Parse(in); got != want {
			t.Errorf("Parse(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLanguage_String(t *testing.T) {
	if Primary.String() != "uz" || Secondary.String() != "en" {
		t.Errorf("String() = %q/%q, want uz/en", Primary.String(), Secondary.String())
	}
	if Uzbek.Name() != "Uzbek" || English.Name() != "English" {
		t.Errorf("Name() = %q/%q", Uzbek.Name(), English.Name())
	}
}

func TestPick(t *testing.T) {
	if got := Pick(Primary, "salom", "hello"); got != "salom" {
		t.Errorf("Pick(Primary) = %q", got)
	}
	if got := Pick(Secondary, "salom", "hello"); got != "hello" {
		t.Errorf("Pick(Secondary) = %q", got)
	}
}
