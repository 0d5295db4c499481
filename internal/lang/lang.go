// Package lang picks the reply language for an inbound message.
//
// Uzbek is the primary language and wins every tie. English is chosen only
// when the user asks for it explicitly or writes clearly English text with
// no Uzbek words at all.
package lang

import "strings"

// Language is one of the two reply locales.
type Language int

const (
	// Primary is Uzbek, the operator's default locale.
	Primary Language = iota
	// Secondary is English.
	Secondary
)

// Uzbek and English are the concrete names for Primary and Secondary.
const (
	Uzbek   = Primary
	English = Secondary
)

// String returns the ISO 639-1 code for the language.
func (l Language) String() string {
	if l == Secondary {
		return "en"
	}
	return "uz"
}

// Name returns the English name of the language.
func (l Language) Name() string {
	if l == Secondary {
		return "English"
	}
	return "Uzbek"
}

// Parse converts a code or name ("uz", "en", "uzbek", "english") to a
// Language. Unknown values map to Primary.
func Parse(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "eng", "english", "secondary":
		return Secondary
	default:
		return Primary
	}
}

// secondaryMargin is how far the English score must exceed the Uzbek score.
const secondaryMargin = 2

// overridePhrases force English regardless of any other token in the text.
var overridePhrases = []string{
	"switch to english",
	"respond in english",
	"reply in english",
	"answer in english",
	"speak english",
	"speak in english",
	"write in english",
	"in english please",
	"english please",
	"inglizcha javob",
	"inglizchada javob",
	"ingliz tilida javob",
	"ingliz tilida gapir",
	"inglizcha gapir",
}

// primaryTokens are Uzbek indicator tokens.
var primaryTokens = []string{
	"salom", "assalomu", "alaykum", "rahmat", "raxmat", "qanday", "qanaqa",
	"nima", "nimalar", "kerak", "xizmat", "narx", "narxi", "loyiha",
	"iltimos", "yordam", "bormi", "qancha", "qayer", "sayt", "ilova",
	"dastur", "kompaniya", "haqida", "buyurtma", "bilan", "uchun",
	"menga", "sizlar", "sizning", "bizning", "yaxshi", "xayr",
	"yo'q", "mumkin", "qilish", "qilib", "bo'ladi", "bo'lsa",
}

// secondaryTokens are English indicator tokens.
var secondaryTokens = []string{
	"hello", "hey", "please", "thanks", "thank you", "what", "how",
	"where", "when", "price", "cost", "service", "project", "website",
	"need", "help", "company", "about", "would", "could", "want", "the ",
	"you", "your", "order", "develop", "build", "contact", "good",
}

// Classify returns the reply language for text. It is pure and
// deterministic: the same input always produces the same answer.
func Classify(text string) Language {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Primary
	}
	if HasOverride(lower) {
		return Secondary
	}

	primaryScore := score(lower, primaryTokens)
	if primaryScore > 0 {
		return Primary
	}
	secondaryScore := score(lower, secondaryTokens)
	if secondaryScore-primaryScore >= secondaryMargin {
		return Secondary
	}
	return Primary
}

// HasOverride reports whether text contains an explicit request to switch
// the conversation to English.
func HasOverride(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range overridePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// score counts substring occurrences of every token in the lowercased text.
func score(lower string, tokens []string) int {
	n := 0
	for _, tok := range tokens {
		n += strings.Count(lower, tok)
	}
	return n
}

// Pick returns uz or en depending on l. It keeps bilingual copy tables short.
func Pick(l Language, uz, en string) string {
	if l == Secondary {
		return en
	}
	return uz
}
