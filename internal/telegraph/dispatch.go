package telegraph

import (
	"strings"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/session"
)

// ActionKind is the closed set of dispatcher outcomes.
type ActionKind int

const (
	ActionFreeForm ActionKind = iota
	ActionRunCommand
	ActionContinueLead
	ActionTopicalReply
	ActionUnknownCommand
)

func (k ActionKind) String() string {
	switch k {
	case ActionRunCommand:
		return "command"
	case ActionContinueLead:
		return "continue-lead"
	case ActionTopicalReply:
		return "topical"
	case ActionUnknownCommand:
		return "unknown-command"
	default:
		return "free-form"
	}
}

// Action is the dispatcher's decision for one message.
type Action struct {
	Kind     ActionKind
	Command  string        // ActionRunCommand, ActionUnknownCommand: name without prefix
	Stage    session.Stage // ActionContinueLead: stage being continued
	Topic    Topic         // ActionTopicalReply
	Language lang.Language
}

// Topic names a topical keyword set.
type Topic string

const (
	// TopicOrder starts the lead dialogue.
	TopicOrder Topic = "order"
	// TopicLocation answers with the office address and a map pin.
	TopicLocation Topic = "location"
	// TopicServices answers with the services overview and invites an order.
	TopicServices Topic = "services"
)

// topicSet is one keyword set, matched by case-insensitive substring.
type topicSet struct {
	topic    Topic
	keywords []string
	invite   bool // append the order invitation to the reply
}

// topicSets are checked in order; the first set with a matching keyword wins.
var topicSets = []topicSet{
	{
		topic: TopicOrder,
		keywords: []string{
			"buyurtma bermoqchiman", "buyurtma beraman", "zakaz bermoqchiman",
			"i want to order", "place an order", "i'd like to order", "make an order",
		},
	},
	{
		topic: TopicLocation,
		keywords: []string{
			"manzil", "qayerda", "qayerdasiz", "lokatsiya", "ofisingiz",
			"address", "location", "where are you", "your office",
		},
	},
	{
		topic:  TopicServices,
		invite: true,
		keywords: []string{
			"xizmat", "narx", "loyiha", "kerak", "sayt", "ilova", "dastur", "bot yasa",
			"service", "pricing", "price", "project", "build", "need", "website",
			"mobile app", "develop", "cost",
		},
	},
}

// Invites reports whether replies for the topic carry the order invitation.
func (t Topic) Invites() bool {
	for _, s := range topicSets {
		if s.topic == t {
			return s.invite
		}
	}
	return false
}

// matchTopic returns the first topical set containing a keyword of text.
func matchTopic(text string) (Topic, bool) {
	lower := strings.ToLower(text)
	for _, s := range topicSets {
		for _, kw := range s.keywords {
			if strings.Contains(lower, kw) {
				return s.topic, true
			}
		}
	}
	return "", false
}

// Dispatch resolves the action for text (already stripped of the bot
// handle) given the conversation's current session. Rules, first match wins:
//  1. a lead dialogue in progress continues, whatever the text says
//  2. an exact known command runs
//  3. any other command-prefixed text gets the unknown notice
//  4. a topical keyword set gives a topical reply
//  5. everything else is free-form
func Dispatch(s session.Session, text string, l lang.Language) Action {
	if s.Stage.Collecting() {
		return Action{Kind: ActionContinueLead, Stage: s.Stage, Language: l}
	}

	trimmed := strings.TrimSpace(text)
	if hasCommandPrefix(trimmed) {
		name := commandName(trimmed)
		if _, ok := commands[name]; ok && isCommandToken(trimmed) {
			return Action{Kind: ActionRunCommand, Command: name, Language: l}
		}
		return Action{Kind: ActionUnknownCommand, Command: name, Language: l}
	}

	if topic, ok := matchTopic(trimmed); ok {
		return Action{Kind: ActionTopicalReply, Topic: topic, Language: l}
	}
	return Action{Kind: ActionFreeForm, Language: l}
}

// commandName lowercases the first token and drops its prefix.
func commandName(text string) string {
	first := strings.Fields(text)[0]
	for _, p := range commandPrefixes {
		if strings.HasPrefix(first, p) {
			return strings.ToLower(strings.TrimPrefix(first, p))
		}
	}
	return strings.ToLower(first)
}

// isCommandToken reports whether text is a single command-shaped token.
// Only an exact token runs a command: "/help me please" does not.
func isCommandToken(text string) bool {
	fields := strings.Fields(text)
	if len(fields) != 1 {
		return false
	}
	name := commandName(text)
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
