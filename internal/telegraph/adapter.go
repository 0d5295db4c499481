// Package telegraph connects the lead bot to chat platforms (Telegram,
// Slack, Discord, WhatsApp) and routes each inbound message through the
// gate, dispatcher, lead dialogue and composer.
package telegraph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Chat kinds reported by adapters.
const (
	ChatPrivate = "private"
	ChatGroup   = "group"
)

// Adapter is the interface that platform-specific implementations must satisfy.
// Each adapter handles connection management and message sending/receiving
// for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the adapter is closed. Listen must only
	// be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message received from the chat platform.
type InboundMessage struct {
	Platform  string    // e.g. "telegram", "slack"
	ChannelID string    // chat identifier
	ThreadID  string    // sub-thread / topic identifier (empty if none)
	MessageID string    // platform message identifier
	ChatKind  string    // ChatPrivate or ChatGroup
	UserID    string    // sender platform identifier
	UserName  string    // sender display name
	Handle    string    // sender username without "@" (may be empty)
	FirstName string    // sender first name, when the platform provides one
	LastName  string    // sender last name, when the platform provides one
	Text      string    // raw message text
	Mentioned bool      // platform-native mention of the bot (entity, app_mention, ...)
	ReplyTo   *ReplyRef // author of the message this one replies to
	Timestamp time.Time // when the message was sent
}

// ReplyRef identifies the author of a replied-to message.
type ReplyRef struct {
	UserID string
	IsBot  bool
}

// IsGroup reports whether the message arrived in a multi-party chat.
func (m InboundMessage) IsGroup() bool {
	return m.ChatKind == ChatGroup
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel
	ThreadID  string           // thread/topic to reply in (empty for top-level)
	Text      string           // message text (plain text)
	Location  *Location        // optional map pin sent after the text
	Events    []FormattedEvent // structured attachments (lead notifications, digests)
}

// Location is a map pin.
type Location struct {
	Latitude  float64
	Longitude float64
	Title     string
	Address   string
}

// FormattedEvent is a structured notification rendered natively where the
// platform supports it (Slack attachments, Discord embeds) and as text
// elsewhere.
type FormattedEvent struct {
	Title    string  // headline
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering and
// reply-to-bot detection.
type BotUserIDer interface {
	BotUserID() string
}

// BotHandler is an optional interface for adapters that learn the bot's
// username from the platform (Telegram getMe).
type BotHandler interface {
	BotHandle() string
}

// Typer is an optional interface for adapters that can show a typing
// indicator while a reply is being prepared.
type Typer interface {
	SendTyping(ctx context.Context, channelID, threadID string) error
}

// WebhookProvider is an optional interface for adapters that receive
// updates over HTTP. The returned handler is mounted on the dashboard
// server at Path.
type WebhookProvider interface {
	WebhookPath() string
	WebhookHandler() http.Handler
}

// MapsURL links to the pin on a web map, for platforms without native
// location messages.
func (l Location) MapsURL() string {
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", l.Latitude, l.Longitude)
}

// PlainText flattens msg for text-only platforms: the text, each event
// rendered with EventText, and the map link when a location is attached.
func (m OutboundMessage) PlainText() string {
	parts := make([]string, 0, len(m.Events)+2)
	if m.Text != "" {
		parts = append(parts, m.Text)
	}
	for _, ev := range m.Events {
		parts = append(parts, EventText(ev))
	}
	if m.Location != nil {
		parts = append(parts, "📍 "+m.Location.MapsURL())
	}
	return strings.Join(parts, "\n\n")
}

// ChunkText splits text into pieces of at most limit runes, preferring
// line breaks.
func ChunkText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
