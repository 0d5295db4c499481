// Package telegram implements the telegraph Adapter for the Telegram Bot API,
// receiving updates by long polling or through a webhook.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/zulandar/leadbot/internal/telegraph"
)

// Receive modes.
const (
	ModePoll    = "poll"
	ModeWebhook = "webhook"
)

const (
	// maxRetries bounds flood-control retries per API call.
	maxRetries = 3
	// maxMessageRunes keeps chunks under Telegram's 4096-character limit.
	maxMessageRunes = 4000
	// baseBackoff is the initial wait after a failed poll.
	baseBackoff = time.Second
	// maxBackoff caps the wait between failed polls.
	maxBackoff = 30 * time.Second
	// defaultAPIBase is the public Bot API endpoint.
	defaultAPIBase = "https://api.telegram.org"
	// secretHeader carries the webhook secret token.
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Adapter implements telegraph.Adapter for Telegram.
type Adapter struct {
	api         *botAPI
	mode        string
	webhookURL  string
	webhookPath string
	secret      string
	pollTimeout time.Duration
	channelID   string // default chat for messages without explicit channel
	botUserID   string
	botHandle   string
	mu          sync.Mutex
	connected   bool
	listening   bool
	closed      bool
	inbound     chan telegraph.InboundMessage
	cancelFunc  context.CancelFunc
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	Token         string        // bot token from @BotFather
	APIBase       string        // Bot API base URL (default https://api.telegram.org)
	Mode          string        // ModePoll (default) or ModeWebhook
	WebhookURL    string        // public URL registered with setWebhook
	WebhookPath   string        // path the webhook handler is mounted on
	WebhookSecret string        // optional secret_token checked on every delivery
	PollTimeout   time.Duration // long-poll timeout (default 30s)
	ChannelID     string        // default chat to post to (the leads chat)
	HTTPClient    *http.Client  // optional; tests inject httptest clients
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModePoll
	}
	switch mode {
	case ModePoll:
	case ModeWebhook:
		if opts.WebhookURL == "" {
			return nil, fmt.Errorf("telegram: webhook url is required in webhook mode")
		}
	default:
		return nil, fmt.Errorf("telegram: unknown mode %q", mode)
	}
	base := opts.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	path := opts.WebhookPath
	if path == "" {
		path = "/webhook/telegram"
	}

	return &Adapter{
		api:         newBotAPI(opts.HTTPClient, base, opts.Token),
		mode:        mode,
		webhookURL:  opts.WebhookURL,
		webhookPath: path,
		secret:      opts.WebhookSecret,
		pollTimeout: timeout,
		channelID:   opts.ChannelID,
		inbound:     make(chan telegraph.InboundMessage, 100),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}, nil
}

// Connect identifies the bot with getMe. It does not touch the webhook, so
// a process that fails to take the instance lock leaves the live one alone.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}

	me, err := a.api.getMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: get me: %w", err)
	}
	a.botUserID = strconv.FormatInt(me.ID, 10)
	a.botHandle = me.Username

	log.Printf("telegram: connected as @%s (ID: %s, mode %s)", a.botHandle, a.botUserID, a.mode)
	a.connected = true
	return nil
}

// Listen registers the webhook (webhook mode) or removes it and starts the
// long-poll loop (poll mode), then returns the inbound channel.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("telegram: not connected")
	}
	if a.mode == ModeWebhook {
		if err := a.api.setWebhook(ctx, a.webhookURL, a.secret); err != nil {
			return nil, fmt.Errorf("telegram: set webhook: %w", err)
		}
	} else if err := a.api.deleteWebhook(ctx); err != nil {
		return nil, fmt.Errorf("telegram: delete webhook: %w", err)
	}
	listenCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel
	a.listening = true

	if a.mode == ModePoll {
		go a.pollLoop(listenCtx)
	}
	return a.inbound, nil
}

// Send posts msg.Text (plus any events rendered as text) in chunks, then the
// location as a venue or pin.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("telegram: not connected")
	}
	a.mu.Unlock()

	chatID := msg.ChannelID
	if chatID == "" {
		chatID = a.channelID
	}
	if chatID == "" {
		return fmt.Errorf("telegram: no chat specified")
	}
	threadID, err := parseThreadID(msg.ThreadID)
	if err != nil {
		return err
	}

	text := telegraph.OutboundMessage{Text: msg.Text, Events: msg.Events}.PlainText()
	for _, chunk := range telegraph.ChunkText(text, maxMessageRunes) {
		req := sendMessageRequest{ChatID: chatID, MessageThreadID: threadID, Text: chunk, DisableWebPagePreview: true}
		if err := a.retry(ctx, func() error { return a.api.sendMessage(ctx, req) }); err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}

	if loc := msg.Location; loc != nil {
		var send func() error
		if loc.Title != "" && loc.Address != "" {
			req := sendVenueRequest{ChatID: chatID, MessageThreadID: threadID, Latitude: loc.Latitude, Longitude: loc.Longitude, Title: loc.Title, Address: loc.Address}
			send = func() error { return a.api.sendVenue(ctx, req) }
		} else {
			req := sendLocationRequest{ChatID: chatID, MessageThreadID: threadID, Latitude: loc.Latitude, Longitude: loc.Longitude}
			send = func() error { return a.api.sendLocation(ctx, req) }
		}
		if err := a.retry(ctx, send); err != nil {
			return fmt.Errorf("telegram: send location: %w", err)
		}
	}
	return nil
}

// SendTyping shows "typing..." in the chat (and topic).
func (a *Adapter) SendTyping(ctx context.Context, channelID, threadID string) error {
	tid, err := parseThreadID(threadID)
	if err != nil {
		return err
	}
	if err := a.api.sendChatAction(ctx, sendChatActionRequest{ChatID: channelID, MessageThreadID: tid, Action: "typing"}); err != nil {
		return fmt.Errorf("telegram: typing: %w", err)
	}
	return nil
}

// Close stops polling and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	a.listening = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	close(a.inbound)
	return nil
}

// BotUserID returns the bot's numeric user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// BotHandle returns the bot's username without "@" (available after Connect).
func (a *Adapter) BotHandle() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botHandle
}

// WebhookPath is where WebhookHandler should be mounted.
func (a *Adapter) WebhookPath() string {
	return a.webhookPath
}

// WebhookHandler accepts update deliveries from Telegram.
func (a *Adapter) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if a.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(a.secret)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var u update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		a.handleUpdate(r.Context(), u)
		w.WriteHeader(http.StatusOK)
	})
}

// pollLoop long-polls getUpdates until ctx is cancelled, backing off
// exponentially on errors.
func (a *Adapter) pollLoop(ctx context.Context) {
	var offset int64
	wait := a.baseBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		updates, next, err := a.api.getUpdates(ctx, offset, a.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isPollTimeout(err) {
				continue
			}
			delay := retryAfter(err)
			if delay == 0 {
				delay = wait
				wait *= 2
				if wait > a.maxBackoff {
					wait = a.maxBackoff
				}
			}
			log.Printf("telegram: get updates: %v (retrying in %v)", err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		wait = a.baseBackoff
		offset = next
		for _, u := range updates {
			a.handleUpdate(ctx, u)
		}
	}
}

// handleUpdate converts and queues one update. It waits for room in the
// inbound queue until ctx ends.
func (a *Adapter) handleUpdate(ctx context.Context, u update) {
	msg, ok := a.toInbound(u.Message)
	if !ok {
		return
	}
	for {
		queued, full := a.tryEmit(msg)
		if queued || !full {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// tryEmit queues msg without blocking. full reports a saturated queue.
func (a *Adapter) tryEmit(msg telegraph.InboundMessage) (queued, full bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || !a.listening {
		return false, false
	}
	select {
	case a.inbound <- msg:
		return true, false
	default:
		return false, true
	}
}

// toInbound converts a Bot API message. Service messages, bots and
// non-text messages are dropped.
func (a *Adapter) toInbound(m *message) (telegraph.InboundMessage, bool) {
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return telegraph.InboundMessage{}, false
	}
	a.mu.Lock()
	botID, handle := a.botUserID, a.botHandle
	a.mu.Unlock()

	fromID := strconv.FormatInt(m.From.ID, 10)
	if fromID == botID || m.From.IsBot {
		return telegraph.InboundMessage{}, false
	}

	kind := telegraph.ChatGroup
	if m.Chat.Type == "private" {
		kind = telegraph.ChatPrivate
	}

	threadID := ""
	if m.IsTopicMessage && m.MessageThreadID != 0 {
		threadID = strconv.FormatInt(m.MessageThreadID, 10)
	}

	// In forum topics an unreplied message points at the topic's creation
	// service message; that is not a reply to anyone.
	var replyTo *telegraph.ReplyRef
	if r := m.ReplyTo; r != nil && r.From != nil && r.ForumTopicCreated == nil {
		replyTo = &telegraph.ReplyRef{UserID: strconv.FormatInt(r.From.ID, 10), IsBot: r.From.IsBot}
	}

	return telegraph.InboundMessage{
		Platform:  "telegram",
		ChannelID: strconv.FormatInt(m.Chat.ID, 10),
		ThreadID:  threadID,
		MessageID: strconv.FormatInt(m.MessageID, 10),
		ChatKind:  kind,
		UserID:    fromID,
		UserName:  displayName(m.From),
		Handle:    m.From.Username,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
		Text:      m.Text,
		Mentioned: mentionsBot(m, botID, handle),
		ReplyTo:   replyTo,
		Timestamp: time.Unix(m.Date, 0),
	}, true
}

// mentionsBot reports whether an entity addresses the bot: an @mention,
// a text_mention of its user, or a /command@bot.
func mentionsBot(m *message, botID, handle string) bool {
	for _, e := range m.Entities {
		switch e.Type {
		case "mention":
			if handle != "" && strings.EqualFold(entityText(m.Text, e), "@"+handle) {
				return true
			}
		case "text_mention":
			if e.User != nil && strconv.FormatInt(e.User.ID, 10) == botID {
				return true
			}
		case "bot_command":
			if _, target, ok := strings.Cut(entityText(m.Text, e), "@"); ok && handle != "" && strings.EqualFold(target, handle) {
				return true
			}
		}
	}
	return false
}

// entityText slices text by an entity's UTF-16 offset and length.
func entityText(text string, e entity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

// retry runs fn, honouring Telegram's retry_after on flood control.
func (a *Adapter) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		wait := retryAfter(err)
		if wait == 0 || attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func parseThreadID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid thread id %q", s)
	}
	return id, nil
}
