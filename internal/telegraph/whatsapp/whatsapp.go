// Package whatsapp implements the telegraph Adapter for WhatsApp through
// Twilio: replies go out with the Messages API and inbound messages arrive
// on a webhook.
package whatsapp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/zulandar/leadbot/internal/telegraph"
)

const (
	// prefix marks WhatsApp addresses in Twilio's API.
	prefix = "whatsapp:"
	// maxBodyRunes is Twilio's per-message body limit.
	maxBodyRunes = 1600
	// signatureHeader carries Twilio's request signature.
	signatureHeader = "X-Twilio-Signature"
	// emptyTwiML acknowledges a webhook without an automatic reply.
	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// messageCreator is the slice of the Twilio API we use, enabling test mocks.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// signatureValidator checks X-Twilio-Signature.
type signatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// Adapter implements telegraph.Adapter for WhatsApp via Twilio.
type Adapter struct {
	api         messageCreator
	validator   signatureValidator
	accountSID  string
	authToken   string
	from        string
	webhookURL  string
	webhookPath string
	channelID   string
	mu          sync.Mutex
	connected   bool
	listening   bool
	closed      bool
	inbound     chan telegraph.InboundMessage
	now         func() time.Time
}

// AdapterOpts holds parameters for creating a WhatsApp Adapter.
type AdapterOpts struct {
	AccountSID  string // Twilio account SID
	AuthToken   string // Twilio auth token (also signs webhooks)
	From        string // sender, e.g. "whatsapp:+14155238886"
	WebhookPath string // path the webhook handler is mounted on
	WebhookURL  string // public webhook URL; enables signature checks
	ChannelID   string // default recipient (the leads number)
	// For testing: inject a mock instead of the Twilio REST client.
	API messageCreator
}

// New creates a WhatsApp Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.API == nil && (opts.AccountSID == "" || opts.AuthToken == "") {
		return nil, fmt.Errorf("whatsapp: account sid and auth token are required")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("whatsapp: sender number is required")
	}
	path := opts.WebhookPath
	if path == "" {
		path = "/webhook/whatsapp"
	}
	a := &Adapter{
		api:         opts.API,
		accountSID:  opts.AccountSID,
		authToken:   opts.AuthToken,
		from:        address(opts.From),
		webhookURL:  opts.WebhookURL,
		webhookPath: path,
		channelID:   opts.ChannelID,
		inbound:     make(chan telegraph.InboundMessage, 100),
		now:         time.Now,
	}
	if opts.WebhookURL != "" && opts.AuthToken != "" {
		v := twclient.NewRequestValidator(opts.AuthToken)
		a.validator = &v
	}
	return a, nil
}

// Connect creates the Twilio REST client.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("whatsapp: adapter already closed")
	}
	if a.api == nil {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: a.accountSID,
			Password: a.authToken,
		})
		a.api = client.Api
	}
	a.connected = true
	return nil
}

// Listen returns the inbound channel fed by WebhookHandler.
func (a *Adapter) Listen(ctx context.Context) (<-chan telegraph.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("whatsapp: not connected")
	}
	a.listening = true
	return a.inbound, nil
}

// Send delivers msg as one or more WhatsApp messages. A location rides on
// the last message as a geo persistent action.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("whatsapp: not connected")
	}
	a.mu.Unlock()

	to := msg.ChannelID
	if to == "" {
		to = a.channelID
	}
	if to == "" {
		return fmt.Errorf("whatsapp: no recipient specified")
	}

	chunks := telegraph.ChunkText(telegraph.OutboundMessage{Text: msg.Text, Events: msg.Events}.PlainText(), maxBodyRunes)
	if loc := msg.Location; loc != nil {
		label := "📍 " + loc.MapsURL()
		if l := locationLabel(loc); l != "" {
			label = "📍 " + l + "\n" + loc.MapsURL()
		}
		if len(chunks) == 0 {
			chunks = []string{label}
		} else {
			chunks[len(chunks)-1] += "\n\n" + label
		}
	}

	for i, body := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		params := &twilioApi.CreateMessageParams{}
		params.SetFrom(a.from)
		params.SetTo(address(to))
		params.SetBody(body)
		if msg.Location != nil && i == len(chunks)-1 {
			params.SetPersistentAction([]string{geoAction(msg.Location)})
		}
		if _, err := a.api.CreateMessage(params); err != nil {
			return fmt.Errorf("whatsapp: create message: %w", err)
		}
	}
	return nil
}

// Close closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	a.listening = false
	close(a.inbound)
	return nil
}

// WebhookPath is where WebhookHandler should be mounted.
func (a *Adapter) WebhookPath() string {
	return a.webhookPath
}

// WebhookHandler accepts Twilio's inbound-message form posts.
func (a *Adapter) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if a.validator != nil {
			params := make(map[string]string, len(r.PostForm))
			for k := range r.PostForm {
				params[k] = r.PostForm.Get(k)
			}
			if !a.validator.Validate(a.webhookURL, params, r.Header.Get(signatureHeader)) {
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
		}

		msg, ok := a.toInbound(r.PostForm.Get("From"), r.PostForm.Get("WaId"), r.PostForm.Get("ProfileName"), r.PostForm.Get("Body"), r.PostForm.Get("MessageSid"))
		if ok && !a.tryEmit(msg) {
			log.Printf("whatsapp: inbound queue unavailable, dropping message %s", msg.MessageID)
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, emptyTwiML)
	})
}

// tryEmit queues msg without blocking.
func (a *Adapter) tryEmit(msg telegraph.InboundMessage) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || !a.listening {
		return false
	}
	select {
	case a.inbound <- msg:
		return true
	default:
		return false
	}
}

// toInbound builds an InboundMessage from the webhook fields. WhatsApp
// conversations through Twilio are always one-to-one.
func (a *Adapter) toInbound(from, waID, profileName, body, sid string) (telegraph.InboundMessage, bool) {
	if from == "" || strings.TrimSpace(body) == "" {
		return telegraph.InboundMessage{}, false
	}
	userID := waID
	if userID == "" {
		userID = strings.TrimPrefix(strings.TrimPrefix(from, prefix), "+")
	}
	first := ""
	if f := strings.Fields(profileName); len(f) > 0 {
		first = f[0]
	}
	name := profileName
	if name == "" {
		name = userID
	}
	return telegraph.InboundMessage{
		Platform:  "whatsapp",
		ChannelID: from,
		MessageID: sid,
		ChatKind:  telegraph.ChatPrivate,
		UserID:    userID,
		UserName:  name,
		FirstName: first,
		Text:      body,
		Timestamp: a.now(),
	}, true
}

// address adds the whatsapp: scheme when missing.
func address(to string) string {
	if strings.HasPrefix(to, prefix) {
		return to
	}
	return prefix + to
}

func geoAction(loc *telegraph.Location) string {
	action := fmt.Sprintf("geo:%.6f,%.6f", loc.Latitude, loc.Longitude)
	if label := locationLabel(loc); label != "" {
		action += "|" + label
	}
	return action
}

func locationLabel(loc *telegraph.Location) string {
	switch {
	case loc.Title != "" && loc.Address != "":
		return loc.Title + ", " + loc.Address
	case loc.Address != "":
		return loc.Address
	}
	return loc.Title
}
