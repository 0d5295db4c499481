package telegraph

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/lead"
	"github.com/zulandar/leadbot/internal/session"
)

// Default network budgets for collaborators called outside the lock.
const (
	DefaultResponderTimeout = 20 * time.Second
	DefaultDeliveryTimeout  = 15 * time.Second
)

// LeadSink receives completed leads.
type LeadSink interface {
	Deliver(ctx context.Context, l lead.Lead) error
}

// Router runs one inbound message through the gate, classifier,
// dispatcher, lead dialogue and composer, and sends the reply.
type Router struct {
	adapter          Adapter
	store            session.Store
	cmdHandler       *CommandHandler
	responder        Responder
	sink             LeadSink
	botUserID        string
	botHandle        string
	threadSessions   bool
	responderTimeout time.Duration
	deliveryTimeout  time.Duration
	now              func() time.Time
	out              io.Writer
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Adapter          Adapter
	Store            session.Store
	CmdHandler       *CommandHandler
	Responder        Responder // defaults to CannedResponder
	Sink             LeadSink  // nil: completed leads are only logged
	BotUserID        string    // self-message filtering and reply-to-bot detection
	BotHandle        string    // username without "@"
	ThreadSessions   bool      // partition sessions per sub-thread
	ResponderTimeout time.Duration
	DeliveryTimeout  time.Duration
	Now              func() time.Time // defaults to time.Now
	Out              io.Writer        // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: router: adapter is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("telegraph: router: session store is required")
	}
	if opts.CmdHandler == nil {
		return nil, fmt.Errorf("telegraph: router: command handler is required")
	}
	r := &Router{
		adapter:          opts.Adapter,
		store:            opts.Store,
		cmdHandler:       opts.CmdHandler,
		responder:        opts.Responder,
		sink:             opts.Sink,
		botUserID:        opts.BotUserID,
		botHandle:        strings.TrimPrefix(opts.BotHandle, "@"),
		threadSessions:   opts.ThreadSessions,
		responderTimeout: opts.ResponderTimeout,
		deliveryTimeout:  opts.DeliveryTimeout,
		now:              opts.Now,
		out:              opts.Out,
	}
	if r.responder == nil {
		r.responder = CannedResponder{}
	}
	if r.responderTimeout <= 0 {
		r.responderTimeout = DefaultResponderTimeout
	}
	if r.deliveryTimeout <= 0 {
		r.deliveryTimeout = DefaultDeliveryTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	return r, nil
}

// turn is the outcome of the locked part of one message.
type turn struct {
	action       Action
	reply        Reply
	messageCount int
	completed    *lead.Lead
}

// Handle processes a single inbound message. Routing paths:
//  1. Bot self-message, empty text or no chat → ignore
//  2. Group message not addressed to the bot → ignore (no session touched)
//  3. Command addressed to another bot → ignore
//  4. Everything else → dispatch under the conversation lock, then
//     responder / lead delivery outside it, then compose and send
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}
	raw := strings.TrimSpace(msg.Text)
	if raw == "" || msg.ChannelID == "" {
		return
	}
	fmt.Fprintf(r.out, "telegraph: router: recv [ch=%s thread=%s user=%s] %q\n",
		msg.ChannelID, msg.ThreadID, msg.UserName, truncate(raw, 80))

	if !ShouldProcess(msg, r.botHandle, r.botUserID) {
		fmt.Fprintf(r.out, "telegraph: router: → ignore (not addressed)\n")
		return
	}
	if addressedElsewhere(raw, r.botHandle) {
		fmt.Fprintf(r.out, "telegraph: router: → ignore (other bot)\n")
		return
	}

	text := StripHandle(platformMentionRe.ReplaceAllString(raw, ""), r.botHandle)
	if text == "" {
		// A bare mention is a greeting.
		text = "/start"
	}
	l := lang.Classify(text)
	now := r.now()

	t, err := r.advance(ctx, msg, text, l, now)
	if err != nil {
		log.Printf("telegraph: router: update session: %v", err)
		r.send(ctx, msg, Reply{Text: fallbackText(l)})
		return
	}
	fmt.Fprintf(r.out, "telegraph: router: → %s [lang=%s count=%d]\n", t.action.Kind, l, t.messageCount)

	if t.action.Kind == ActionFreeForm {
		r.typing(ctx, msg)
		t.reply.Text = r.respond(ctx, msg, text, l)
	}
	if t.completed != nil {
		r.typing(ctx, msg)
		if err := r.deliver(ctx, *t.completed); err != nil {
			log.Printf("telegraph: router: deliver lead %s: %v", t.completed.ID, err)
			t.reply.Text = lead.DeliveryFailedText(l)
		} else {
			fmt.Fprintf(r.out, "telegraph: router: lead %s delivered\n", t.completed.ID)
		}
	}

	hours := r.cmdHandler.Hours()
	composed := Compose(ComposeInput{
		Action:       t.action,
		Reply:        t.reply,
		MessageCount: t.messageCount,
		Open:         hours.IsOpen(now),
	}, hours)
	r.send(ctx, msg, Reply{Text: composed, Location: t.reply.Location})
}

// advance does the read-modify-write of the conversation's session. Only
// local computation happens while the lock is held.
func (r *Router) advance(ctx context.Context, msg InboundMessage, text string, l lang.Language, now time.Time) (turn, error) {
	var t turn
	err := r.store.Update(ctx, r.identity(msg), func(s *session.Session) error {
		s.MessageCount++
		s.LastSeen = now
		t.messageCount = s.MessageCount
		t.action = Dispatch(*s, text, l)

		in := CommandInput{FirstName: firstName(msg), Language: l, Now: now}
		switch t.action.Kind {
		case ActionContinueLead:
			step := lead.Advance(s, text, l, contactOf(msg), now)
			t.reply = Reply{Text: step.Prompt, InFlow: step.Stage.Collecting()}
			t.completed = step.Lead
		case ActionRunCommand, ActionUnknownCommand:
			t.reply = r.cmdHandler.Execute(t.action.Command, s, in)
		case ActionTopicalReply:
			t.reply = r.cmdHandler.topical(t.action.Topic, s, in)
		}
		return nil
	})
	return t, err
}

func (r *Router) respond(ctx context.Context, msg InboundMessage, text string, l lang.Language) string {
	rctx, cancel := context.WithTimeout(ctx, r.responderTimeout)
	defer cancel()
	answer, err := r.responder.Respond(rctx, ResponderRequest{
		Text:     text,
		Language: l,
		UserName: firstName(msg),
		IsGroup:  msg.IsGroup(),
	})
	if err != nil {
		log.Printf("telegraph: router: responder: %v", err)
		return fallbackText(l)
	}
	if strings.TrimSpace(answer) == "" {
		return fallbackText(l)
	}
	return answer
}

func (r *Router) deliver(ctx context.Context, ld lead.Lead) error {
	if r.sink == nil {
		fmt.Fprintf(r.out, "telegraph: router: no lead sink configured\n%s\n", lead.Format(ld))
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
	defer cancel()
	return r.sink.Deliver(dctx, ld)
}

func (r *Router) typing(ctx context.Context, msg InboundMessage) {
	ty, ok := r.adapter.(Typer)
	if !ok {
		return
	}
	if err := ty.SendTyping(ctx, msg.ChannelID, msg.ThreadID); err != nil {
		log.Printf("telegraph: router: typing: %v", err)
	}
}

func (r *Router) send(ctx context.Context, msg InboundMessage, reply Reply) {
	if err := r.adapter.Send(ctx, OutboundMessage{
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		Text:      reply.Text,
		Location:  reply.Location,
	}); err != nil {
		log.Printf("telegraph: router: send reply: %v", err)
	}
}

// identity is the session key for msg. The sub-thread partitions sessions
// only when thread sessions are enabled.
func (r *Router) identity(msg InboundMessage) session.Identity {
	id := session.Identity{ChatID: msg.ChannelID}
	if r.threadSessions {
		id.ThreadID = msg.ThreadID
	}
	return id
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// platformMentionRe matches Slack and Discord mention markup: <@ID> or <@!ID>.
var platformMentionRe = regexp.MustCompile(`<@!?[A-Za-z0-9]+>`)

func firstName(msg InboundMessage) string {
	if msg.FirstName != "" {
		return msg.FirstName
	}
	return msg.UserName
}

func contactOf(msg InboundMessage) lead.Contact {
	return lead.Contact{
		Platform:  msg.Platform,
		UserID:    msg.UserID,
		Handle:    msg.Handle,
		FirstName: firstName(msg),
		LastName:  msg.LastName,
	}
}

// truncate returns s cut to maxLen runes with "..." appended if needed.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
