package telegraph

import (
	"fmt"
	"time"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/lead"
	"github.com/zulandar/leadbot/internal/session"
)

// Reply is the content produced for one turn, before composition.
type Reply struct {
	Text     string
	Location *Location
	InFlow   bool // a lead-dialogue prompt; no call-to-action is appended
}

// CommandInput carries the per-message data a command may use.
type CommandInput struct {
	FirstName string
	Language  lang.Language
	Now       time.Time
}

type commandFunc func(ch *CommandHandler, s *session.Session, in CommandInput) Reply

// commands is the closed set of recognised command names.
var commands = map[string]commandFunc{
	"start":    (*CommandHandler).cmdStart,
	"help":     (*CommandHandler).cmdHelp,
	"info":     (*CommandHandler).cmdInfo,
	"services": (*CommandHandler).cmdServices,
	"order":    (*CommandHandler).cmdOrder,
	"hours":    (*CommandHandler).cmdHours,
	"location": (*CommandHandler).cmdLocation,
	"contact":  (*CommandHandler).cmdContact,
	"cancel":   (*CommandHandler).cmdCancel,
}

// CommandHandler executes bot commands. Commands are local computations
// and run while the caller holds the conversation lock; /order and /cancel
// mutate the session they are given.
type CommandHandler struct {
	profile Profile
	hours   BusinessHours
}

// CommandHandlerOpts holds parameters for creating a CommandHandler.
type CommandHandlerOpts struct {
	Profile *Profile       // defaults to DefaultProfile()
	Hours   *BusinessHours // defaults to DefaultBusinessHours()
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(opts CommandHandlerOpts) (*CommandHandler, error) {
	p := DefaultProfile()
	if opts.Profile != nil {
		p = *opts.Profile
	}
	if p.Name == "" {
		return nil, fmt.Errorf("telegraph: command handler: profile name is required")
	}
	h := DefaultBusinessHours()
	if opts.Hours != nil {
		h = *opts.Hours
	}
	if h.Close <= h.Open {
		return nil, fmt.Errorf("telegraph: command handler: business hours close must be after open")
	}
	return &CommandHandler{profile: p, hours: h}, nil
}

// Execute runs the named command. Unknown names get the unknown-command
// notice.
func (ch *CommandHandler) Execute(name string, s *session.Session, in CommandInput) Reply {
	fn, ok := commands[name]
	if !ok {
		return Reply{Text: unknownCommandText(name, in.Language)}
	}
	return fn(ch, s, in)
}

// Hours returns the configured schedule.
func (ch *CommandHandler) Hours() BusinessHours { return ch.hours }

// Profile returns the configured company profile.
func (ch *CommandHandler) Profile() Profile { return ch.profile }

func (ch *CommandHandler) cmdStart(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: startText(ch.profile, in.FirstName, in.Language)}
}

func (ch *CommandHandler) cmdHelp(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: helpText(in.Language)}
}

func (ch *CommandHandler) cmdInfo(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: infoText(ch.profile, in.Language)}
}

func (ch *CommandHandler) cmdServices(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: servicesText(in.Language)}
}

func (ch *CommandHandler) cmdOrder(s *session.Session, in CommandInput) Reply {
	step := lead.Start(s, in.Language)
	return Reply{Text: step.Prompt, InFlow: true}
}

func (ch *CommandHandler) cmdHours(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: ch.hours.StatusText(in.Now, in.Language)}
}

func (ch *CommandHandler) cmdLocation(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: locationText(ch.profile, in.Language), Location: ch.profile.Location()}
}

func (ch *CommandHandler) cmdContact(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: contactText(ch.profile, in.Language)}
}

// cmdCancel only runs while Idle: a collecting session routes "/cancel" to
// the lead dialogue, which treats it as a cancel keyword.
func (ch *CommandHandler) cmdCancel(_ *session.Session, in CommandInput) Reply {
	return Reply{Text: nothingToCancelText(in.Language)}
}

// topical builds the reply for a topical keyword match.
func (ch *CommandHandler) topical(t Topic, s *session.Session, in CommandInput) Reply {
	switch t {
	case TopicOrder:
		return ch.cmdOrder(s, in)
	case TopicLocation:
		return ch.cmdLocation(s, in)
	default:
		return ch.cmdServices(s, in)
	}
}
