package messaging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/zulandar/leadbot/internal/lead"
	"github.com/zulandar/leadbot/internal/telegraph"
	"gorm.io/gorm"
)

// Sink implements telegraph.LeadSink: it stores each lead, posts it to the
// operations channel and runs the notify hook.
type Sink struct {
	db        *gorm.DB
	adapter   telegraph.Adapter
	channelID string
	topicID   string
	rich      bool
	notify    NotifyConfig
	out       io.Writer
}

// SinkOpts holds parameters for creating a Sink.
type SinkOpts struct {
	DB        *gorm.DB          // optional; leads are persisted when set
	Adapter   telegraph.Adapter // required
	ChannelID string            // operations channel (required)
	TopicID   string            // optional topic / thread in the channel
	// RichEvents sends the lead as a structured event (Slack attachment,
	// Discord embed) instead of formatted text.
	RichEvents bool
	Notify     NotifyConfig
	Out        io.Writer // defaults to os.Stdout
}

// NewSink creates a Sink.
func NewSink(opts SinkOpts) (*Sink, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("messaging: adapter is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("messaging: leads channel is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Sink{
		db:        opts.DB,
		adapter:   opts.Adapter,
		channelID: opts.ChannelID,
		topicID:   opts.TopicID,
		rich:      opts.RichEvents,
		notify:    opts.Notify,
		out:       out,
	}, nil
}

// Deliver implements telegraph.LeadSink. The lead is stored before it is
// sent, so a failed notification still leaves a record marked undelivered.
func (s *Sink) Deliver(ctx context.Context, l lead.Lead) error {
	if s.db != nil {
		if _, err := Save(s.db, l); err != nil {
			log.Printf("messaging: %v", err)
		}
	}

	sendErr := s.adapter.Send(ctx, s.message(l))

	if s.db != nil {
		if err := MarkDelivered(s.db, l.ID, sendErr); err != nil {
			log.Printf("messaging: %v", err)
		}
	}
	if sendErr != nil {
		return fmt.Errorf("messaging: deliver lead %s: %w", l.ID, sendErr)
	}

	fmt.Fprintf(s.out, "messaging: lead %s delivered to %s\n", l.ID, s.channelID)
	Notify(ctx, l, s.notify)
	return nil
}

// Resend retries delivery for leads whose notification failed. It returns
// how many were delivered.
func (s *Sink) Resend(ctx context.Context, limit int) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("messaging: resend needs a database")
	}
	rows, err := ListLeads(s.db, ListOpts{Limit: limit, Undelivered: true})
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, row := range rows {
		sendErr := s.adapter.Send(ctx, s.message(FromModel(row)))
		if err := MarkDelivered(s.db, row.ID, sendErr); err != nil {
			log.Printf("messaging: %v", err)
		}
		if sendErr != nil {
			log.Printf("messaging: resend lead %s: %v", row.ID, sendErr)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Sink) message(l lead.Lead) telegraph.OutboundMessage {
	msg := telegraph.OutboundMessage{ChannelID: s.channelID, ThreadID: s.topicID}
	if s.rich {
		msg.Events = []telegraph.FormattedEvent{telegraph.FormatLeadEvent(l)}
	} else {
		msg.Text = lead.Format(l)
	}
	return msg
}
