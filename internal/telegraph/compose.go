package telegraph

import "strings"

// loyaltyThreshold is the message count after which replies carry the
// loyalty note.
const loyaltyThreshold = 6

// ComposeInput is everything the composer needs for one reply.
type ComposeInput struct {
	Action       Action
	Reply        Reply
	MessageCount int
	Open         bool // inside business hours
}

// Compose assembles the outbound text in a fixed order: content,
// business-hours notice, order invitation, loyalty note, call-to-action.
func Compose(in ComposeInput, hours BusinessHours) string {
	l := in.Action.Language
	parts := []string{strings.TrimSpace(in.Reply.Text)}

	conversational := in.Action.Kind == ActionTopicalReply || in.Action.Kind == ActionFreeForm
	if conversational && !in.Open && !in.Reply.InFlow {
		parts = append(parts, hours.Notice(l))
	}
	if in.Action.Kind == ActionTopicalReply && in.Action.Topic.Invites() {
		parts = append(parts, invitationText(l))
	}
	if in.MessageCount > loyaltyThreshold {
		parts = append(parts, loyaltyText(l))
	}
	if !in.Reply.InFlow {
		parts = append(parts, callToActionText(l))
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
