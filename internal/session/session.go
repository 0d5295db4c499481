// Package session holds per-conversation dialogue state and the stores that
// keep it. Every read-modify-write of a session goes through Store.Update,
// which serializes turns for the same conversation.
package session

import (
	"context"
	"fmt"
	"time"
)

// Stage is one step of the lead-capture dialogue, or Idle.
type Stage int

const (
	Idle Stage = iota
	CollectingProject
	CollectingName
	CollectingPhone
	CollectingEmail
)

// Field names captured by the collecting stages.
const (
	FieldProject = "project"
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldEmail   = "email"
)

// String returns the stage name used in logs and persisted rows.
func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case CollectingProject:
		return "collecting_project"
	case CollectingName:
		return "collecting_name"
	case CollectingPhone:
		return "collecting_phone"
	case CollectingEmail:
		return "collecting_email"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ParseStage is the inverse of Stage.String.
func ParseStage(s string) (Stage, error) {
	switch s {
	case "idle", "":
		return Idle, nil
	case "collecting_project":
		return CollectingProject, nil
	case "collecting_name":
		return CollectingName, nil
	case "collecting_phone":
		return CollectingPhone, nil
	case "collecting_email":
		return CollectingEmail, nil
	default:
		return Idle, fmt.Errorf("session: unknown stage %q", s)
	}
}

// Collecting reports whether the stage is one of the four collecting stages.
func (s Stage) Collecting() bool {
	return s >= CollectingProject && s <= CollectingEmail
}

// Field returns the field a collecting stage captures, or "" for Idle.
func (s Stage) Field() string {
	switch s {
	case CollectingProject:
		return FieldProject
	case CollectingName:
		return FieldName
	case CollectingPhone:
		return FieldPhone
	case CollectingEmail:
		return FieldEmail
	default:
		return ""
	}
}

// Next returns the stage after s. CollectingEmail and Idle both lead to Idle.
func (s Stage) Next() Stage {
	switch s {
	case CollectingProject:
		return CollectingName
	case CollectingName:
		return CollectingPhone
	case CollectingPhone:
		return CollectingEmail
	default:
		return Idle
	}
}

// Identity addresses one conversation: a chat plus an optional sub-thread.
type Identity struct {
	ChatID   string
	ThreadID string
}

// Key returns the map key for the identity. The chat ID is length-prefixed
// so IDs containing the separator cannot collide with a thread.
func (id Identity) Key() string {
	return fmt.Sprintf("%d:%s:%s", len(id.ChatID), id.ChatID, id.ThreadID)
}

// Valid reports whether the identity names a chat.
func (id Identity) Valid() bool {
	return id.ChatID != ""
}

// Session is the mutable dialogue state of one conversation.
type Session struct {
	Identity     Identity
	Stage        Stage
	Fields       map[string]string
	MessageCount int
	LastSeen     time.Time
}

// New returns an Idle session for id.
func New(id Identity) *Session {
	return &Session{Identity: id, Stage: Idle, Fields: map[string]string{}}
}

// Reset returns the session to Idle and clears captured fields together.
func (s *Session) Reset() {
	s.Stage = Idle
	s.Fields = map[string]string{}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() Session {
	c := *s
	c.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	return c
}

// Store keeps sessions keyed by Identity.
type Store interface {
	// Update runs fn against the session for id while holding that
	// identity's lock. The session is created Idle if it does not exist.
	// Changes made by fn are kept only when fn returns nil.
	Update(ctx context.Context, id Identity, fn func(s *Session) error) error

	// Get returns a copy of the session for id, if one exists.
	Get(ctx context.Context, id Identity) (Session, bool, error)

	// List returns copies of all sessions.
	List(ctx context.Context) ([]Session, error)

	// ExpireIdle resets collecting sessions not seen since cutoff and
	// returns how many were reset.
	ExpireIdle(ctx context.Context, cutoff time.Time) (int, error)
}
