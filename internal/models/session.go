package models

import "time"

// ConversationState is the durable form of a bot session, one row per
// conversation identity.
type ConversationState struct {
	Key          string    `gorm:"column:conv_key;primaryKey;size:160"`
	ChatID       string    `gorm:"size:128;not null;index"`
	ThreadID     string    `gorm:"size:128"`
	Stage        string    `gorm:"size:32;not null;default:idle;index"`
	Fields       string    `gorm:"type:text"` // JSON object of captured fields
	MessageCount int       `gorm:"not null;default:0"`
	LastSeen     time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// TableName pins the table name.
func (ConversationState) TableName() string {
	return "conversation_states"
}
