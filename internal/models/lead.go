// Package models defines the GORM models persisted by leadbot.
package models

import "time"

// Lead is a completed capture dialogue forwarded to the operations channel.
type Lead struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Platform    string    `gorm:"size:16;not null;index"`
	ChatID      string    `gorm:"size:128;not null;index"`
	ThreadID    string    `gorm:"size:128"`
	UserID      string    `gorm:"size:128;not null"`
	UserHandle  string    `gorm:"size:128"`
	FirstName   string    `gorm:"size:128"`
	LastName    string    `gorm:"size:128"`
	Language    string    `gorm:"size:8;default:uz"`
	Project     string    `gorm:"type:text"`
	Name        string    `gorm:"size:256"`
	Phone       string    `gorm:"size:64"`
	Email       string    `gorm:"size:256"`
	Delivered   bool      `gorm:"default:false;index"`
	DeliveryErr string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"`
}
