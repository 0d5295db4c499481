package models

import "time"

// InstanceLock records which process is serving a bot identity. Two
// processes polling the same Telegram token steal each other's updates, so
// only the holder with a fresh heartbeat may run.
type InstanceLock struct {
	Key           string    `gorm:"primaryKey;size:160"`
	Holder        string    `gorm:"size:160;not null"`
	AcquiredAt    time.Time `gorm:"not null"`
	LastHeartbeat time.Time `gorm:"not null;index"`
}
