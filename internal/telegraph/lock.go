package telegraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/leadbot/internal/models"
	"gorm.io/gorm"
)

// DefaultHeartbeatTimeout is the duration after which a holder's heartbeat
// is considered stale and the lock can be reclaimed.
const DefaultHeartbeatTimeout = 90 * time.Second

// heartbeatInterval keeps a live holder well inside DefaultHeartbeatTimeout.
var heartbeatInterval = 30 * time.Second

// ErrLockHeld is returned when another live process holds the lock.
var ErrLockHeld = errors.New("instance lock held by another process")

// AcquireLock claims the instance lock for key on behalf of holder. A lock
// whose heartbeat is older than timeout is taken over; re-acquiring a lock
// the holder already owns refreshes it.
func AcquireLock(db *gorm.DB, key, holder string, timeout time.Duration) error {
	if key == "" || holder == "" {
		return fmt.Errorf("telegraph: acquire lock: key and holder are required")
	}
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var existing models.InstanceLock
		result := tx.Where(&models.InstanceLock{Key: key}).First(&existing)
		switch {
		case result.Error == nil:
			if existing.Holder != holder && existing.LastHeartbeat.After(now.Add(-timeout)) {
				return fmt.Errorf("%w: %q (last seen %s)", ErrLockHeld, existing.Holder, existing.LastHeartbeat.Format(time.RFC3339))
			}
			return tx.Model(&models.InstanceLock{}).Where(&models.InstanceLock{Key: key}).
				Updates(map[string]interface{}{
					"holder":         holder,
					"acquired_at":    now,
					"last_heartbeat": now,
				}).Error
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			return tx.Create(&models.InstanceLock{
				Key:           key,
				Holder:        holder,
				AcquiredAt:    now,
				LastHeartbeat: now,
			}).Error
		default:
			return fmt.Errorf("check existing lock: %w", result.Error)
		}
	})
	if err != nil {
		return fmt.Errorf("telegraph: acquire lock: %w", err)
	}
	return nil
}

// ReleaseLock drops the lock if holder still owns it.
func ReleaseLock(db *gorm.DB, key, holder string) error {
	result := db.Where(&models.InstanceLock{Key: key, Holder: holder}).Delete(&models.InstanceLock{})
	if result.Error != nil {
		return fmt.Errorf("telegraph: release lock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("telegraph: release lock: %s not held by %s", key, holder)
	}
	return nil
}

// Heartbeat refreshes the lock. It fails once another process has taken
// the lock over.
func Heartbeat(db *gorm.DB, key, holder string) error {
	result := db.Model(&models.InstanceLock{}).
		Where(&models.InstanceLock{Key: key, Holder: holder}).
		Update("last_heartbeat", time.Now())
	if result.Error != nil {
		return fmt.Errorf("telegraph: heartbeat: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("telegraph: heartbeat: %s no longer held by %s", key, holder)
	}
	return nil
}
