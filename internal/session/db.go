package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/leadbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore persists sessions in the conversation_states table. Turns for the
// same identity are serialized in-process and each turn runs in one
// transaction, so a crash never leaves half a transition on disk.
type DBStore struct {
	db    *gorm.DB
	locks *keyLocker
}

// NewDBStore creates a DBStore. The table must already be migrated.
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: db is required")
	}
	return &DBStore{db: db, locks: newKeyLocker()}, nil
}

// Update implements Store.
func (d *DBStore) Update(ctx context.Context, id Identity, fn func(s *Session) error) error {
	key := id.Key()
	unlock := d.locks.Lock(key)
	defer unlock()

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.ConversationState
		err := tx.Where("conv_key = ?", key).First(&row).Error
		var s *Session
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			s = New(id)
		case err != nil:
			return fmt.Errorf("session: load %s: %w", key, err)
		default:
			s, err = fromRow(row)
			if err != nil {
				return err
			}
		}

		if err := fn(s); err != nil {
			return err
		}

		next, err := toRow(s)
		if err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conv_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage", "fields", "message_count", "last_seen", "updated_at"}),
		}).Create(&next).Error; err != nil {
			return fmt.Errorf("session: save %s: %w", key, err)
		}
		return nil
	})
}

// Get implements Store.
func (d *DBStore) Get(ctx context.Context, id Identity) (Session, bool, error) {
	var row models.ConversationState
	err := d.db.WithContext(ctx).Where("conv_key = ?", id.Key()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("session: get %s: %w", id.Key(), err)
	}
	s, err := fromRow(row)
	if err != nil {
		return Session{}, false, err
	}
	return *s, true, nil
}

// List implements Store.
func (d *DBStore) List(ctx context.Context) ([]Session, error) {
	var rows []models.ConversationState
	if err := d.db.WithContext(ctx).Order("conv_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	out := make([]Session, 0, len(rows))
	for _, row := range rows {
		s, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// ExpireIdle implements Store.
func (d *DBStore) ExpireIdle(ctx context.Context, cutoff time.Time) (int, error) {
	var rows []models.ConversationState
	if err := d.db.WithContext(ctx).
		Where("stage <> ? AND last_seen < ?", Idle.String(), cutoff).
		Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("session: find stale: %w", err)
	}

	n := 0
	for _, row := range rows {
		id := Identity{ChatID: row.ChatID, ThreadID: row.ThreadID}
		err := d.Update(ctx, id, func(s *Session) error {
			if s.Stage.Collecting() && s.LastSeen.Before(cutoff) {
				s.Reset()
				n++
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func fromRow(row models.ConversationState) (*Session, error) {
	stage, err := ParseStage(row.Stage)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if row.Fields != "" {
		if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
			return nil, fmt.Errorf("session: decode fields for %s: %w", row.Key, err)
		}
	}
	return &Session{
		Identity:     Identity{ChatID: row.ChatID, ThreadID: row.ThreadID},
		Stage:        stage,
		Fields:       fields,
		MessageCount: row.MessageCount,
		LastSeen:     row.LastSeen,
	}, nil
}

func toRow(s *Session) (models.ConversationState, error) {
	fields := s.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return models.ConversationState{}, fmt.Errorf("session: encode fields: %w", err)
	}
	return models.ConversationState{
		Key:          s.Identity.Key(),
		ChatID:       s.Identity.ChatID,
		ThreadID:     s.Identity.ThreadID,
		Stage:        s.Stage.String(),
		Fields:       string(raw),
		MessageCount: s.MessageCount,
		LastSeen:     s.LastSeen,
		UpdatedAt:    time.Now(),
	}, nil
}
