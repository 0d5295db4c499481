// Package messaging persists completed leads and forwards them to the
// operations channel.
package messaging

import (
	"fmt"
	"time"

	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/lead"
	"github.com/zulandar/leadbot/internal/models"
	"github.com/zulandar/leadbot/internal/session"
	"gorm.io/gorm"
)

// ListOpts filters ListLeads.
type ListOpts struct {
	Limit       int    // 0 means 50
	Platform    string // empty for all
	Undelivered bool   // only leads whose notification failed
}

// ToModel converts a captured lead into its database row.
func ToModel(l lead.Lead) models.Lead {
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return models.Lead{
		ID:         l.ID,
		Platform:   l.Contact.Platform,
		ChatID:     l.Identity.ChatID,
		ThreadID:   l.Identity.ThreadID,
		UserID:     l.Contact.UserID,
		UserHandle: l.Contact.Handle,
		FirstName:  l.Contact.FirstName,
		LastName:   l.Contact.LastName,
		Language:   l.Language.String(),
		Project:    l.Project,
		Name:       l.Name,
		Phone:      l.Phone,
		Email:      l.Email,
		CreatedAt:  created,
	}
}

// FromModel rebuilds a lead from its row.
func FromModel(row models.Lead) lead.Lead {
	return lead.Lead{
		ID:       row.ID,
		Identity: session.Identity{ChatID: row.ChatID, ThreadID: row.ThreadID},
		Contact: lead.Contact{
			Platform:  row.Platform,
			UserID:    row.UserID,
			Handle:    row.UserHandle,
			FirstName: row.FirstName,
			LastName:  row.LastName,
		},
		Language:  lang.Parse(row.Language),
		Project:   row.Project,
		Name:      row.Name,
		Phone:     row.Phone,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
	}
}

// Save inserts the lead row.
func Save(db *gorm.DB, l lead.Lead) (*models.Lead, error) {
	if l.ID == "" {
		return nil, fmt.Errorf("messaging: lead id is required")
	}
	if l.Identity.ChatID == "" {
		return nil, fmt.Errorf("messaging: chat id is required")
	}
	row := ToModel(l)
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("messaging: save lead %s: %w", l.ID, err)
	}
	return &row, nil
}

// MarkDelivered records the outcome of forwarding a lead. A nil sendErr
// marks it delivered.
func MarkDelivered(db *gorm.DB, id string, sendErr error) error {
	updates := map[string]interface{}{"delivered": sendErr == nil, "delivery_err": ""}
	if sendErr != nil {
		updates["delivery_err"] = sendErr.Error()
	}
	result := db.Model(&models.Lead{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("messaging: mark lead %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("messaging: lead not found: %s", id)
	}
	return nil
}

// ListLeads returns leads newest first.
func ListLeads(db *gorm.DB, opts ListOpts) ([]models.Lead, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q := db.Order("created_at DESC").Limit(limit)
	if opts.Platform != "" {
		q = q.Where("platform = ?", opts.Platform)
	}
	if opts.Undelivered {
		q = q.Where("delivered = ?", false)
	}
	var leads []models.Lead
	if err := q.Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("messaging: list leads: %w", err)
	}
	return leads, nil
}
