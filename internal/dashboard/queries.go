package dashboard

import (
	"fmt"
	"time"

	"github.com/zulandar/leadbot/internal/models"
	"github.com/zulandar/leadbot/internal/session"
	"gorm.io/gorm"
)

// CountRow is one group of a grouped count.
type CountRow struct {
	Key   string `json:"key" gorm:"column:grp"`
	Count int64  `json:"count" gorm:"column:n"`
}

// Stats summarises captured leads and open dialogues.
type Stats struct {
	Total           int64      `json:"total"`
	Today           int64      `json:"today"`
	Last7Days       int64      `json:"last_7_days"`
	Delivered       int64      `json:"delivered"`
	Undelivered     int64      `json:"undelivered"`
	ActiveDialogues int64      `json:"active_dialogues"`
	ByPlatform      []CountRow `json:"by_platform"`
	ByLanguage      []CountRow `json:"by_language"`
}

// LeadStats computes Stats as of now. "Today" starts at midnight in now's
// location.
func LeadStats(db *gorm.DB, now time.Time) (*Stats, error) {
	s := &Stats{}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	counts := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&s.Total, "1 = 1", nil},
		{&s.Today, "created_at >= ?", []interface{}{midnight}},
		{&s.Last7Days, "created_at >= ?", []interface{}{now.Add(-7 * 24 * time.Hour)}},
		{&s.Delivered, "delivered = ?", []interface{}{true}},
		{&s.Undelivered, "delivered = ?", []interface{}{false}},
	}
	for _, q := range counts {
		if err := db.Model(&models.Lead{}).Where(q.where, q.args...).Count(q.dst).Error; err != nil {
			return nil, fmt.Errorf("dashboard: count leads: %w", err)
		}
	}

	if db.Migrator().HasTable(&models.ConversationState{}) {
		if err := db.Model(&models.ConversationState{}).
			Where("stage <> ?", session.Idle.String()).
			Count(&s.ActiveDialogues).Error; err != nil {
			return nil, fmt.Errorf("dashboard: count dialogues: %w", err)
		}
	}

	var err error
	if s.ByPlatform, err = groupCount(db, "platform"); err != nil {
		return nil, err
	}
	if s.ByLanguage, err = groupCount(db, "language"); err != nil {
		return nil, err
	}
	return s, nil
}

// groupCount counts leads per distinct value of column, largest first.
func groupCount(db *gorm.DB, column string) ([]CountRow, error) {
	rows := []CountRow{}
	if err := db.Model(&models.Lead{}).
		Select(column + " AS grp, COUNT(*) AS n").
		Group(column).
		Order("n DESC, grp ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("dashboard: group leads by %s: %w", column, err)
	}
	return rows, nil
}
