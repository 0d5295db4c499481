package telegraph

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/leadbot/internal/models"
	"gorm.io/gorm"
)

// DigestReport holds lead metrics for one period.
type DigestReport struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Total       int
	Delivered   int
	Failed      int
	ByPlatform  []CountBy
	ByLanguage  []CountBy
}

// CountBy is one row of a grouped count.
type CountBy struct {
	Key   string
	Count int
}

// BuildDigest queries the leads table for [since, until). Returns nil when
// no leads arrived in the period.
func BuildDigest(db *gorm.DB, since, until time.Time) (*DigestReport, error) {
	var leads []models.Lead
	if err := db.Where("created_at >= ? AND created_at < ?", since, until).
		Order("created_at").Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("telegraph: digest: %w", err)
	}
	if len(leads) == 0 {
		return nil, nil
	}

	report := &DigestReport{PeriodStart: since, PeriodEnd: until, Total: len(leads)}
	platforms := map[string]int{}
	languages := map[string]int{}
	for _, l := range leads {
		if l.Delivered {
			report.Delivered++
		} else {
			report.Failed++
		}
		platforms[l.Platform]++
		languages[l.Language]++
	}
	report.ByPlatform = sortedCounts(platforms)
	report.ByLanguage = sortedCounts(languages)
	return report, nil
}

// sortedCounts orders by count descending, then key.
func sortedCounts(m map[string]int) []CountBy {
	out := make([]CountBy, 0, len(m))
	for k, v := range m {
		if k == "" {
			k = "unknown"
		}
		out = append(out, CountBy{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// FormatDigest formats a digest report as a FormattedEvent.
func FormatDigest(report *DigestReport) FormattedEvent {
	var bodyLines []string
	bodyLines = append(bodyLines, fmt.Sprintf("Period: %s - %s",
		report.PeriodStart.Format("Jan 2 15:04"),
		report.PeriodEnd.Format("Jan 2 15:04")))
	bodyLines = append(bodyLines, fmt.Sprintf("Leads: %d (%d delivered, %d failed)",
		report.Total, report.Delivered, report.Failed))
	if len(report.ByPlatform) > 0 {
		bodyLines = append(bodyLines, "By platform: "+joinCounts(report.ByPlatform))
	}
	if len(report.ByLanguage) > 0 {
		bodyLines = append(bodyLines, "By language: "+joinCounts(report.ByLanguage))
	}

	severity := "info"
	if report.Failed > 0 {
		severity = "warning"
	}
	fields := []Field{
		{Name: "Leads", Value: fmt.Sprintf("%d", report.Total), Short: true},
		{Name: "Delivered", Value: fmt.Sprintf("%d", report.Delivered), Short: true},
	}
	if report.Failed > 0 {
		fields = append(fields, Field{Name: "Failed", Value: fmt.Sprintf("%d", report.Failed), Short: true})
	}

	return FormattedEvent{
		Title:    "📊 Daily lead digest",
		Body:     strings.Join(bodyLines, "\n"),
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

func joinCounts(cs []CountBy) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s %d", c.Key, c.Count)
	}
	return strings.Join(parts, ", ")
}
