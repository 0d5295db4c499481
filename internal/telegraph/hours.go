package telegraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/leadbot/internal/lang"
)

// BusinessHours is a weekly opening schedule in one time zone.
type BusinessHours struct {
	Days     []time.Weekday
	Open     time.Duration // offset from midnight
	Close    time.Duration
	Location *time.Location
}

// DefaultBusinessHours is Monday to Saturday, 09:00-18:00 Tashkent time.
func DefaultBusinessHours() BusinessHours {
	loc, err := time.LoadLocation("Asia/Tashkent")
	if err != nil {
		loc = time.FixedZone("UZT", 5*60*60)
	}
	return BusinessHours{
		Days:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		Open:     9 * time.Hour,
		Close:    18 * time.Hour,
		Location: loc,
	}
}

// IsOpen reports whether t falls inside the schedule. Open is inclusive,
// Close exclusive.
func (h BusinessHours) IsOpen(t time.Time) bool {
	if h.Location != nil {
		t = t.In(h.Location)
	}
	open := false
	for _, d := range h.Days {
		if d == t.Weekday() {
			open = true
			break
		}
	}
	if !open {
		return false
	}
	since := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
	return since >= h.Open && since < h.Close
}

// schedule renders e.g. "Dushanba-Shanba, 09:00-18:00".
func (h BusinessHours) schedule(l lang.Language) string {
	return fmt.Sprintf("%s, %s-%s", h.dayRange(l), clock(h.Open), clock(h.Close))
}

func (h BusinessHours) dayRange(l lang.Language) string {
	if len(h.Days) == 0 {
		return lang.Pick(l, "dam olish", "closed")
	}
	names := make([]string, len(h.Days))
	for i, d := range h.Days {
		names[i] = dayName(d, l)
	}
	if h.consecutive() && len(names) > 2 {
		return names[0] + "-" + names[len(names)-1]
	}
	return strings.Join(names, ", ")
}

func (h BusinessHours) consecutive() bool {
	for i := 1; i < len(h.Days); i++ {
		if h.Days[i] != h.Days[i-1]+1 {
			return false
		}
	}
	return true
}

// Notice is appended to replies outside business hours.
func (h BusinessHours) Notice(l lang.Language) string {
	return lang.Pick(l,
		fmt.Sprintf("🕒 Ish vaqti: %s. Hozir ish vaqtidan tashqari, xabaringizga ish vaqtida javob beramiz.", h.schedule(l)),
		fmt.Sprintf("🕒 Business Hours: %s. We are currently closed and will reply during business hours.", h.schedule(l)),
	)
}

// StatusText is the /hours reply.
func (h BusinessHours) StatusText(now time.Time, l lang.Language) string {
	status := lang.Pick(l, "🔴 OFFLAYN", "🔴 OFFLINE")
	if h.IsOpen(now) {
		status = lang.Pick(l, "🟢 ONLAYN", "🟢 ONLINE")
	}
	zone := ""
	if h.Location != nil {
		zone = " (" + h.Location.String() + ")"
	}
	return lang.Pick(l,
		fmt.Sprintf("🕒 Ish vaqti: %s%s\nHozirgi holat: %s", h.schedule(l), zone, status),
		fmt.Sprintf("🕒 Business Hours: %s%s\nCurrent status: %s", h.schedule(l), zone, status),
	)
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

var uzbekDays = map[time.Weekday]string{
	time.Monday:    "Dushanba",
	time.Tuesday:   "Seshanba",
	time.Wednesday: "Chorshanba",
	time.Thursday:  "Payshanba",
	time.Friday:    "Juma",
	time.Saturday:  "Shanba",
	time.Sunday:    "Yakshanba",
}

func dayName(d time.Weekday, l lang.Language) string {
	if l == lang.Secondary {
		return d.String()
	}
	return uzbekDays[d]
}
