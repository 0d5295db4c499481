package telegraph

import (
	"time"

	"github.com/robfig/cron/v3"
)

// untilNext returns how long after now the cron expression next fires,
// evaluated in loc so that "0 9 * * *" means 09:00 office time. It returns
// 0 for an unparsable expression. Expressions are the standard five fields
// or descriptors such as "@daily", the same set config validation accepts.
func untilNext(expr string, now time.Time, loc *time.Location) time.Duration {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return 0
	}
	if loc != nil {
		now = now.In(loc)
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
