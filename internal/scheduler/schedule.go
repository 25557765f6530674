package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the trigger cadence when none is configured.
const DefaultInterval = time.Hour

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule returns the trigger schedule. A non-empty cron expression
// (standard five fields, optional seconds, or descriptors like @hourly) wins
// over the interval; otherwise the interval is used as a constant delay
// measured from the previous activation.
func ParseSchedule(expression string, interval time.Duration) (cron.Schedule, error) {
	if expression != "" {
		sched, err := parser.Parse(expression)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression: %w", err)
		}
		return sched, nil
	}
	if interval < time.Second {
		return nil, fmt.Errorf("trigger interval must be at least 1s, got %s", interval)
	}
	return cron.Every(interval), nil
}
