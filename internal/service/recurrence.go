package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronSchedule resolves recurrence expressions with the standard
// five-field cron syntax plus @ descriptors (@daily, @every 1h).
type cronSchedule struct{}

func (cronSchedule) Next(expr string, after time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse recurrence: %w", err)
	}
	return schedule.Next(after), nil
}
