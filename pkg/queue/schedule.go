package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the run times of a recurring message.
type Schedule interface {
	// Next returns the first run time strictly after from, or the zero time
	// when the schedule never fires again.
	Next(from time.Time) time.Time
	String() string
}

// cronParser accepts standard 5-field expressions and descriptors such as
// "@daily" or "@every 30s". An optional CRON_TZ= prefix pins the location.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type cronSchedule struct {
	cron.Schedule
	expr string
}

func (s cronSchedule) String() string { return s.expr }

type every time.Duration

func (s every) Next(from time.Time) time.Time { return from.Add(time.Duration(s)) }
func (s every) String() string                { return "@every " + time.Duration(s).String() }

// ParseSchedule reads a cron expression:
//
//	*/15 * * * *
//	30 3 * * mon-fri
//	@daily
//	@every 5m
//	CRON_TZ=Europe/Berlin 0 9 * * *
//
// Fields without a location run in the location of the time passed to Next.
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	}

	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, err)
	}
	return cronSchedule{Schedule: sched, expr: expr}, nil
}

// Every runs at a fixed interval from the previous plan. d must be positive.
// Unlike "@every" in ParseSchedule it is not rounded to whole seconds.
func Every(d time.Duration) (Schedule, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidSchedule, d)
	}
	return every(d), nil
}

// HourlyAt runs every hour at the given minute.
func HourlyAt(minute int) (Schedule, error) {
	if err := checkClock(0, minute); err != nil {
		return nil, err
	}
	return ParseSchedule(fmt.Sprintf("%d * * * *", minute))
}

// DailyAt runs every day at hour:minute.
func DailyAt(hour, minute int) (Schedule, error) {
	if err := checkClock(hour, minute); err != nil {
		return nil, err
	}
	return ParseSchedule(fmt.Sprintf("%d %d * * *", minute, hour))
}

// WeeklyOn runs every week on weekday at hour:minute.
func WeeklyOn(weekday time.Weekday, hour, minute int) (Schedule, error) {
	if weekday < time.Sunday || weekday > time.Saturday {
		return nil, fmt.Errorf("%w: weekday %d", ErrInvalidSchedule, weekday)
	}
	if err := checkClock(hour, minute); err != nil {
		return nil, err
	}
	return ParseSchedule(fmt.Sprintf("%d %d * * %d", minute, hour, weekday))
}

// MonthlyOn runs every month on day (1-31) at hour:minute. Months without
// that day are skipped.
func MonthlyOn(day, hour, minute int) (Schedule, error) {
	if day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: day of month %d", ErrInvalidSchedule, day)
	}
	if err := checkClock(hour, minute); err != nil {
		return nil, err
	}
	return ParseSchedule(fmt.Sprintf("%d %d %d * *", minute, hour, day))
}

func checkClock(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d", ErrInvalidSchedule, hour, minute)
	}
	return nil
}
