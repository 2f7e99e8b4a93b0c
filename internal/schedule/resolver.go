// Package schedule derives when a zone next runs from its recurring schedule.
//
// All calendar arithmetic happens in the location of the supplied now value.
// None of the functions fail: unresolvable input degrades to nil or Placeholder.
package schedule

import (
	"strings"
	"time"

	"irrigation_monitor/internal/models"
)

const (
	displayToday    = "Today"
	displayTomorrow = "Tomorrow"
	daysPerBucket   = 7
	secondsPerDay   = 24 * 60 * 60
)

// ParsePeriod maps the backend's period label to a Period, case-insensitively.
// Unknown labels are returned verbatim and never produce a next run.
func ParsePeriod(s string) models.Period {
	for _, p := range []models.Period{
		models.PeriodDaily, models.PeriodWeekly, models.PeriodMonthly,
		models.PeriodSpecific, models.PeriodIntervals,
	} {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p
		}
	}
	return models.Period(s)
}

// NextRunDate returns midnight of the day the zone next runs, or nil when it
// never runs (disabled, reserved period, or a daily zone without resolvable times).
func NextRunDate(spec models.ScheduleSpec, resolved models.ResolvedTimes, now time.Time) *time.Time {
	if spec.Mode == models.ModeDisabled {
		return nil
	}
	today := midnight(now)

	var next time.Time
	switch spec.Period {
	case models.PeriodDaily:
		times := resolvedMinutes(spec, resolved)
		if len(times) == 0 {
			return nil
		}
		next = today.AddDate(0, 0, 1)
		current := minuteOfDay(now)
		for _, m := range times {
			if m > current {
				next = today
				break
			}
		}
	case models.PeriodWeekly:
		next = nextWeekBucket(now)
	case models.PeriodMonthly:
		next = time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	default:
		return nil
	}
	return &next
}

// NextDailyTime returns the earliest start time later than now's time of day,
// wrapping to the first slot of tomorrow, or Placeholder if nothing resolves.
func NextDailyTime(spec models.ScheduleSpec, resolved models.ResolvedTimes, now time.Time) string {
	times := resolvedMinutes(spec, resolved)
	if len(times) == 0 {
		return Placeholder
	}
	current := minuteOfDay(now)
	earliest, upcoming := times[0], -1
	for _, m := range times {
		if m < earliest {
			earliest = m
		}
		if m > current && (upcoming < 0 || m < upcoming) {
			upcoming = m
		}
	}
	if upcoming >= 0 {
		return FormatClock(upcoming)
	}
	return FormatClock(earliest)
}

// FormatNextRun renders date relative to now, comparing calendar dates only.
func FormatNextRun(date time.Time, now time.Time) string {
	if date.IsZero() {
		return Placeholder
	}
	d := date.In(now.Location())
	switch {
	case sameDay(d, now):
		return displayToday
	case sameDay(d, now.AddDate(0, 0, 1)):
		return displayTomorrow
	default:
		return d.Format("01/02")
	}
}

// nextWeekBucket returns the first day of the next 7-day bucket counted from the Unix epoch.
func nextWeekBucket(now time.Time) time.Time {
	y, m, d := now.Date()
	days := floorDiv(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix(), secondsPerDay)
	start := (floorDiv(days, daysPerBucket) + 1) * daysPerBucket
	ty, tm, td := time.Unix(start*secondsPerDay, 0).UTC().Date()
	return time.Date(ty, tm, td, 0, 0, 0, 0, now.Location())
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
