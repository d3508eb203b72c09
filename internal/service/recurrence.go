package service

import (
	"time"

	"scheduling-service/internal/models"
)

// RecurrenceRule describes how a slot template expands over a date range.
type RecurrenceRule struct {
	Start      time.Time
	Until      time.Time
	Cadence    string
	DaysOfWeek []time.Weekday
}

// Occurrences expands a recurrence rule into the dates it covers, inclusive
// on both ends. It is a pure function: persistence happens elsewhere in one
// batch step.
//
// daily: every day. weekly: only the requested weekdays (defaulting to the
// start date's weekday). monthly: the start date's day-of-month; months that
// do not have that day are skipped rather than rolled over.
func Occurrences(rule RecurrenceRule) ([]time.Time, error) {
	start := truncateToDay(rule.Start)
	until := truncateToDay(rule.Until)
	if until.Before(start) {
		return nil, validationErr("recurrence end %s is before start %s",
			until.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	switch rule.Cadence {
	case models.CadenceDaily:
		return dailyOccurrences(start, until), nil
	case models.CadenceWeekly:
		days := rule.DaysOfWeek
		if len(days) == 0 {
			days = []time.Weekday{start.Weekday()}
		}
		return weeklyOccurrences(start, until, days), nil
	case models.CadenceMonthly:
		return monthlyOccurrences(start, until), nil
	default:
		return nil, validationErr("unknown cadence %q", rule.Cadence)
	}
}

func dailyOccurrences(start, until time.Time) []time.Time {
	var dates []time.Time
	for d := start; !d.After(until); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func weeklyOccurrences(start, until time.Time, days []time.Weekday) []time.Time {
	wanted := make(map[time.Weekday]bool, len(days))
	for _, day := range days {
		wanted[day] = true
	}

	var dates []time.Time
	for d := start; !d.After(until); d = d.AddDate(0, 0, 1) {
		if wanted[d.Weekday()] {
			dates = append(dates, d)
		}
	}
	return dates
}

func monthlyOccurrences(start, until time.Time) []time.Time {
	dayOfMonth := start.Day()

	var dates []time.Time
	year, month := start.Year(), start.Month()
	for {
		d := time.Date(year, month, dayOfMonth, 0, 0, 0, 0, start.Location())
		// Date normalizes out-of-range days (Feb 31 -> Mar 3); such months
		// have no occurrence.
		if d.Day() == dayOfMonth {
			if d.After(until) {
				break
			}
			if !d.Before(start) {
				dates = append(dates, d)
			}
		} else if time.Date(year, month, 1, 0, 0, 0, 0, start.Location()).After(until) {
			break
		}

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return dates
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
