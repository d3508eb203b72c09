package service

import (
	"testing"
	"time"

	"scheduling-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDailyOccurrences(t *testing.T) {
	dates, err := Occurrences(RecurrenceRule{
		Start:   day(2025, time.June, 11),
		Until:   day(2025, time.June, 15),
		Cadence: models.CadenceDaily,
	})
	require.NoError(t, err)
	require.Len(t, dates, 5)
	assert.Equal(t, day(2025, time.June, 11), dates[0])
	assert.Equal(t, day(2025, time.June, 15), dates[4])
}

func TestDailySingleDay(t *testing.T) {
	start := day(2025, time.June, 11)
	dates, err := Occurrences(RecurrenceRule{Start: start, Until: start, Cadence: models.CadenceDaily})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{start}, dates)
}

func TestWeeklyOccurrencesWithDays(t *testing.T) {
	// 2025-06-11 is a Wednesday.
	dates, err := Occurrences(RecurrenceRule{
		Start:      day(2025, time.June, 11),
		Until:      day(2025, time.June, 24),
		Cadence:    models.CadenceWeekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		day(2025, time.June, 11),
		day(2025, time.June, 16),
		day(2025, time.June, 18),
		day(2025, time.June, 23),
	}, dates)
}

func TestWeeklyDefaultsToStartWeekday(t *testing.T) {
	dates, err := Occurrences(RecurrenceRule{
		Start:   day(2025, time.June, 11),
		Until:   day(2025, time.July, 2),
		Cadence: models.CadenceWeekly,
	})
	require.NoError(t, err)
	require.Len(t, dates, 4)
	for _, d := range dates {
		assert.Equal(t, time.Wednesday, d.Weekday())
	}
}

func TestMonthlyOccurrences(t *testing.T) {
	dates, err := Occurrences(RecurrenceRule{
		Start:   day(2025, time.June, 15),
		Until:   day(2025, time.September, 20),
		Cadence: models.CadenceMonthly,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		day(2025, time.June, 15),
		day(2025, time.July, 15),
		day(2025, time.August, 15),
		day(2025, time.September, 15),
	}, dates)
}

func TestMonthlySkipsMonthsWithoutDay(t *testing.T) {
	// Day 31 does not exist in September or November, and February is short
	// either way. No rollover into the next month.
	dates, err := Occurrences(RecurrenceRule{
		Start:   day(2025, time.August, 31),
		Until:   day(2026, time.March, 31),
		Cadence: models.CadenceMonthly,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		day(2025, time.August, 31),
		day(2025, time.October, 31),
		day(2025, time.December, 31),
		day(2026, time.January, 31),
		day(2026, time.March, 31),
	}, dates)
}

func TestOccurrencesUntilBeforeStart(t *testing.T) {
	_, err := Occurrences(RecurrenceRule{
		Start:   day(2025, time.June, 15),
		Until:   day(2025, time.June, 14),
		Cadence: models.CadenceDaily,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOccurrencesUnknownCadence(t *testing.T) {
	_, err := Occurrences(RecurrenceRule{
		Start:   day(2025, time.June, 15),
		Until:   day(2025, time.June, 20),
		Cadence: "fortnightly",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOccurrencesTruncateTimeOfDay(t *testing.T) {
	dates, err := Occurrences(RecurrenceRule{
		Start:   time.Date(2025, time.June, 11, 17, 30, 0, 0, time.UTC),
		Until:   time.Date(2025, time.June, 12, 9, 0, 0, 0, time.UTC),
		Cadence: models.CadenceDaily,
	})
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, day(2025, time.June, 11), dates[0])
}
