package arrivals_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transitboard/arrivals"
	"github.com/transitboard/arrivals/testutil"
)

func calendarSystem(t *testing.T, files map[string][]string) *arrivals.System {
	return testutil.BuildSystem(t, "memory", files)
}

func TestCalendarWeeklyPattern(t *testing.T) {
	sys := calendarSystem(t, map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"weekday,1,1,1,1,1,0,0,20260101,20261231",
			"weekend,0,0,0,0,0,1,1,20260101,20261231",
		},
	})

	// 2026-08-24 is a Monday, 2026-08-29 a Saturday
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"weekday"}, sys.Calendar.ActiveOn(monday))
	assert.Equal(t, []string{"weekend"}, sys.Calendar.ActiveOn(saturday))
}

func TestCalendarDateRange(t *testing.T) {
	sys := calendarSystem(t, map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"summer,1,1,1,1,1,1,1,20260601,20260831",
		},
	})

	inRange := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	tooEarly := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	tooLate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"summer"}, sys.Calendar.ActiveOn(inRange))
	assert.Empty(t, sys.Calendar.ActiveOn(tooEarly))
	assert.Empty(t, sys.Calendar.ActiveOn(tooLate))

	// Range bounds are inclusive
	assert.Equal(t, []string{"summer"}, sys.Calendar.ActiveOn(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"summer"}, sys.Calendar.ActiveOn(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)))
}

func TestCalendarExceptionsOverridePattern(t *testing.T) {
	sys := calendarSystem(t, map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"weekday,1,1,1,1,1,0,0,20260101,20261231",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			// Removed on a Monday the pattern includes
			"weekday,20260824,2",
			// Added on a Saturday the pattern excludes
			"weekday,20260829,1",
		},
	})

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	assert.Empty(t, sys.Calendar.ActiveOn(monday))
	assert.Equal(t, []string{"weekday"}, sys.Calendar.ActiveOn(saturday))
}

func TestCalendarExceptionOnlyService(t *testing.T) {
	// A service defined solely through calendar_dates runs only on
	// its added dates.
	sys := calendarSystem(t, map[string][]string{
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"special,20260824,1",
		},
	})

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"special"}, sys.Calendar.ActiveOn(monday))
	assert.Empty(t, sys.Calendar.ActiveOn(tuesday))
}

func TestCalendarMemoization(t *testing.T) {
	sys := calendarSystem(t, map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"daily,1,1,1,1,1,1,1,20260101,20261231",
		},
	})

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	first := sys.Calendar.ActiveOn(monday)
	second := sys.Calendar.ActiveOn(monday)
	assert.Equal(t, first, second)

	// Different wall times on the same date hit the same entry
	evening := time.Date(2026, 8, 24, 22, 15, 0, 0, time.UTC)
	assert.Equal(t, first, sys.Calendar.ActiveOn(evening))
}
