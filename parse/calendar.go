package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type CalendarCSV struct {
	ServiceID string `csv:"service_id"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
	Monday    int8   `csv:"monday"`
	Tuesday   int8   `csv:"tuesday"`
	Wednesday int8   `csv:"wednesday"`
	Thursday  int8   `csv:"thursday"`
	Friday    int8   `csv:"friday"`
	Saturday  int8   `csv:"saturday"`
	Sunday    int8   `csv:"sunday"`
}

// Returns min and max date across all services.
func ParseCalendar(writer storage.DatasetWriter, data io.Reader) (string, string, error) {
	calendarCsv := []*CalendarCSV{}
	if err := gocsv.Unmarshal(data, &calendarCsv); err != nil {
		return "", "", fmt.Errorf("unmarshaling csv: %w", err)
	}

	seen := map[string]bool{}
	var minDate, maxDate string

	for _, c := range calendarCsv {
		if c.ServiceID == "" {
			return "", "", fmt.Errorf("empty service_id")
		}
		if seen[c.ServiceID] {
			return "", "", fmt.Errorf("repeated service_id '%s'", c.ServiceID)
		}
		seen[c.ServiceID] = true

		var weekday int8
		for _, day := range []struct {
			value int8
			name  string
			bit   time.Weekday
		}{
			{c.Monday, "monday", time.Monday},
			{c.Tuesday, "tuesday", time.Tuesday},
			{c.Wednesday, "wednesday", time.Wednesday},
			{c.Thursday, "thursday", time.Thursday},
			{c.Friday, "friday", time.Friday},
			{c.Saturday, "saturday", time.Saturday},
			{c.Sunday, "sunday", time.Sunday},
		} {
			if day.value == 1 {
				weekday |= 1 << day.bit
			} else if day.value != 0 {
				return "", "", fmt.Errorf("invalid %s value '%d'", day.name, day.value)
			}
		}

		if _, err := time.ParseInLocation("20060102", c.StartDate, time.UTC); err != nil {
			return "", "", fmt.Errorf("parsing start_date: %w", err)
		}
		if _, err := time.ParseInLocation("20060102", c.EndDate, time.UTC); err != nil {
			return "", "", fmt.Errorf("parsing end_date: %w", err)
		}

		if minDate == "" || c.StartDate < minDate {
			minDate = c.StartDate
		}
		if maxDate == "" || c.EndDate > maxDate {
			maxDate = c.EndDate
		}

		err := writer.WriteCalendar(&model.Calendar{
			ServiceID: c.ServiceID,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			Weekday:   weekday,
		})
		if err != nil {
			return "", "", fmt.Errorf("writing calendar: %w", err)
		}
	}

	return minDate, maxDate, nil
}
