package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int8   `csv:"exception_type"`
}

// Returns min and max date across all exceptions.
func ParseCalendarDates(writer storage.DatasetWriter, data io.Reader) (string, string, error) {
	calendarDateCsv := []*CalendarDateCSV{}
	if err := gocsv.Unmarshal(data, &calendarDateCsv); err != nil {
		return "", "", fmt.Errorf("unmarshaling calendar_dates csv: %w", err)
	}

	seenServiceDate := map[string]bool{}
	var minDate, maxDate string

	for _, cd := range calendarDateCsv {
		if cd.ServiceID == "" {
			return "", "", fmt.Errorf("empty service_id")
		}
		if cd.ExceptionType < 1 || cd.ExceptionType > 2 {
			return "", "", fmt.Errorf("illegal exception_type: '%d'", cd.ExceptionType)
		}

		if _, err := time.ParseInLocation("20060102", cd.Date, time.UTC); err != nil {
			return "", "", fmt.Errorf("parsing date '%s': %w", cd.Date, err)
		}

		serviceDate := fmt.Sprintf("%s-%s", cd.Date, cd.ServiceID)
		if seenServiceDate[serviceDate] {
			return "", "", fmt.Errorf("duplicate service/date: '%s'", serviceDate)
		}
		seenServiceDate[serviceDate] = true

		if minDate == "" || cd.Date < minDate {
			minDate = cd.Date
		}
		if maxDate == "" || cd.Date > maxDate {
			maxDate = cd.Date
		}

		err := writer.WriteCalendarDate(&model.CalendarDate{
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: model.ExceptionType(cd.ExceptionType),
		})
		if err != nil {
			return "", "", fmt.Errorf("writing calendar_date: %w", err)
		}
	}

	return minDate, maxDate, nil
}
