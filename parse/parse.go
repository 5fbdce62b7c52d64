package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"github.com/transitboard/arrivals/storage"
)

// ErrMissingTable wraps "required table absent" failures so callers
// can distinguish a broken dataset from an IO problem.
type ErrMissingTable struct {
	Table string
}

func (e *ErrMissingTable) Error() string {
	return fmt.Sprintf("missing %s", e.Table)
}

// ParseDataset reads a zipped static dump into the given writer.
//
// stops, routes, trips and stop_times are required, as is at least
// one of calendar and calendar_dates. agency is optional; without it
// the dataset timezone defaults to UTC.
//
// Row syntax is validated here. Cross references between tables are
// not: the Store drops stop_times rows it cannot resolve.
func ParseDataset(writer storage.DatasetWriter, buf []byte) (*storage.DatasetInfo, error) {
	file := map[string]io.ReadCloser{
		"agency.txt":         nil,
		"routes.txt":         nil,
		"stops.txt":          nil,
		"trips.txt":          nil,
		"stop_times.txt":     nil,
		"calendar.txt":       nil,
		"calendar_dates.txt": nil,
	}

	defer func() {
		for _, rc := range file {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if _, found := file[fName]; !found {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}

		file[fName] = rc
	}

	for _, required := range []string{"routes.txt", "stops.txt", "trips.txt", "stop_times.txt"} {
		if file[required] == nil {
			return nil, &ErrMissingTable{Table: required}
		}
	}

	// Some datasets carry only dated service, with no weekly
	// calendar at all.
	if file["calendar.txt"] == nil && file["calendar_dates.txt"] == nil {
		return nil, &ErrMissingTable{Table: "calendar.txt and calendar_dates.txt"}
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	timezone := "UTC"
	if file["agency.txt"] != nil {
		timezone, err = ParseAgencies(writer, file["agency.txt"])
		if err != nil {
			return nil, fmt.Errorf("parsing agency.txt: %w", err)
		}
	}

	if err := ParseRoutes(writer, file["routes.txt"]); err != nil {
		return nil, fmt.Errorf("parsing routes.txt: %w", err)
	}

	var calendarStart, calendarEnd string
	if file["calendar.txt"] != nil {
		calendarStart, calendarEnd, err = ParseCalendar(writer, file["calendar.txt"])
		if err != nil {
			return nil, fmt.Errorf("parsing calendar.txt: %w", err)
		}
	}
	if file["calendar_dates.txt"] != nil {
		minDate, maxDate, err := ParseCalendarDates(writer, file["calendar_dates.txt"])
		if err != nil {
			return nil, fmt.Errorf("parsing calendar_dates.txt: %w", err)
		}
		if calendarStart == "" || (minDate != "" && minDate < calendarStart) {
			calendarStart = minDate
		}
		if calendarEnd == "" || maxDate > calendarEnd {
			calendarEnd = maxDate
		}
	}

	if err := ParseTrips(writer, file["trips.txt"]); err != nil {
		return nil, fmt.Errorf("parsing trips.txt: %w", err)
	}

	if err := ParseStops(writer, file["stops.txt"]); err != nil {
		return nil, fmt.Errorf("parsing stops.txt: %w", err)
	}

	if err := writer.BeginStopTimes(); err != nil {
		return nil, fmt.Errorf("beginning stop_times: %w", err)
	}
	maxArrival, maxDeparture, err := ParseStopTimes(writer, file["stop_times.txt"])
	if err != nil {
		return nil, fmt.Errorf("parsing stop_times.txt: %w", err)
	}
	if err := writer.EndStopTimes(); err != nil {
		return nil, fmt.Errorf("ending stop_times: %w", err)
	}

	return &storage.DatasetInfo{
		Timezone:      timezone,
		CalendarStart: calendarStart,
		CalendarEnd:   calendarEnd,
		MaxArrival:    maxArrival,
		MaxDeparture:  maxDeparture,
	}, nil
}
