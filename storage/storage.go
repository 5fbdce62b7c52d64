package storage

import (
	"time"

	"github.com/transitboard/arrivals/model"
)

// Persistence of parsed static datasets. A dataset is one versioned
// schedule dump, keyed by the hash of its raw bytes. The realtime
// feed is never persisted; it lives in the arrivals.FeedCache only.

type Storage interface {
	// Retrieves info records for all stored datasets matching
	// the filter, most recently retrieved first.
	ListDatasets(filter ListFilter) ([]*DatasetInfo, error)

	// Writes a DatasetInfo record. A record with the same hash
	// and URL is overwritten.
	WriteDatasetInfo(info *DatasetInfo) error

	// Gets a writer for the dataset with the given hash.
	GetWriter(hash string) (DatasetWriter, error)

	// Gets a reader for the dataset with the given hash.
	GetReader(hash string) (DatasetReader, error)
}

type ListFilter struct {
	// If set, only include datasets retrieved from the given URL.
	URL string

	// If set, only include the dataset with the given hash.
	Hash string
}

// Info about a stored static dataset.
type DatasetInfo struct {
	Hash          string
	URL           string
	RetrievedAt   time.Time
	Timezone      string
	CalendarStart string
	CalendarEnd   string
	MaxArrival    string
	MaxDeparture  string
}

// Receives rows for a single dataset as they are parsed.
//
// stop_times.txt tends to be very large, so BeginStopTimes() and
// EndStopTimes() bracket all WriteStopTime() calls, allowing
// backends to batch.
type DatasetWriter interface {
	WriteAgency(agency *model.Agency) error
	WriteStop(stop *model.Stop) error
	WriteRoute(route *model.Route) error
	WriteTrip(trip *model.Trip) error
	WriteCalendar(cal *model.Calendar) error
	WriteCalendarDate(cd *model.CalendarDate) error
	BeginStopTimes() error
	WriteStopTime(st *model.StopTime) error
	EndStopTimes() error
	Close() error
}

// Reads back full tables of a stored dataset. Row order is not
// guaranteed; the Store sorts what it needs sorted.
type DatasetReader interface {
	Agencies() ([]*model.Agency, error)
	Stops() ([]*model.Stop, error)
	Routes() ([]*model.Route, error)
	Trips() ([]*model.Trip, error)
	StopTimes() ([]*model.StopTime, error)
	Calendars() ([]*model.Calendar, error)
	CalendarDates() ([]*model.CalendarDate, error)
}
