package storage

import (
	"fmt"
	"sort"

	"github.com/transitboard/arrivals/model"
)

// In memory implementation of Storage below. Suitable for tests and
// for deployments that re-download the dataset on startup.

type memoryInfoKey struct {
	URL  string
	Hash string
}

type MemoryStorage struct {
	datasets map[string]*MemoryDataset
	info     map[memoryInfoKey]*DatasetInfo
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		datasets: map[string]*MemoryDataset{},
		info:     map[memoryInfoKey]*DatasetInfo{},
	}
}

func (s *MemoryStorage) ListDatasets(filter ListFilter) ([]*DatasetInfo, error) {
	infos := []*DatasetInfo{}
	for _, info := range s.info {
		if filter.URL != "" && info.URL != filter.URL {
			continue
		}
		if filter.Hash != "" && info.Hash != filter.Hash {
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].RetrievedAt.After(infos[j].RetrievedAt)
	})
	return infos, nil
}

func (s *MemoryStorage) WriteDatasetInfo(info *DatasetInfo) error {
	s.info[memoryInfoKey{info.URL, info.Hash}] = info
	return nil
}

func (s *MemoryStorage) GetWriter(hash string) (DatasetWriter, error) {
	d := &MemoryDataset{}
	s.datasets[hash] = d
	return d, nil
}

func (s *MemoryStorage) GetReader(hash string) (DatasetReader, error) {
	d, ok := s.datasets[hash]
	if !ok {
		return nil, fmt.Errorf("dataset not found")
	}
	return d, nil
}

// A MemoryDataset is its own writer and reader.
type MemoryDataset struct {
	agencies      []*model.Agency
	stops         []*model.Stop
	routes        []*model.Route
	trips         []*model.Trip
	stopTimes     []*model.StopTime
	calendars     []*model.Calendar
	calendarDates []*model.CalendarDate
}

func (d *MemoryDataset) WriteAgency(agency *model.Agency) error {
	d.agencies = append(d.agencies, agency)
	return nil
}

func (d *MemoryDataset) WriteStop(stop *model.Stop) error {
	d.stops = append(d.stops, stop)
	return nil
}

func (d *MemoryDataset) WriteRoute(route *model.Route) error {
	d.routes = append(d.routes, route)
	return nil
}

func (d *MemoryDataset) WriteTrip(trip *model.Trip) error {
	d.trips = append(d.trips, trip)
	return nil
}

func (d *MemoryDataset) WriteCalendar(cal *model.Calendar) error {
	d.calendars = append(d.calendars, cal)
	return nil
}

func (d *MemoryDataset) WriteCalendarDate(cd *model.CalendarDate) error {
	d.calendarDates = append(d.calendarDates, cd)
	return nil
}

func (d *MemoryDataset) BeginStopTimes() error {
	return nil
}

func (d *MemoryDataset) WriteStopTime(st *model.StopTime) error {
	d.stopTimes = append(d.stopTimes, st)
	return nil
}

func (d *MemoryDataset) EndStopTimes() error {
	return nil
}

func (d *MemoryDataset) Close() error {
	return nil
}

func (d *MemoryDataset) Agencies() ([]*model.Agency, error) {
	return d.agencies, nil
}

func (d *MemoryDataset) Stops() ([]*model.Stop, error) {
	return d.stops, nil
}

func (d *MemoryDataset) Routes() ([]*model.Route, error) {
	return d.routes, nil
}

func (d *MemoryDataset) Trips() ([]*model.Trip, error) {
	return d.trips, nil
}

func (d *MemoryDataset) StopTimes() ([]*model.StopTime, error) {
	return d.stopTimes, nil
}

func (d *MemoryDataset) Calendars() ([]*model.Calendar, error) {
	return d.calendars, nil
}

func (d *MemoryDataset) CalendarDates() ([]*model.CalendarDate, error) {
	return d.calendarDates, nil
}
