package arrivals

import (
	"fmt"
	"sort"
	"time"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

// Store indexes a static dataset for lookup. Built once per dataset
// and read-only afterwards, so it's safe to share across goroutines.
type Store struct {
	Info *storage.DatasetInfo

	agenciesByID map[string]*model.Agency
	stopsByID    map[string]*model.Stop
	routesByID   map[string]*model.Route
	tripsByID    map[string]*model.Trip

	// Sorted by stop_sequence.
	stopTimesByTrip map[string][]*model.StopTime

	// Reverse index for stop queries.
	tripIDsByStop map[string][]string

	calendars     []*model.Calendar
	calendarDates []*model.CalendarDate

	location     *time.Location
	maxDeparture time.Duration

	// stop_times rows referencing an unknown trip or stop are
	// dropped here rather than rejected at parse.
	droppedStopTimes int
}

func NewStore(reader storage.DatasetReader, info *storage.DatasetInfo) (*Store, error) {
	location, err := time.LoadLocation(info.Timezone)
	if err != nil {
		return nil, &IntegrityError{Message: "loading timezone", Cause: err}
	}

	s := &Store{
		Info:            info,
		agenciesByID:    map[string]*model.Agency{},
		stopsByID:       map[string]*model.Stop{},
		routesByID:      map[string]*model.Route{},
		tripsByID:       map[string]*model.Trip{},
		stopTimesByTrip: map[string][]*model.StopTime{},
		tripIDsByStop:   map[string][]string{},
		location:        location,
	}

	agencies, err := reader.Agencies()
	if err != nil {
		return nil, &IntegrityError{Message: "reading agencies", Cause: err}
	}
	for _, agency := range agencies {
		s.agenciesByID[agency.ID] = agency
	}

	stops, err := reader.Stops()
	if err != nil {
		return nil, &IntegrityError{Message: "reading stops", Cause: err}
	}
	if len(stops) == 0 {
		return nil, &IntegrityError{Message: "dataset has no stops"}
	}
	for _, stop := range stops {
		s.stopsByID[stop.ID] = stop
	}

	routes, err := reader.Routes()
	if err != nil {
		return nil, &IntegrityError{Message: "reading routes", Cause: err}
	}
	if len(routes) == 0 {
		return nil, &IntegrityError{Message: "dataset has no routes"}
	}
	for _, route := range routes {
		s.routesByID[route.ID] = route
	}

	trips, err := reader.Trips()
	if err != nil {
		return nil, &IntegrityError{Message: "reading trips", Cause: err}
	}
	if len(trips) == 0 {
		return nil, &IntegrityError{Message: "dataset has no trips"}
	}
	for _, trip := range trips {
		s.tripsByID[trip.ID] = trip
	}

	stopTimes, err := reader.StopTimes()
	if err != nil {
		return nil, &IntegrityError{Message: "reading stop times", Cause: err}
	}
	if len(stopTimes) == 0 {
		return nil, &IntegrityError{Message: "dataset has no stop times"}
	}
	for _, st := range stopTimes {
		_, tripKnown := s.tripsByID[st.TripID]
		_, stopKnown := s.stopsByID[st.StopID]
		if !tripKnown || !stopKnown {
			s.droppedStopTimes++
			continue
		}
		s.stopTimesByTrip[st.TripID] = append(s.stopTimesByTrip[st.TripID], st)
	}
	for tripID, sts := range s.stopTimesByTrip {
		sort.Slice(sts, func(i, j int) bool {
			return sts[i].StopSequence < sts[j].StopSequence
		})
		seen := map[string]bool{}
		for _, st := range sts {
			if !seen[st.StopID] {
				seen[st.StopID] = true
				s.tripIDsByStop[st.StopID] = append(s.tripIDsByStop[st.StopID], tripID)
			}
		}
	}
	for _, tripIDs := range s.tripIDsByStop {
		sort.Strings(tripIDs)
	}

	s.calendars, err = reader.Calendars()
	if err != nil {
		return nil, &IntegrityError{Message: "reading calendars", Cause: err}
	}
	s.calendarDates, err = reader.CalendarDates()
	if err != nil {
		return nil, &IntegrityError{Message: "reading calendar dates", Cause: err}
	}
	if len(s.calendars) == 0 && len(s.calendarDates) == 0 {
		return nil, &IntegrityError{Message: "dataset has no calendar or calendar_dates"}
	}

	if info.MaxDeparture != "" {
		s.maxDeparture, err = hhmmssOffset(info.MaxDeparture)
		if err != nil {
			return nil, &IntegrityError{Message: "parsing max departure", Cause: err}
		}
	}

	return s, nil
}

// Translates a "HHMMSS" string into an offset from midnight. Hours
// can exceed 24 for post-midnight service.
func hhmmssOffset(hhmmss string) (time.Duration, error) {
	if len(hhmmss) != 6 {
		return 0, fmt.Errorf("bad time %q", hhmmss)
	}
	var h, m, sec int
	_, err := fmt.Sscanf(hhmmss, "%02d%02d%02d", &h, &m, &sec)
	if err != nil {
		return 0, fmt.Errorf("bad time %q: %w", hhmmss, err)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func (s *Store) AgencyByID(id string) (*model.Agency, bool) {
	a, ok := s.agenciesByID[id]
	return a, ok
}

func (s *Store) StopByID(id string) (*model.Stop, bool) {
	st, ok := s.stopsByID[id]
	return st, ok
}

func (s *Store) RouteByID(id string) (*model.Route, bool) {
	r, ok := s.routesByID[id]
	return r, ok
}

func (s *Store) TripByID(id string) (*model.Trip, bool) {
	t, ok := s.tripsByID[id]
	return t, ok
}

// In stop_sequence order. Nil for unknown trips.
func (s *Store) StopTimesForTrip(tripID string) []*model.StopTime {
	return s.stopTimesByTrip[tripID]
}

// IDs of all trips that call at the stop, sorted. Nil for unknown
// stops.
func (s *Store) TripIDsByStop(stopID string) []string {
	return s.tripIDsByStop[stopID]
}

// All stops in the dataset, in no particular order.
func (s *Store) Stops() []*model.Stop {
	stops := make([]*model.Stop, 0, len(s.stopsByID))
	for _, stop := range s.stopsByID {
		stops = append(stops, stop)
	}
	return stops
}

// All trips in the dataset, in no particular order.
func (s *Store) Trips() []*model.Trip {
	trips := make([]*model.Trip, 0, len(s.tripsByID))
	for _, trip := range s.tripsByID {
		trips = append(trips, trip)
	}
	return trips
}

// Number of stop_times rows dropped at load because their trip or
// stop didn't resolve.
func (s *Store) DroppedStopTimes() int {
	return s.droppedStopTimes
}

func (s *Store) Location() *time.Location {
	return s.location
}
