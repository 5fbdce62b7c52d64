package model

import (
	"strconv"
	"time"
)

// Holds all external facing types and constants.

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

// Calendar exception types, as per calendar_dates.txt.
type ExceptionType int8

const (
	ServiceAdded   ExceptionType = 1
	ServiceRemoved ExceptionType = 2
)

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

// Weekday is a bitmask over time.Weekday. Dates are on form
// "YYYYMMDD", which orders correctly as a string.
type Calendar struct {
	ServiceID string
	StartDate string
	EndDate   string
	Weekday   int8
}

type CalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType ExceptionType
}

type Stop struct {
	ID   string
	Code string
	Name string
	Lat  float64
	Lon  float64
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int8
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Type      RouteType
}

// Arrival and Departure are schedule offsets on form "HHMMSS". Hours
// may exceed 24 for trips running past midnight.
type StopTime struct {
	TripID       string
	StopID       string
	StopSequence uint32
	Arrival      string
	Departure    string
	PickupType   int8
	DropOffType  int8
}

func (st *StopTime) ArrivalOffset() time.Duration {
	return offset(st.Arrival)
}

func (st *StopTime) DepartureOffset() time.Duration {
	return offset(st.Departure)
}

func offset(hhmmss string) time.Duration {
	h, _ := strconv.Atoi(hhmmss[0:2])
	m, _ := strconv.Atoi(hhmmss[2:4])
	s, _ := strconv.Atoi(hhmmss[4:6])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// The best known arrival of a trip at a stop, reconciling the static
// schedule with the realtime feed. Recomputed on every query, never
// persisted.
//
// Scheduled is zero for trips known only from the realtime feed
// (Added). Realtime is zero when no feed data applies, and is forced
// to zero for cancelled trips.
type UnifiedArrival struct {
	TripID   string
	RouteID  string
	StopID   string
	Headsign string

	Scheduled time.Time
	Realtime  time.Time
	Delay     time.Duration

	Cancelled bool
	Added     bool
}

func (a *UnifiedArrival) HasRealtime() bool {
	return !a.Realtime.IsZero()
}

// The time queries order and window by: realtime when known,
// scheduled otherwise.
func (a *UnifiedArrival) EffectiveTime() time.Time {
	if a.HasRealtime() {
		return a.Realtime
	}
	return a.Scheduled
}
