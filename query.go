package arrivals

import (
	"sort"
	"strings"
	"time"

	"github.com/transitboard/arrivals/model"
)

// An arrival within two minutes of schedule counts as on time.
const onTimeThreshold = 2 * time.Minute

// Queries is the read surface for dashboards and the CLI. All
// operations are filtering and aggregation over Merger output plus
// simple static lookups; none hold state of their own.
type Queries struct {
	store  *Store
	merger *Merger
}

func NewQueries(store *Store, merger *Merger) *Queries {
	return &Queries{store: store, merger: merger}
}

// Returns the next arrivals at a stop at or after from, at most limit
// (unlimited if limit <= 0). Cancelled trips are excluded; use
// CancelledTrips to see them.
func (q *Queries) NextArrivals(stopID string, from time.Time, limit int) []*model.UnifiedArrival {
	// Post-midnight trips of the previous service day can still
	// be upcoming. Only datasets whose latest departure passes
	// 24:00:00 can have any, so the previous day is skipped
	// otherwise.
	var merged []*model.UnifiedArrival
	if q.store.maxDeparture > 24*time.Hour {
		merged = q.merger.Arrivals(from.AddDate(0, 0, -1), Filter{StopID: stopID})
	}
	merged = append(merged, q.merger.Arrivals(from, Filter{StopID: stopID})...)

	// Added trips carry no service date, so they show up in both
	// days' output and need deduplication here.
	type key struct {
		tripID string
		stopID string
		at     time.Time
	}
	seen := map[key]bool{}

	upcoming := []*model.UnifiedArrival{}
	for _, a := range merged {
		if a.Cancelled {
			continue
		}
		if a.EffectiveTime().Before(from) {
			continue
		}
		k := key{a.TripID, a.StopID, a.EffectiveTime()}
		if seen[k] {
			continue
		}
		seen[k] = true
		upcoming = append(upcoming, a)
	}

	sort.Slice(upcoming, func(i, j int) bool {
		ti, tj := upcoming[i].EffectiveTime(), upcoming[j].EffectiveTime()
		if ti.Equal(tj) {
			return upcoming[i].TripID < upcoming[j].TripID
		}
		return ti.Before(tj)
	})

	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming
}

// Delay aggregates for one route on one date.
type DelayStats struct {
	RouteID      string
	RouteName    string
	Arrivals     int
	WithRealtime int
	Cancelled    int
	OnTime       int
	AvgDelay     time.Duration
	MaxDelay     time.Duration
}

// Share of realtime-tracked arrivals that ran within the on-time
// threshold. Zero when nothing was tracked.
func (s DelayStats) OnTimePercent() float64 {
	if s.WithRealtime == 0 {
		return 0
	}
	return 100 * float64(s.OnTime) / float64(s.WithRealtime)
}

// Compares schedule against realtime per route for a date. Routes
// with no arrivals that day are omitted. routeID narrows to a single
// route when non-empty.
func (q *Queries) DelayStats(date time.Time, routeID string) []DelayStats {
	byRoute := map[string]*DelayStats{}
	totals := map[string]time.Duration{}

	for _, a := range q.merger.Arrivals(date, Filter{RouteID: routeID}) {
		stats, ok := byRoute[a.RouteID]
		if !ok {
			stats = &DelayStats{RouteID: a.RouteID}
			if route, found := q.store.RouteByID(a.RouteID); found {
				stats.RouteName = routeName(route)
			}
			byRoute[a.RouteID] = stats
		}

		stats.Arrivals++
		if a.Cancelled {
			stats.Cancelled++
			continue
		}
		if !a.HasRealtime() {
			continue
		}

		stats.WithRealtime++
		totals[a.RouteID] += a.Delay
		if a.Delay > stats.MaxDelay {
			stats.MaxDelay = a.Delay
		}
		if a.Delay >= -onTimeThreshold && a.Delay <= onTimeThreshold {
			stats.OnTime++
		}
	}

	result := make([]DelayStats, 0, len(byRoute))
	for id, stats := range byRoute {
		if stats.WithRealtime > 0 {
			stats.AvgDelay = totals[id] / time.Duration(stats.WithRealtime)
		}
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RouteID < result[j].RouteID
	})
	return result
}

// The n routes with the highest average delay on the date. Routes
// without realtime coverage don't rank.
func (q *Queries) MostDelayedRoutes(date time.Time, n int) []DelayStats {
	stats := q.DelayStats(date, "")

	ranked := stats[:0]
	for _, s := range stats {
		if s.WithRealtime > 0 {
			ranked = append(ranked, s)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AvgDelay == ranked[j].AvgDelay {
			return ranked[i].RouteID < ranked[j].RouteID
		}
		return ranked[i].AvgDelay > ranked[j].AvgDelay
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

type StopActivity struct {
	StopID   string
	StopName string
	Arrivals int
}

// The n stops with the most arrivals on the date.
func (q *Queries) BusiestStops(date time.Time, n int) []StopActivity {
	counts := map[string]int{}
	for _, a := range q.merger.Arrivals(date, Filter{}) {
		if a.Cancelled {
			continue
		}
		counts[a.StopID]++
	}

	activity := make([]StopActivity, 0, len(counts))
	for stopID, count := range counts {
		sa := StopActivity{StopID: stopID, Arrivals: count}
		if stop, ok := q.store.StopByID(stopID); ok {
			sa.StopName = stop.Name
		}
		activity = append(activity, sa)
	}

	sort.Slice(activity, func(i, j int) bool {
		if activity[i].Arrivals == activity[j].Arrivals {
			return activity[i].StopID < activity[j].StopID
		}
		return activity[i].Arrivals > activity[j].Arrivals
	})

	if n > 0 && len(activity) > n {
		activity = activity[:n]
	}
	return activity
}

type HourActivity struct {
	Hour     int
	Arrivals int
}

// Arrival counts per hour of day, bucketed by effective time in the
// dataset's timezone. Always 24 entries, hour ascending.
func (q *Queries) PeakHours(date time.Time) []HourActivity {
	hours := make([]HourActivity, 24)
	for h := range hours {
		hours[h].Hour = h
	}

	for _, a := range q.merger.Arrivals(date, Filter{}) {
		if a.Cancelled {
			continue
		}
		hours[a.EffectiveTime().In(q.store.location).Hour()].Arrivals++
	}

	return hours
}

// Case-insensitive substring search over stop name, code and ID.
// Results sorted by name, then ID.
func (q *Queries) SearchStops(query string) []*model.Stop {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	matches := []*model.Stop{}
	for _, stop := range q.store.Stops() {
		if strings.Contains(strings.ToLower(stop.Name), query) ||
			strings.Contains(strings.ToLower(stop.Code), query) ||
			strings.Contains(strings.ToLower(stop.ID), query) {
			matches = append(matches, stop)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name == matches[j].Name {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Name < matches[j].Name
	})
	return matches
}

type CancelledTrip struct {
	TripID   string
	RouteID  string
	Headsign string
	Added    bool
}

// All trips marked cancelled in the feed for the date, one entry per
// trip, sorted by trip ID.
func (q *Queries) CancelledTrips(date time.Time) []CancelledTrip {
	seen := map[string]bool{}
	cancelled := []CancelledTrip{}

	for _, a := range q.merger.Arrivals(date, Filter{}) {
		if !a.Cancelled || seen[a.TripID] {
			continue
		}
		seen[a.TripID] = true
		cancelled = append(cancelled, CancelledTrip{
			TripID:   a.TripID,
			RouteID:  a.RouteID,
			Headsign: a.Headsign,
			Added:    a.Added,
		})
	}

	sort.Slice(cancelled, func(i, j int) bool {
		return cancelled[i].TripID < cancelled[j].TripID
	})
	return cancelled
}

// All routes serving a stop, sorted by ID. Empty for unknown stops.
func (q *Queries) RoutesAtStop(stopID string) []*model.Route {
	seen := map[string]bool{}
	routes := []*model.Route{}

	for _, tripID := range q.store.TripIDsByStop(stopID) {
		trip, ok := q.store.TripByID(tripID)
		if !ok || seen[trip.RouteID] {
			continue
		}
		seen[trip.RouteID] = true
		if route, found := q.store.RouteByID(trip.RouteID); found {
			routes = append(routes, route)
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ID < routes[j].ID
	})
	return routes
}

type StopInfo struct {
	Stop   *model.Stop
	Routes []*model.Route
	Trips  int
}

// Details for a single stop. Second return is false when the stop is
// unknown.
func (q *Queries) StopInfo(stopID string) (*StopInfo, bool) {
	stop, ok := q.store.StopByID(stopID)
	if !ok {
		return nil, false
	}
	return &StopInfo{
		Stop:   stop,
		Routes: q.RoutesAtStop(stopID),
		Trips:  len(q.store.TripIDsByStop(stopID)),
	}, true
}

// A trip linking two stops, with its scheduled times at each end.
type TripConnection struct {
	Trip      *model.Trip
	Departure time.Time
	Arrival   time.Time
}

// Trips running on the date that call at fromStopID and later at
// toStopID, sorted by departure from the origin stop, then trip ID.
// Direction matters: the origin must precede the destination in the
// trip's stop sequence.
func (q *Queries) TripsBetween(fromStopID, toStopID string, date time.Time) []TripConnection {
	date = date.In(q.store.location)
	midnight := serviceMidnight(date, q.store.location)

	active := map[string]bool{}
	for _, serviceID := range q.merger.calendar.ActiveOn(date) {
		active[serviceID] = true
	}

	connections := []TripConnection{}
	for _, tripID := range q.store.TripIDsByStop(fromStopID) {
		trip, ok := q.store.TripByID(tripID)
		if !ok || !active[trip.ServiceID] {
			continue
		}

		var origin, dest *model.StopTime
		for _, st := range q.store.StopTimesForTrip(tripID) {
			if origin == nil {
				if st.StopID == fromStopID {
					origin = st
				}
				continue
			}
			if st.StopID == toStopID {
				dest = st
				break
			}
		}
		if dest == nil {
			continue
		}

		connections = append(connections, TripConnection{
			Trip:      trip,
			Departure: midnight.Add(origin.DepartureOffset()),
			Arrival:   midnight.Add(dest.ArrivalOffset()),
		})
	}

	sort.Slice(connections, func(i, j int) bool {
		if connections[i].Departure.Equal(connections[j].Departure) {
			return connections[i].Trip.ID < connections[j].Trip.ID
		}
		return connections[i].Departure.Before(connections[j].Departure)
	})
	return connections
}

func routeName(route *model.Route) string {
	if route.ShortName != "" {
		return route.ShortName
	}
	return route.LongName
}
