package arrivals

import (
	"sort"
	"time"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/parse"
)

// Merger is the reconciliation core: it joins the scheduled stop
// times active on a date with the realtime snapshot, by exact trip ID
// string match. Trips present only in the feed come out flagged
// Added; trips present only in the schedule come out scheduled-only.
type Merger struct {
	store    *Store
	calendar *ServiceCalendar
	cache    *FeedCache
}

// Narrows an Arrivals call. Zero values mean no filtering. An ID that
// matches nothing yields an empty result, not an error.
type Filter struct {
	StopID  string
	RouteID string
}

func NewMerger(store *Store, calendar *ServiceCalendar, cache *FeedCache) *Merger {
	return &Merger{
		store:    store,
		calendar: calendar,
		cache:    cache,
	}
}

// Returns unified arrivals for a service date, ordered by effective
// time, ties broken by trip ID. The cache never having been refreshed
// is not an error; results are then scheduled-only.
func (m *Merger) Arrivals(date time.Time, filter Filter) []*model.UnifiedArrival {
	// All schedule arithmetic happens in the dataset's timezone.
	date = date.In(m.store.location)
	midnight := serviceMidnight(date, m.store.location)

	active := map[string]bool{}
	for _, serviceID := range m.calendar.ActiveOn(date) {
		active[serviceID] = true
	}

	var tripIDs []string
	if filter.StopID != "" {
		tripIDs = m.store.TripIDsByStop(filter.StopID)
	} else {
		for tripID := range m.store.tripsByID {
			tripIDs = append(tripIDs, tripID)
		}
	}

	arrivals := []*model.UnifiedArrival{}

	for _, tripID := range tripIDs {
		trip := m.store.tripsByID[tripID]
		if !active[trip.ServiceID] {
			continue
		}
		if filter.RouteID != "" && trip.RouteID != filter.RouteID {
			continue
		}

		stopTimes := m.store.StopTimesForTrip(tripID)
		update, hasUpdate := m.cache.UpdateForTrip(tripID)

		var deltas *tripDeltas
		if hasUpdate && update.Relationship != parse.TripCanceled {
			deltas = resolveDeltas(update, stopTimes, midnight)
		}

		for _, st := range stopTimes {
			if filter.StopID != "" && st.StopID != filter.StopID {
				continue
			}

			arrival := &model.UnifiedArrival{
				TripID:    tripID,
				RouteID:   trip.RouteID,
				StopID:    st.StopID,
				Headsign:  trip.Headsign,
				Scheduled: midnight.Add(st.ArrivalOffset()),
			}

			if hasUpdate && update.Relationship == parse.TripCanceled {
				// Cancelled trips keep their scheduled
				// time for identification but never
				// get a realtime prediction.
				arrival.Cancelled = true
				arrivals = append(arrivals, arrival)
				continue
			}

			if deltas != nil {
				delay, skipped, ok := deltas.at(st.StopSequence)
				if skipped {
					continue
				}
				if ok {
					arrival.Delay = delay
					arrival.Realtime = arrival.Scheduled.Add(delay)
				}
			}

			arrivals = append(arrivals, arrival)
		}
	}

	arrivals = append(arrivals, m.addedArrivals(filter)...)

	sort.Slice(arrivals, func(i, j int) bool {
		ti, tj := arrivals[i].EffectiveTime(), arrivals[j].EffectiveTime()
		if ti.Equal(tj) {
			return arrivals[i].TripID < arrivals[j].TripID
		}
		return ti.Before(tj)
	})

	return arrivals
}

// Midnight of a service date, derived as noon minus 12h so that
// service days spanning a DST switch keep their GTFS offsets.
func serviceMidnight(date time.Time, loc *time.Location) time.Time {
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, loc)
	return noon.Add(-12 * time.Hour)
}

// Feed entries whose trip ID has no static match. Their times come
// straight from the feed since there is no schedule to apply a delay
// to.
func (m *Merger) addedArrivals(filter Filter) []*model.UnifiedArrival {
	arrivals := []*model.UnifiedArrival{}

	for _, update := range m.cache.Trips() {
		if _, ok := m.store.TripByID(update.TripID); ok {
			continue
		}
		if filter.RouteID != "" && update.RouteID != filter.RouteID {
			continue
		}

		cancelled := update.Relationship == parse.TripCanceled

		for _, stup := range update.StopTimes {
			if stup.StopID == "" || stup.Skipped {
				continue
			}
			if filter.StopID != "" && stup.StopID != filter.StopID {
				continue
			}

			arrival := &model.UnifiedArrival{
				TripID:    update.TripID,
				RouteID:   update.RouteID,
				StopID:    stup.StopID,
				Added:     true,
				Cancelled: cancelled,
			}
			if !cancelled {
				switch {
				case stup.ArrivalIsSet && !stup.ArrivalTime.IsZero():
					arrival.Realtime = stup.ArrivalTime.In(m.store.location)
				case stup.DepartureIsSet && !stup.DepartureTime.IsZero():
					arrival.Realtime = stup.DepartureTime.In(m.store.location)
				default:
					// Delay-only data is meaningless
					// without a schedule.
					continue
				}
			}

			arrivals = append(arrivals, arrival)
		}
	}

	return arrivals
}

// Per-trip realtime deltas resolved against the static stop times,
// ready for sequence lookup.
type tripDeltas struct {
	seqs  []uint32
	bySeq map[uint32]*stopDelta
}

type stopDelta struct {
	delay   time.Duration
	skipped bool
}

// Returns the delta applying at a stop sequence. A delta for an
// earlier stop propagates forward until superseded; a skipped earlier
// stop is stepped over.
func (d *tripDeltas) at(seq uint32) (delay time.Duration, skipped bool, ok bool) {
	idx := sort.Search(len(d.seqs), func(i int) bool {
		return d.seqs[i] > seq
	})
	idx--

	if idx < 0 {
		return 0, false, false
	}

	delta := d.bySeq[d.seqs[idx]]
	if delta.skipped {
		if d.seqs[idx] == seq {
			return 0, true, false
		}
		for idx >= 0 && d.bySeq[d.seqs[idx]].skipped {
			idx--
		}
		if idx < 0 {
			return 0, false, false
		}
		delta = d.bySeq[d.seqs[idx]]
	}

	return delta.delay, false, true
}

// Resolves a trip's StopTimeUpdates into per-sequence deltas. Updates
// may reference stops by stop_id only; the static stop times supply
// the sequence. Walks in feed order overwriting, so when the same
// stop appears twice, the last entry wins.
func resolveDeltas(update *parse.TripUpdate, stopTimes []*model.StopTime, midnight time.Time) *tripDeltas {
	seqByStopID := map[string]uint32{}
	stopTimeBySeq := map[uint32]*model.StopTime{}
	for _, st := range stopTimes {
		if _, seen := seqByStopID[st.StopID]; !seen {
			seqByStopID[st.StopID] = st.StopSequence
		}
		stopTimeBySeq[st.StopSequence] = st
	}

	deltas := &tripDeltas{bySeq: map[uint32]*stopDelta{}}

	for _, stup := range update.StopTimes {
		seq := stup.StopSequence
		if seq == 0 && stup.StopID != "" {
			resolved, ok := seqByStopID[stup.StopID]
			if !ok {
				continue
			}
			seq = resolved
		}
		st, ok := stopTimeBySeq[seq]
		if !ok {
			continue
		}

		if stup.Skipped {
			deltas.bySeq[seq] = &stopDelta{skipped: true}
			continue
		}

		delay, ok := updateDelay(stup, st, midnight)
		if !ok {
			continue
		}
		deltas.bySeq[seq] = &stopDelta{delay: delay}
	}

	deltas.seqs = make([]uint32, 0, len(deltas.bySeq))
	for seq := range deltas.bySeq {
		deltas.seqs = append(deltas.seqs, seq)
	}
	sort.Slice(deltas.seqs, func(i, j int) bool {
		return deltas.seqs[i] < deltas.seqs[j]
	})

	return deltas
}

// Computes the arrival delay an update expresses at its own stop.
// Feeds communicate delays either as signed seconds or as absolute
// timestamps; in the latter case the delay is the difference against
// the static schedule. Departure data stands in when arrival data is
// absent, with early departures clamped since a trip can't leave
// before its schedule allows.
func updateDelay(stup *parse.StopTimeUpdate, st *model.StopTime, midnight time.Time) (time.Duration, bool) {
	if stup.ArrivalIsSet {
		if !stup.ArrivalTime.IsZero() && stup.ArrivalDelay == 0 {
			return stup.ArrivalTime.Sub(midnight.Add(st.ArrivalOffset())), true
		}
		return stup.ArrivalDelay, true
	}

	if stup.DepartureIsSet {
		if !stup.DepartureTime.IsZero() && stup.DepartureDelay == 0 {
			return stup.DepartureTime.Sub(midnight.Add(st.DepartureOffset())), true
		}
		return max(stup.DepartureDelay, 0), true
	}

	return 0, false
}
