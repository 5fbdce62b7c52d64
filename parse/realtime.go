package parse

import (
	"context"
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"
)

// Schedule relationship of a trip in the realtime feed.
type TripScheduleRelationship int

const (
	TripScheduled TripScheduleRelationship = iota
	TripAdded
	TripCanceled
)

// A single per-stop deviation within a trip update. StopID and
// StopSequence describe the same stop; feeds may set either or both.
type StopTimeUpdate struct {
	StopID         string
	StopSequence   uint32
	ArrivalIsSet   bool
	ArrivalTime    time.Time
	ArrivalDelay   time.Duration
	DepartureIsSet bool
	DepartureTime  time.Time
	DepartureDelay time.Duration
	Skipped        bool
}

// All deviations reported for one trip. For ADDED trips the static
// schedule has no matching trip, and StopTimeUpdates carry absolute
// times rather than delays.
type TripUpdate struct {
	TripID       string
	RouteID      string
	Relationship TripScheduleRelationship
	StopTimes    []*StopTimeUpdate
}

// Contains key data from a GTFS Realtime feed.
type Realtime struct {
	// Timestamp of the feed. If loaded from multiple feeds, the
	// last one wins.
	Timestamp uint64

	// In feed order. The FeedCache keys these by trip; when a
	// feed repeats a trip, later entries win.
	Trips []*TripUpdate

	// These exist to simplify debugging down the road
	NumScheduledTrips   int
	NumAddedTrips       int
	NumCanceledTrips    int
	NumUnsupportedTrips int
}

func ParseRealtime(ctx context.Context, feeds [][]byte) (*Realtime, error) {
	rt := &Realtime{
		Trips: []*TripUpdate{},
	}

	for _, feed := range feeds {
		f := &gtfsproto.FeedMessage{}
		err := proto.Unmarshal(feed, f)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
		}

		header := f.GetHeader()

		version := header.GetGtfsRealtimeVersion()
		if version != "2.0" && version != "1.0" {
			return nil, fmt.Errorf("version %s not supported", version)
		}

		// The feed's own contract is full snapshots; a
		// differential feed cannot be swapped in wholesale.
		if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
			return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
		}

		rt.Timestamp = header.GetTimestamp()

		err = processEntities(ctx, rt, f.GetEntity())
		if err != nil {
			return nil, fmt.Errorf("processing entities: %w", err)
		}
	}

	return rt, nil
}

func processEntities(ctx context.Context, rt *Realtime, entities []*gtfsproto.FeedEntity) error {
	for _, entity := range entities {
		// We only care about TripUpdates
		if entity.TripUpdate == nil {
			continue
		}

		trip := entity.TripUpdate.Trip
		if trip == nil {
			return fmt.Errorf("trip_update missing trip")
		}

		// Blank trip ID is allowed when (route_id,
		// direction_id, start_time, start_date) uniquely
		// identifies the trip. We reconcile by exact trip ID
		// only, so such entries are skipped.
		if trip.GetTripId() == "" {
			continue
		}

		update := &TripUpdate{
			TripID:  trip.GetTripId(),
			RouteID: trip.GetRouteId(),
		}

		switch sr := trip.GetScheduleRelationship(); sr {

		case gtfsproto.TripDescriptor_SCHEDULED:
			update.Relationship = TripScheduled
			rt.NumScheduledTrips++

		case gtfsproto.TripDescriptor_ADDED:
			update.Relationship = TripAdded
			rt.NumAddedTrips++

		case gtfsproto.TripDescriptor_CANCELED:
			update.Relationship = TripCanceled
			rt.NumCanceledTrips++

		default:
			// UNSCHEDULED and DUPLICATED, for frequency
			// based and copied trips. Not supported.
			rt.NumUnsupportedTrips++
			continue
		}

		for _, stup := range entity.TripUpdate.GetStopTimeUpdate() {
			err := processStopTimeUpdate(ctx, update, stup)
			if err != nil {
				return fmt.Errorf("processing stop time update: %w", err)
			}
		}

		rt.Trips = append(rt.Trips, update)
	}

	return nil
}

func processStopTimeUpdate(
	ctx context.Context,
	trip *TripUpdate,
	update *gtfsproto.TripUpdate_StopTimeUpdate,
) error {

	stup := &StopTimeUpdate{
		StopID:       update.GetStopId(),
		StopSequence: uint32(update.GetStopSequence()),
	}

	if update.Arrival != nil {
		stup.ArrivalIsSet = true
		if unix := int64(update.GetArrival().GetTime()); unix != 0 {
			stup.ArrivalTime = time.Unix(unix, 0).UTC()
		}
		stup.ArrivalDelay = time.Duration(update.GetArrival().GetDelay()) * time.Second
	}

	if update.Departure != nil {
		stup.DepartureIsSet = true
		if unix := int64(update.GetDeparture().GetTime()); unix != 0 {
			stup.DepartureTime = time.Unix(unix, 0).UTC()
		}
		stup.DepartureDelay = time.Duration(update.GetDeparture().GetDelay()) * time.Second
	}

	if stup.StopID == "" && stup.StopSequence == 0 {
		// XXX: StopSequence 0 is actually allowed by
		// spec. This may cause problems.
		return fmt.Errorf("stop_time_update missing stop_id and stop_sequence")
	}

	switch sr := update.GetScheduleRelationship(); sr {

	case gtfsproto.TripUpdate_StopTimeUpdate_SCHEDULED:
		trip.StopTimes = append(trip.StopTimes, stup)

	case gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED:
		stup.Skipped = true
		trip.StopTimes = append(trip.StopTimes, stup)

	case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
		// Static schedule applies; nothing to record.

	case gtfsproto.TripUpdate_StopTimeUpdate_UNSCHEDULED:
		// For frequency based trips. Not supported!
	}

	return nil
}
