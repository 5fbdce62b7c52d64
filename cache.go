package arrivals

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/transitboard/arrivals/parse"
)

// FeedCache holds the most recent realtime snapshot. Refresh swaps in
// a fully built replacement, so readers never observe a half-applied
// feed. There is no expiry; staleness is the caller's call, via
// Refreshed and Timestamp.
type FeedCache struct {
	snapshot atomic.Pointer[feedSnapshot]
}

// Immutable once stored in the cache.
type feedSnapshot struct {
	timestamp     uint64
	refreshedAt   time.Time
	updatesByTrip map[string]*parse.TripUpdate

	// Trip IDs in feed order of first appearance.
	order []string
}

func NewFeedCache() *FeedCache {
	return &FeedCache{}
}

// Replaces the entire snapshot with the content of feeds. All or
// nothing: on error the previous snapshot stays in place. A feed with
// zero trip updates is valid and clears all deltas.
func (c *FeedCache) Refresh(ctx context.Context, feeds [][]byte) error {
	realtime, err := parse.ParseRealtime(ctx, feeds)
	if err != nil {
		return &FetchError{Cause: err}
	}

	snap := &feedSnapshot{
		timestamp:     realtime.Timestamp,
		refreshedAt:   time.Now().UTC(),
		updatesByTrip: map[string]*parse.TripUpdate{},
	}

	for _, trip := range realtime.Trips {
		prev, seen := snap.updatesByTrip[trip.TripID]
		if !seen {
			snap.updatesByTrip[trip.TripID] = trip
			snap.order = append(snap.order, trip.TripID)
			continue
		}

		// A repeated trip entity shouldn't happen in a full
		// snapshot feed. When it does, the later entity's
		// relationship wins, and its stop updates go after
		// the earlier ones so later-in-feed-order entries
		// take precedence downstream.
		merged := &parse.TripUpdate{
			TripID:       trip.TripID,
			RouteID:      trip.RouteID,
			Relationship: trip.Relationship,
			StopTimes:    append(append([]*parse.StopTimeUpdate{}, prev.StopTimes...), trip.StopTimes...),
		}
		if merged.RouteID == "" {
			merged.RouteID = prev.RouteID
		}
		snap.updatesByTrip[trip.TripID] = merged
	}

	c.snapshot.Store(snap)
	return nil
}

// Returns the update for a trip, if the snapshot has one.
func (c *FeedCache) UpdateForTrip(tripID string) (*parse.TripUpdate, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil, false
	}
	update, ok := snap.updatesByTrip[tripID]
	return update, ok
}

// All trip updates in the snapshot, in feed order. Nil if the cache
// has never been refreshed.
func (c *FeedCache) Trips() []*parse.TripUpdate {
	snap := c.snapshot.Load()
	if snap == nil {
		return nil
	}
	trips := make([]*parse.TripUpdate, 0, len(snap.order))
	for _, tripID := range snap.order {
		trips = append(trips, snap.updatesByTrip[tripID])
	}
	return trips
}

// The feed header timestamp of the current snapshot. Zero if never
// refreshed.
func (c *FeedCache) Timestamp() uint64 {
	snap := c.snapshot.Load()
	if snap == nil {
		return 0
	}
	return snap.timestamp
}

// When the current snapshot was stored. The zero time means the cache
// has never been successfully refreshed, which is distinct from a
// refresh that yielded zero entries.
func (c *FeedCache) Refreshed() time.Time {
	snap := c.snapshot.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.refreshedAt
}
