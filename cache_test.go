package arrivals_test

import (
	"context"
	"testing"

	p "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"

	"github.com/transitboard/arrivals"
)

// Marshals a realtime feed for tests.
func buildFeed(t *testing.T, timestamp uint64, entities []*p.FeedEntity) []byte {
	data, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      p.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(timestamp),
		},
		Entity: entities,
	})
	require.NoError(t, err)
	return data
}

func tripUpdateEntity(
	id string,
	tripID string,
	routeID string,
	relationship p.TripDescriptor_ScheduleRelationship,
	stups []*p.TripUpdate_StopTimeUpdate,
) *p.FeedEntity {
	return &p.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &p.TripUpdate{
			Trip: &p.TripDescriptor{
				TripId:               proto.String(tripID),
				RouteId:              proto.String(routeID),
				ScheduleRelationship: relationship.Enum(),
			},
			StopTimeUpdate: stups,
		},
	}
}

func delayUpdate(stopID string, seq uint32, delaySeconds int32) *p.TripUpdate_StopTimeUpdate {
	return &p.TripUpdate_StopTimeUpdate{
		StopId:       proto.String(stopID),
		StopSequence: proto.Uint32(seq),
		Arrival: &p.TripUpdate_StopTimeEvent{
			Delay: proto.Int32(delaySeconds),
		},
	}
}

func TestFeedCacheRefresh(t *testing.T) {
	cache := arrivals.NewFeedCache()

	assert.True(t, cache.Refreshed().IsZero())
	assert.Equal(t, uint64(0), cache.Timestamp())
	_, ok := cache.UpdateForTrip("t1")
	assert.False(t, ok)

	feed := buildFeed(t, 1000, []*p.FeedEntity{
		tripUpdateEntity("e1", "t1", "r1", p.TripDescriptor_SCHEDULED, []*p.TripUpdate_StopTimeUpdate{
			delayUpdate("s1", 1, 60),
		}),
	})
	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))

	assert.False(t, cache.Refreshed().IsZero())
	assert.Equal(t, uint64(1000), cache.Timestamp())

	update, ok := cache.UpdateForTrip("t1")
	require.True(t, ok)
	assert.Equal(t, "r1", update.RouteID)
	require.Equal(t, 1, len(update.StopTimes))
}

func TestFeedCacheRefreshReplacesSnapshot(t *testing.T) {
	cache := arrivals.NewFeedCache()

	feed := buildFeed(t, 1000, []*p.FeedEntity{
		tripUpdateEntity("e1", "t1", "r1", p.TripDescriptor_SCHEDULED, nil),
	})
	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))

	// New snapshot drops t1 entirely
	feed = buildFeed(t, 2000, []*p.FeedEntity{
		tripUpdateEntity("e1", "t2", "r1", p.TripDescriptor_SCHEDULED, nil),
	})
	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))

	_, ok := cache.UpdateForTrip("t1")
	assert.False(t, ok)
	_, ok = cache.UpdateForTrip("t2")
	assert.True(t, ok)
	assert.Equal(t, uint64(2000), cache.Timestamp())
}

func TestFeedCacheEmptyRefreshIsValid(t *testing.T) {
	cache := arrivals.NewFeedCache()

	feed := buildFeed(t, 1000, []*p.FeedEntity{
		tripUpdateEntity("e1", "t1", "r1", p.TripDescriptor_SCHEDULED, nil),
	})
	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))

	// A feed with zero entries clears all deltas
	require.NoError(t, cache.Refresh(context.Background(), [][]byte{buildFeed(t, 2000, nil)}))

	_, ok := cache.UpdateForTrip("t1")
	assert.False(t, ok)
	assert.Equal(t, 0, len(cache.Trips()))

	// But the cache counts as refreshed, unlike before the first
	// fetch
	assert.False(t, cache.Refreshed().IsZero())
}

func TestFeedCacheFailedRefreshKeepsSnapshot(t *testing.T) {
	cache := arrivals.NewFeedCache()

	feed := buildFeed(t, 1000, []*p.FeedEntity{
		tripUpdateEntity("e1", "t1", "r1", p.TripDescriptor_SCHEDULED, nil),
	})
	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))

	err := cache.Refresh(context.Background(), [][]byte{[]byte("not a protobuf")})
	require.Error(t, err)

	var fetchErr *arrivals.FetchError
	assert.ErrorAs(t, err, &fetchErr)

	// Previous snapshot still in place
	_, ok := cache.UpdateForTrip("t1")
	assert.True(t, ok)
	assert.Equal(t, uint64(1000), cache.Timestamp())
}

func TestFeedCacheRefreshIdempotent(t *testing.T) {
	cache := arrivals.NewFeedCache()

	feed := buildFeed(t, 1000, []*p.FeedEntity{
		tripUpdateEntity("e1", "t1", "r1", p.TripDescriptor_SCHEDULED, []*p.TripUpdate_StopTimeUpdate{
			delayUpdate("s1", 1, 120),
		}),
	})

	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))
	first := cache.Trips()

	require.NoError(t, cache.Refresh(context.Background(), [][]byte{feed}))
	second := cache.Trips()

	assert.Equal(t, first, second)
}
