package parse

import (
	"context"
	"testing"
	"time"

	p "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"
)

func TestParseRealtimeBadHeader(t *testing.T) {
	// This one's fine
	incrementality := p.FeedHeader_FULL_DATASET
	data, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(1702473763),
		},
	})
	require.NoError(t, err)
	_, err = ParseRealtime(context.Background(), [][]byte{data})
	assert.NoError(t, err)

	// Unsupported version
	data, err = proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("3.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(1702473763),
		},
	})
	require.NoError(t, err)
	_, err = ParseRealtime(context.Background(), [][]byte{data})
	assert.Error(t, err)

	// Unsupported incrementality
	incrementality = p.FeedHeader_DIFFERENTIAL
	data, err = proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(1702473763),
		},
	})
	require.NoError(t, err)
	_, err = ParseRealtime(context.Background(), [][]byte{data})
	assert.Error(t, err)
}

func TestParseRealtimeNoUpdates(t *testing.T) {
	data, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      p.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(1702473763),
		},
	})
	require.NoError(t, err)

	rt, err := ParseRealtime(context.Background(), [][]byte{data})
	require.NoError(t, err)
	assert.Equal(t, 0, len(rt.Trips))
	assert.Equal(t, uint64(1702473763), rt.Timestamp)
}

func TestParseRealtimeScheduleRelationships(t *testing.T) {
	data, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: []*p.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId:               proto.String("trip1"),
						RouteId:              proto.String("route1"),
						ScheduleRelationship: p.TripDescriptor_SCHEDULED.Enum(),
					},
				},
			},
			{
				Id: proto.String("e2"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId:               proto.String("trip2"),
						RouteId:              proto.String("route2"),
						ScheduleRelationship: p.TripDescriptor_ADDED.Enum(),
					},
				},
			},
			{
				Id: proto.String("e3"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId:               proto.String("trip3"),
						ScheduleRelationship: p.TripDescriptor_CANCELED.Enum(),
					},
				},
			},
			{
				Id: proto.String("e4"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId:               proto.String("trip4"),
						ScheduleRelationship: p.TripDescriptor_UNSCHEDULED.Enum(),
					},
				},
			},
		},
	})
	require.NoError(t, err)

	rt, err := ParseRealtime(context.Background(), [][]byte{data})
	require.NoError(t, err)

	require.Equal(t, 3, len(rt.Trips))
	assert.Equal(t, "trip1", rt.Trips[0].TripID)
	assert.Equal(t, "route1", rt.Trips[0].RouteID)
	assert.Equal(t, TripScheduled, rt.Trips[0].Relationship)
	assert.Equal(t, "trip2", rt.Trips[1].TripID)
	assert.Equal(t, TripAdded, rt.Trips[1].Relationship)
	assert.Equal(t, "trip3", rt.Trips[2].TripID)
	assert.Equal(t, TripCanceled, rt.Trips[2].Relationship)

	assert.Equal(t, 1, rt.NumScheduledTrips)
	assert.Equal(t, 1, rt.NumAddedTrips)
	assert.Equal(t, 1, rt.NumCanceledTrips)
	assert.Equal(t, 1, rt.NumUnsupportedTrips)
}

func TestParseRealtimeStopTimeUpdates(t *testing.T) {
	data, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: []*p.FeedEntity{
			{
				Id: proto.String("entity1"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId:               proto.String("trip1"),
						ScheduleRelationship: p.TripDescriptor_SCHEDULED.Enum(),
					},
					StopTimeUpdate: []*p.TripUpdate_StopTimeUpdate{
						// Both arrival and departure set
						{
							StopSequence: proto.Uint32(4),
							StopId:       proto.String("stop1"),
							Arrival: &p.TripUpdate_StopTimeEvent{
								Time:  proto.Int64(time.Date(2015, 1, 2, 3, 3, 2, 0, time.UTC).Unix()),
								Delay: proto.Int32(47),
							},
							Departure: &p.TripUpdate_StopTimeEvent{
								Time:  proto.Int64(time.Date(2015, 1, 2, 3, 3, 4, 0, time.UTC).Unix()),
								Delay: proto.Int32(48),
							},
						},
						// Only arrival set
						{
							StopSequence: proto.Uint32(5),
							StopId:       proto.String("stop2"),
							Arrival: &p.TripUpdate_StopTimeEvent{
								Delay: proto.Int32(49),
							},
						},
						// Skipped stop
						{
							StopSequence:         proto.Uint32(6),
							StopId:               proto.String("stop3"),
							ScheduleRelationship: p.TripUpdate_StopTimeUpdate_SKIPPED.Enum(),
						},
						// NO_DATA stop is not recorded
						{
							StopSequence:         proto.Uint32(7),
							StopId:               proto.String("stop4"),
							ScheduleRelationship: p.TripUpdate_StopTimeUpdate_NO_DATA.Enum(),
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	rt, err := ParseRealtime(context.Background(), [][]byte{data})
	require.NoError(t, err)
	require.Equal(t, 1, len(rt.Trips))

	stups := rt.Trips[0].StopTimes
	require.Equal(t, 3, len(stups))

	assert.Equal(t, "stop1", stups[0].StopID)
	assert.Equal(t, uint32(4), stups[0].StopSequence)
	assert.True(t, stups[0].ArrivalIsSet)
	assert.Equal(t, time.Date(2015, 1, 2, 3, 3, 2, 0, time.UTC), stups[0].ArrivalTime)
	assert.Equal(t, 47*time.Second, stups[0].ArrivalDelay)
	assert.True(t, stups[0].DepartureIsSet)
	assert.Equal(t, time.Date(2015, 1, 2, 3, 3, 4, 0, time.UTC), stups[0].DepartureTime)
	assert.Equal(t, 48*time.Second, stups[0].DepartureDelay)

	assert.Equal(t, "stop2", stups[1].StopID)
	assert.True(t, stups[1].ArrivalIsSet)
	assert.True(t, stups[1].ArrivalTime.IsZero())
	assert.Equal(t, 49*time.Second, stups[1].ArrivalDelay)
	assert.False(t, stups[1].DepartureIsSet)

	assert.Equal(t, "stop3", stups[2].StopID)
	assert.True(t, stups[2].Skipped)
}

func TestParseRealtimeMultipleFeeds(t *testing.T) {
	feed1, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(100),
		},
		Entity: []*p.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId: proto.String("trip1"),
					},
				},
			},
		},
	})
	require.NoError(t, err)

	feed2, err := proto.Marshal(&p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(200),
		},
		Entity: []*p.FeedEntity{
			{
				Id: proto.String("e1"),
				TripUpdate: &p.TripUpdate{
					Trip: &p.TripDescriptor{
						TripId: proto.String("trip2"),
					},
				},
			},
		},
	})
	require.NoError(t, err)

	rt, err := ParseRealtime(context.Background(), [][]byte{feed1, feed2})
	require.NoError(t, err)

	// Last feed's timestamp wins, trips accumulate in feed order
	assert.Equal(t, uint64(200), rt.Timestamp)
	require.Equal(t, 2, len(rt.Trips))
	assert.Equal(t, "trip1", rt.Trips[0].TripID)
	assert.Equal(t, "trip2", rt.Trips[1].TripID)
}
