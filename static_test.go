package arrivals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitboard/arrivals"
	"github.com/transitboard/arrivals/testutil"
)

func testStore(t *testing.T) *arrivals.Store {
	return testutil.BuildStore(t, "memory", map[string][]string{
		"routes.txt": {
			"route_id,route_short_name,route_type",
			"r1,R1,3",
			"r2,R2,3",
		},
		"trips.txt": {
			"trip_id,route_id,service_id,trip_headsign",
			"t1,r1,wd,Downtown",
			"t2,r2,wd,Uptown",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon",
			"s1,Main St,40.1,-75.2",
			"s2,Elm St,40.2,-75.3",
			"s3,Oak St,40.3,-75.4",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,8:00:00,8:00:30",
			"t1,s2,2,8:10:00,8:10:30",
			"t2,s2,1,9:00:00,9:00:30",
			"t2,s3,2,9:10:00,9:10:30",
		},
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"wd,1,1,1,1,1,0,0,20260101,20261231",
		},
	})
}

func TestStoreLookups(t *testing.T) {
	store := testStore(t)

	stop, ok := store.StopByID("s1")
	require.True(t, ok)
	assert.Equal(t, "Main St", stop.Name)

	trip, ok := store.TripByID("t2")
	require.True(t, ok)
	assert.Equal(t, "r2", trip.RouteID)
	assert.Equal(t, "Uptown", trip.Headsign)

	route, ok := store.RouteByID("r1")
	require.True(t, ok)
	assert.Equal(t, "R1", route.ShortName)

	// Absent IDs are not found, never an error
	_, ok = store.StopByID("nope")
	assert.False(t, ok)
	_, ok = store.TripByID("nope")
	assert.False(t, ok)
	_, ok = store.RouteByID("nope")
	assert.False(t, ok)
}

func TestStoreStopTimesSorted(t *testing.T) {
	store := testStore(t)

	sts := store.StopTimesForTrip("t1")
	require.Equal(t, 2, len(sts))
	assert.Equal(t, uint32(1), sts[0].StopSequence)
	assert.Equal(t, "s1", sts[0].StopID)
	assert.Equal(t, uint32(2), sts[1].StopSequence)
	assert.Equal(t, "s2", sts[1].StopID)

	assert.Nil(t, store.StopTimesForTrip("nope"))
}

func TestStoreReverseIndex(t *testing.T) {
	store := testStore(t)

	assert.Equal(t, []string{"t1"}, store.TripIDsByStop("s1"))
	assert.Equal(t, []string{"t1", "t2"}, store.TripIDsByStop("s2"))
	assert.Equal(t, []string{"t2"}, store.TripIDsByStop("s3"))
	assert.Nil(t, store.TripIDsByStop("nope"))
}

func TestStoreDropsUnresolvableStopTimes(t *testing.T) {
	store := testutil.BuildStore(t, "memory", map[string][]string{
		"trips.txt": {
			"trip_id,route_id,service_id",
			"t1,r,default",
		},
		"stops.txt": {
			"stop_id,stop_name",
			"s1,Main St",
		},
		"stop_times.txt": {
			"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
			"t1,s1,1,8:00:00,8:00:00",
			"ghost_trip,s1,1,9:00:00,9:00:00",
			"t1,ghost_stop,2,10:00:00,10:00:00",
		},
	})

	assert.Equal(t, 2, store.DroppedStopTimes())
	assert.Equal(t, 1, len(store.StopTimesForTrip("t1")))
	assert.Nil(t, store.StopTimesForTrip("ghost_trip"))
}

func TestStoreTimezone(t *testing.T) {
	store := testutil.BuildStore(t, "memory", map[string][]string{
		"agency.txt": {
			"agency_name,agency_url,agency_timezone",
			"Transit Co,http://example.com,America/New_York",
		},
	})

	assert.Equal(t, "America/New_York", store.Location().String())
}
