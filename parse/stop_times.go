package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  uint32 `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	PickupType    int8   `csv:"pickup_type"`
	DropOffType   int8   `csv:"drop_off_type"`
}

// Normalizes "H:MM:SS" or "HH:MM:SS" (hours may exceed 24) to
// "HHMMSS".
func parseStopTimeTime(s string) (string, error) {
	split := strings.Split(s, ":")
	if len(split) != 3 {
		return "", fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return "", fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 99 {
		return "", fmt.Errorf("invalid hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return "", fmt.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return "", fmt.Errorf("invalid second in '%s'", s)
	}

	return fmt.Sprintf("%02d%02d%02d", hms[0], hms[1], hms[2]), nil
}

// Returns the max arrival and departure values seen, on form
// "HHMMSS". These bound how far a service day's trips run past
// midnight.
func ParseStopTimes(writer storage.DatasetWriter, data io.Reader) (string, string, error) {
	stopSeq := map[string][]uint32{}

	maxArrival := "000000"
	maxDeparture := "000000"

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopTimeCSV) error {
		i += 1
		if st.TripID == "" {
			return fmt.Errorf("missing trip_id (row %d)", i+1)
		}
		if st.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", i+1)
		}

		arrivalTime, err := parseStopTimeTime(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", i+1)
		}

		departureTime, err := parseStopTimeTime(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", i+1)
		}

		stopSeq[st.TripID] = append(stopSeq[st.TripID], st.StopSequence)

		if arrivalTime > maxArrival {
			maxArrival = arrivalTime
		}
		if departureTime > maxDeparture {
			maxDeparture = departureTime
		}

		err = writer.WriteStopTime(&model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			StopSequence: st.StopSequence,
			Arrival:      arrivalTime,
			Departure:    departureTime,
			PickupType:   st.PickupType,
			DropOffType:  st.DropOffType,
		})
		if err != nil {
			return errors.Wrapf(err, "writing stop_time (row %d)", i+1)
		}

		return nil
	})
	if err != nil {
		return "", "", errors.Wrap(err, "unmarshaling stop_times csv")
	}

	// stop_sequence must be unique within each trip; it defines
	// ordering along the trip.
	for tripID, seq := range stopSeq {
		seqSeen := map[uint32]bool{}
		for _, s := range seq {
			if seqSeen[s] {
				return "", "", fmt.Errorf("duplicate stop_sequence %d for trip_id '%s'", s, tripID)
			}
			seqSeen[s] = true
		}
	}

	return maxArrival, maxDeparture, nil
}
