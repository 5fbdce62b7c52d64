package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID int8   `csv:"direction_id"`
}

func ParseTrips(writer storage.DatasetWriter, data io.Reader) error {
	tripCsv := []*TripCSV{}
	if err := gocsv.Unmarshal(data, &tripCsv); err != nil {
		return fmt.Errorf("unmarshaling trips csv: %w", err)
	}

	seen := map[string]bool{}
	for _, t := range tripCsv {
		if t.ID == "" {
			return fmt.Errorf("empty trip_id")
		}
		if seen[t.ID] {
			return fmt.Errorf("repeated trip_id '%s'", t.ID)
		}
		seen[t.ID] = true

		if t.RouteID == "" {
			return fmt.Errorf("trip '%s' has empty route_id", t.ID)
		}
		if t.ServiceID == "" {
			return fmt.Errorf("trip '%s' has empty service_id", t.ID)
		}
		if t.DirectionID != 0 && t.DirectionID != 1 {
			return fmt.Errorf("invalid direction_id '%d'", t.DirectionID)
		}

		err := writer.WriteTrip(&model.Trip{
			ID:          t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			DirectionID: t.DirectionID,
		})
		if err != nil {
			return fmt.Errorf("writing trip '%s': %w", t.ID, err)
		}
	}

	return nil
}
