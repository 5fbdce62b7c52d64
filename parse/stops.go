package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type StopCSV struct {
	ID   string  `csv:"stop_id"`
	Code string  `csv:"stop_code"`
	Name string  `csv:"stop_name"`
	Lat  float64 `csv:"stop_lat"`
	Lon  float64 `csv:"stop_lon"`
}

func ParseStops(writer storage.DatasetWriter, data io.Reader) error {
	stopCsv := []*StopCSV{}
	if err := gocsv.Unmarshal(data, &stopCsv); err != nil {
		return fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	seen := map[string]bool{}
	for _, s := range stopCsv {
		if s.ID == "" {
			return fmt.Errorf("empty stop_id")
		}
		if seen[s.ID] {
			return fmt.Errorf("repeated stop_id '%s'", s.ID)
		}
		seen[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("empty stop_name for stop_id '%s'", s.ID)
		}

		err := writer.WriteStop(&model.Stop{
			ID:   s.ID,
			Code: s.Code,
			Name: s.Name,
			Lat:  s.Lat,
			Lon:  s.Lon,
		})
		if err != nil {
			return fmt.Errorf("writing stop '%s': %w", s.ID, err)
		}
	}

	return nil
}
