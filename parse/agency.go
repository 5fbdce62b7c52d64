package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type AgencyCSV struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
}

// Returns the dataset timezone.
func ParseAgencies(writer storage.DatasetWriter, data io.Reader) (string, error) {
	agencyCsv := []*AgencyCSV{}
	if err := gocsv.Unmarshal(data, &agencyCsv); err != nil {
		return "", fmt.Errorf("unmarshaling agency csv: %w", err)
	}

	if len(agencyCsv) == 0 {
		return "", fmt.Errorf("no agency record found")
	}

	// "If multiple agencies are specified in the dataset, each
	// must have the same agency_timezone."
	tz := agencyCsv[0].Timezone
	for _, a := range agencyCsv {
		if a.Timezone != tz {
			return "", fmt.Errorf("multiple agency_timezone")
		}
	}
	if tz == "" {
		return "", fmt.Errorf("missing agency_timezone")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", fmt.Errorf("agency_timezone '%s' is invalid: %w", tz, err)
	}

	seen := map[string]bool{}
	for _, a := range agencyCsv {
		if seen[a.ID] {
			return "", fmt.Errorf("duplicated agency_id: '%s'", a.ID)
		}
		seen[a.ID] = true

		if a.Name == "" {
			return "", fmt.Errorf("missing agency_name")
		}

		err := writer.WriteAgency(&model.Agency{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			Timezone: tz,
		})
		if err != nil {
			return "", fmt.Errorf("writing agency '%s': %w", a.ID, err)
		}
	}

	return tz, nil
}
