package parse

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/transitboard/arrivals/model"
	"github.com/transitboard/arrivals/storage"
)

type RouteCSV struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Type      string `csv:"route_type"`
}

func legalRouteType(t model.RouteType) bool {
	if t >= 0 && t <= 7 {
		return true
	}
	return t == model.RouteTypeTrolleybus || t == model.RouteTypeMonorail
}

func ParseRoutes(writer storage.DatasetWriter, data io.Reader) error {
	routeCsv := []*RouteCSV{}
	if err := gocsv.Unmarshal(data, &routeCsv); err != nil {
		return fmt.Errorf("unmarshaling routes: %w", err)
	}

	seen := map[string]bool{}
	for _, r := range routeCsv {
		if r.ID == "" {
			return fmt.Errorf("route has no route_id")
		}
		if seen[r.ID] {
			return fmt.Errorf("repeated route_id: '%s'", r.ID)
		}
		seen[r.ID] = true

		if r.ShortName == "" && r.LongName == "" {
			return fmt.Errorf("route_id '%s' has no short_name or long_name", r.ID)
		}

		if r.Type == "" {
			return fmt.Errorf("route_id '%s' has no route_type", r.ID)
		}
		routeType, err := strconv.Atoi(r.Type)
		if err != nil {
			return fmt.Errorf("route_id '%s' has invalid route_type: %w", r.ID, err)
		}
		if !legalRouteType(model.RouteType(routeType)) {
			return fmt.Errorf("route_id '%s' has invalid route_type: %d", r.ID, routeType)
		}

		err = writer.WriteRoute(&model.Route{
			ID:        r.ID,
			AgencyID:  r.AgencyID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      model.RouteType(routeType),
		})
		if err != nil {
			return fmt.Errorf("writing route '%s': %w", r.ID, err)
		}
	}

	return nil
}
