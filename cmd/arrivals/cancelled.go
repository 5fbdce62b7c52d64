package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cancelledCmd = &cobra.Command{
	Use:   "cancelled",
	Short: "Lists trips cancelled in the realtime feed today",
	Args:  cobra.NoArgs,
	RunE:  cancelled,
}

func cancelled(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}

	trips := sys.Queries.CancelledTrips(time.Now())
	if len(trips) == 0 {
		fmt.Println("no cancelled trips")
		return nil
	}

	for _, trip := range trips {
		fmt.Printf("%-16s %-8s %s\n", trip.TripID, trip.RouteID, trip.Headsign)
	}

	return nil
}
