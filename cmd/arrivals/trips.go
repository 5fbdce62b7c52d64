package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tripsDate string

var tripsCmd = &cobra.Command{
	Use:   "trips <from-stop-id> <to-stop-id>",
	Short: "Lists trips running between two stops",
	Args:  cobra.ExactArgs(2),
	RunE:  trips,
}

func init() {
	tripsCmd.Flags().StringVar(&tripsDate, "date", "", "service date (YYYY-MM-DD, default today)")
}

func trips(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}

	date := time.Now()
	if tripsDate != "" {
		date, err = time.ParseInLocation("2006-01-02", tripsDate, sys.Store.Location())
		if err != nil {
			return fmt.Errorf("bad date %q: %w", tripsDate, err)
		}
	}

	connections := sys.Queries.TripsBetween(args[0], args[1], date)
	if len(connections) == 0 {
		fmt.Println("no trips found")
		return nil
	}

	for _, c := range connections {
		fmt.Printf("%-8s %-16s %-24s %s\n",
			c.Departure.Format("15:04"),
			c.Trip.ID,
			c.Trip.Headsign,
			c.Arrival.Format("15:04"),
		)
	}

	return nil
}
