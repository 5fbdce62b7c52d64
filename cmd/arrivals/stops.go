package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopsCmd = &cobra.Command{
	Use:   "stops <query>",
	Short: "Searches stops by name, code or ID",
	Args:  cobra.ExactArgs(1),
	RunE:  stops,
}

func stops(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}

	matches := sys.Queries.SearchStops(args[0])
	for _, stop := range matches {
		routes := sys.Queries.RoutesAtStop(stop.ID)
		fmt.Printf("%-12s %-32s %d routes\n", stop.ID, stop.Name, len(routes))
	}
	if len(matches) == 0 {
		fmt.Println("no matching stops")
	}

	return nil
}
