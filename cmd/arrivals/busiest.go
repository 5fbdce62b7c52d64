package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var busiestCmd = &cobra.Command{
	Use:   "busiest",
	Short: "Lists the stops with the most arrivals today",
	Args:  cobra.NoArgs,
	RunE:  busiest,
}

var busiestN int

func init() {
	busiestCmd.Flags().IntVarP(&busiestN, "limit", "l", 10, "Number of stops to show")
}

func busiest(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}

	for i, sa := range sys.Queries.BusiestStops(time.Now(), busiestN) {
		fmt.Printf("%2d. %-32s %5d arrivals\n", i+1, sa.StopName, sa.Arrivals)
	}

	return nil
}
