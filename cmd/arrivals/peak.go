package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var peakCmd = &cobra.Command{
	Use:   "peak",
	Short: "Shows arrival counts per hour of day for today",
	Args:  cobra.NoArgs,
	RunE:  peak,
}

func peak(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}

	hours := sys.Queries.PeakHours(time.Now())

	busiest := 0
	for _, h := range hours {
		if h.Arrivals > busiest {
			busiest = h.Arrivals
		}
	}
	if busiest == 0 {
		fmt.Println("no arrivals today")
		return nil
	}

	for _, h := range hours {
		bar := strings.Repeat("#", h.Arrivals*40/busiest)
		fmt.Printf("%02d:00 %5d %s\n", h.Hour, h.Arrivals, bar)
	}

	return nil
}
