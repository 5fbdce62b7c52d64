package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/transitboard/arrivals"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows per-route delay statistics for today",
	Args:  cobra.NoArgs,
	RunE:  stats,
}

var (
	statsRoute string
	statsTop   int
)

func init() {
	statsCmd.Flags().StringVarP(&statsRoute, "route", "r", "", "Restrict to a specific route")
	statsCmd.Flags().IntVarP(&statsTop, "top", "t", 0, "Show only the N most delayed routes")
}

func stats(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}

	var routeStats []arrivals.DelayStats
	if statsTop > 0 {
		routeStats = sys.Queries.MostDelayedRoutes(time.Now(), statsTop)
	} else {
		routeStats = sys.Queries.DelayStats(time.Now(), statsRoute)
	}

	if len(routeStats) == 0 {
		fmt.Println("no arrivals today")
		return nil
	}

	fmt.Printf("%-8s %-20s %8s %8s %8s %8s\n", "route", "name", "tracked", "on-time", "avg", "max")
	for _, s := range routeStats {
		fmt.Printf("%-8s %-20s %8d %7.1f%% %8s %8s\n",
			s.RouteID,
			s.RouteName,
			s.WithRealtime,
			s.OnTimePercent(),
			s.AvgDelay.Round(time.Second),
			s.MaxDelay.Round(time.Second),
		)
	}

	return nil
}
