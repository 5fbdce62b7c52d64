package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var nextCmd = &cobra.Command{
	Use:   "next <stop_id>",
	Short: "Lists the next arrivals at a stop",
	Args:  cobra.ExactArgs(1),
	RunE:  next,
}

var nextLimit int

func init() {
	nextCmd.Flags().IntVarP(&nextLimit, "limit", "l", 10, "Limit the number of arrivals returned")
}

func next(cmd *cobra.Command, args []string) error {
	stopID := args[0]

	sys, err := loadSystem()
	if err != nil {
		return err
	}

	upcoming := sys.Queries.NextArrivals(stopID, time.Now(), nextLimit)
	if len(upcoming) == 0 {
		fmt.Println("no upcoming arrivals")
		return nil
	}

	for _, a := range upcoming {
		when := a.EffectiveTime().Format("15:04")

		var status string
		switch {
		case a.Added:
			status = color.CyanString("added")
		case !a.HasRealtime():
			status = "scheduled"
		case a.Delay > time.Minute:
			status = color.RedString("+%s", a.Delay.Round(time.Second))
		case a.Delay < -time.Minute:
			status = color.YellowString("%s", a.Delay.Round(time.Second))
		default:
			status = color.GreenString("on time")
		}

		fmt.Printf("%s  %-8s %-24s %s\n", when, a.RouteID, a.Headsign, status)
	}

	return nil
}
