package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/transitboard/arrivals"
	"github.com/transitboard/arrivals/storage"
)

var rootCmd = &cobra.Command{
	Use:          "arrivals",
	Short:        "Transit arrival board tool",
	Long:         "Reconciles a static transit schedule with a realtime feed and answers arrival queries",
	SilenceUsage: true,
}

var (
	staticURL   string
	realtimeURL string
	headers     []string
	onDisk      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&staticURL, "static-url", "", "", "Static dataset URL")
	rootCmd.PersistentFlags().StringVarP(&realtimeURL, "realtime-url", "", "", "Realtime feed URL")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "", []string{}, "HTTP header on form <key>:<value>")
	rootCmd.PersistentFlags().BoolVarP(&onDisk, "on-disk", "", true, "Persist the static dataset in a local SQLite file")

	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(stopsCmd)
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(cancelledCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(busiestCmd)
	rootCmd.AddCommand(peakCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// Builds the core from the static URL, refreshing realtime data if a
// feed URL was given.
func loadSystem() (*arrivals.System, error) {
	if staticURL == "" {
		return nil, fmt.Errorf("static URL is required")
	}

	h, err := parseHeaders(headers)
	if err != nil {
		return nil, err
	}

	s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: onDisk, Directory: "."})
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	manager := arrivals.NewManager(s, logger)

	sys, err := manager.LoadStatic(context.Background(), staticURL, h)
	if err != nil {
		return nil, err
	}

	if realtimeURL != "" {
		err = manager.RefreshRealtime(context.Background(), sys.Cache, realtimeURL, h)
		if err != nil {
			return nil, err
		}
	}

	return sys, nil
}
