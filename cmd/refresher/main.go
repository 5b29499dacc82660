package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"farmfresh-backend/internal/app"
	"farmfresh-backend/internal/config"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

func main() {
	// Parse command-line flags
	timeout := flag.Duration("timeout", 2*time.Minute, "Maximum time allowed for the refresh")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("farmfresh-refresher", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info(ctx, "[REFRESHER_START] Starting forced dataset refresh", logging.Fields{
		"version":      "1.0.0",
		"dataset_path": cfg.DatasetPath(),
		"timeout":      timeout.String(),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("farmfresh_refresher")

	application, err := app.New(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[REFRESHER_ERROR] Failed to initialise services", logging.Fields{}, err)
	}
	defer application.Close(context.Background())

	start := time.Now()
	if _, err := application.Prices.RefreshIfNeeded(ctx, true); err != nil {
		logger.Fatal(ctx, "[REFRESHER_ERROR] Refresh failed", logging.Fields{}, err)
	}
	duration := time.Since(start)

	ds, err := application.Prices.CurrentDataset()
	if err != nil {
		logger.Fatal(ctx, "[REFRESHER_ERROR] No dataset after refresh", logging.Fields{}, err)
	}

	cities := ds.Cities()
	var missing []string
	present := make(map[string]bool, len(cities))
	for _, c := range cities {
		present[c] = true
	}
	for _, c := range application.Weather.Cities().Names() {
		if !present[c] {
			missing = append(missing, c)
		}
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("REFRESH COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date:           %s\n", ds.Date)
	fmt.Printf("Rows:           %d\n", len(ds.Rows))
	fmt.Printf("Cities:         %d\n", len(cities))
	fmt.Printf("Model Ready:    %t\n", application.Prices.ModelReady())
	fmt.Printf("CSV:            %s\n", application.Dataset.CSVPath())
	fmt.Printf("Duration:       %v\n", duration)

	if len(missing) > 0 {
		fmt.Printf("\nWeather unavailable (%d):\n", len(missing))
		for _, c := range missing {
			fmt.Printf("  - %s\n", c)
		}
	}

	history, err := application.Dataset.ArchiveHistory(ctx, 7)
	if err != nil {
		logger.Warn(ctx, "[REFRESHER_WARN] Could not read archive history", logging.Fields{"error": err.Error()})
	} else if len(history) > 0 {
		fmt.Printf("\nArchived days (latest %d):\n", len(history))
		for _, day := range history {
			fmt.Printf("  %s  %d rows\n", day.Date, day.Rows)
		}
	}

	logger.Info(ctx, "[REFRESHER_COMPLETE] Refresh completed", logging.Fields{
		"rows":             len(ds.Rows),
		"cities":           len(cities),
		"missing_cities":   len(missing),
		"model_ready":      application.Prices.ModelReady(),
		"duration_seconds": duration.Seconds(),
	})
}
