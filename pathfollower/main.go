package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaniels/golog"
)

func main() {
	var (
		iface       = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath     = flag.String("map", "config/can/drive_map.csv", "Path to the drivetrain bus map CSV")
		profilePath = flag.String("profile", "config/profiles/straight_2m.json", "Run profile JSON file")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	var logger golog.Logger
	if *debug {
		logger = golog.NewDebugLogger("pathfollower")
	} else {
		logger = golog.NewLogger("pathfollower")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, RunnerConfig{
		Interface:   *iface,
		MapPath:     *mapPath,
		ProfilePath: *profilePath,
	}, logger)
	if err != nil {
		logger.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		logger.Errorf("run failed: %v", err)
		os.Exit(1)
	}
}
