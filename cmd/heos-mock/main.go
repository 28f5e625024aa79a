package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	heosmock "github.com/raniellyferreira/heos-mock-device"
	"github.com/raniellyferreira/heos-mock-device/fixture"
)

func main() {
	addr := pflag.StringP("addr", "a", "0.0.0.0:1255", "Address to listen on")
	fixtureDirs := pflag.StringArrayP("fixtures", "f", nil, "Directory of <group>.<action>.json fixtures (repeatable, searched in order)")
	redisAddr := pflag.String("redis", "", "Redis address to read fixtures from, after every fixture directory")
	redisPrefix := pflag.String("redis-prefix", "heos:fixture:", "Key prefix of fixtures stored in Redis")
	redisPassword := pflag.String("redis-password", "", "Redis password")
	redisDB := pflag.Int("redis-db", 0, "Redis database holding the fixtures")
	workers := pflag.Int("workers", 0, "Maximum concurrent fixture file reads (0 = min(32, CPUs+4))")
	readTimeout := pflag.Duration("read-timeout", 0, "Close connections idle for this long (e.g., 30s; 0 = never)")
	events := pflag.Bool("events", false, "Push every line read from stdin as an event to the subscribed connection")
	list := pflag.Bool("list", false, "List the fixtures found in the fixture directories and exit")
	verbose := pflag.BoolP("verbose", "v", false, "Log every connection opened and closed")
	showVersion := pflag.Bool("version", false, "Print version information and exit")
	pflag.Parse()

	if *showVersion {
		for k, v := range heosmock.VersionInfo() {
			fmt.Printf("%s: %s\n", k, v)
		}
		return
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "heos-mock",
	})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *list {
		if len(*fixtureDirs) == 0 {
			fmt.Fprintf(os.Stderr, "Error: --list needs at least one --fixtures directory\n")
			pflag.Usage()
			os.Exit(1)
		}
		if err := listFixtures(*fixtureDirs); err != nil {
			logger.Fatal("Failed to list fixtures", "error", err)
		}
		return
	}

	opts := []heosmock.Option{
		heosmock.WithAddr(*addr),
		heosmock.WithFixtureWorkers(*workers),
		heosmock.WithLogger(&charmLogger{logger: logger}),
		heosmock.WithFailureHandler(func(err error) {
			logger.Warn("Client request failed, connection closed", "error", err)
		}),
	}
	for _, dir := range *fixtureDirs {
		opts = append(opts, heosmock.WithFixtureDir(dir))
	}
	if *redisAddr != "" {
		opts = append(opts,
			heosmock.WithRedisFixtures(*redisAddr, *redisPrefix),
			heosmock.WithRedisAuth(*redisPassword),
			heosmock.WithRedisDB(*redisDB),
		)
	}
	if *readTimeout > 0 {
		opts = append(opts, heosmock.WithReadTimeout(*readTimeout))
	}

	device, err := heosmock.New(opts...)
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := device.Start(ctx); err != nil {
		logger.Fatal("Failed to start mock device", "error", err)
	}

	if *events {
		go pushEvents(ctx, device, logger)
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	if err := device.Stop(); err != nil {
		logger.Error("Error stopping mock device", "error", err)
	}
	if failures := device.Failures(); len(failures) > 0 {
		logger.Warn("Requests failed while serving", "count", len(failures))
		os.Exit(1)
	}
}

// pushEvents writes every stdin line to the connection registered for
// change events
func pushEvents(ctx context.Context, device *heosmock.Device, logger *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := device.WriteEvent(line); err != nil {
			if errors.Is(err, heosmock.ErrNoEventSubscriber) {
				logger.Warn("No connection registered for change events, event dropped")
				continue
			}
			logger.Error("Failed to write event", "error", err)
		}
	}
}

func listFixtures(dirs []string) error {
	for _, root := range dirs {
		names, err := fixture.NewDir(root).Names()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", root, err)
		}
		fmt.Printf("%s (%d fixtures)\n", root, len(names))
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
