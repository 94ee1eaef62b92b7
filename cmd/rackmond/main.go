// cmd/rackmond/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/rackmond/internal/cache"
	"github.com/tamzrod/rackmond/internal/config"
	"github.com/tamzrod/rackmond/internal/engine"
	"github.com/tamzrod/rackmond/internal/poller"
)

func main() {
	dumpEvery := flag.Duration("dump", 0, "print cached values at this interval (0 disables)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: rackmond [-dump 5s] <config.yaml>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// --------------------
	// Load + validate config
	// --------------------

	cfgPath := flag.Arg(0)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}
	if err := config.Validate(cfg); err != nil {
		logger.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	level, err := zerolog.ParseLevel(cfg.Rackmon.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Str("log_level", cfg.Rackmon.LogLevel).Msg("bad log level")
	}
	logger = logger.Level(level)

	// --------------------
	// Build per-bus pipelines
	// --------------------

	store := cache.New()
	var (
		engines []*engine.Engine
		threads []*poller.Thread
	)

	for _, b := range cfg.Rackmon.Buses {
		e, err := buildBus(b, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("bus", b.ID).Msg("bus build failed")
		}
		engines = append(engines, e)

		ts, err := poller.Build(b, e, store, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("bus", b.ID).Msg("poller build failed")
		}
		threads = append(threads, ts...)
	}

	for _, t := range threads {
		if err := t.Start(); err != nil {
			logger.Fatal().Err(err).Str("thread", t.Name()).Msg("thread start failed")
		}
	}
	logger.Info().Int("buses", len(engines)).Int("polls", len(threads)).Msg("rackmond running")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dumpEvery > 0 {
		go dumpLoop(ctx, os.Stdout, store, engines, *dumpEvery)
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	// Threads first: no command may follow an engine close.
	for _, t := range threads {
		t.Stop()
	}
	for _, e := range engines {
		if err := e.Close(); err != nil {
			logger.Warn().Err(err).Str("bus", e.Name()).Msg("bus close failed")
		}
	}
}
