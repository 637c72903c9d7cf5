// cmd/masermon/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/tamzrod/masermon/internal/config"
	"github.com/tamzrod/masermon/internal/logging"
	"github.com/tamzrod/masermon/internal/metrics"
	"github.com/tamzrod/masermon/internal/poller"
	"github.com/tamzrod/masermon/internal/status"
	"github.com/tamzrod/masermon/internal/writer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "masermon: %v\n", err)
		return 2
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := opts.load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "masermon: %v\n", err)
		return 2
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "masermon: config validation failed: %v\n", err)
		return 2
	}
	config.Normalize(cfg)

	runID := uuid.NewString()
	log := logging.New("masermon", runID, logging.Options{
		Level:   cfg.Log.Level,
		JSON:    cfg.Log.JSON,
		NoColor: cfg.Log.NoColor,
	})

	// --------------------
	// One-shot probe
	// --------------------

	if cfg.Device.Protocol == config.ProtocolVCH1006 {
		dump, err := poller.Probe(cfg, poller.Deps{Log: log})
		if err != nil {
			log.Error().Err(err).Msg("probe failed")
			return 1
		}
		log.Info().Int("bytes", len(dump)/2).Str("dump", dump).Msg("vch1006 status")
		fmt.Println(dump)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := status.Info{Run: runID, Device: cfg.Device.Name, Protocol: cfg.Device.Protocol}
	tracker := status.NewTracker(info)
	m := metrics.New()
	m.SetInfo(info)

	// ---- status mirror (optional) ----
	statusWriter, closeStatus, err := writer.BuildStatusWriter(cfg.Status)
	if err != nil {
		log.Error().Err(err).Msg("status mirror connect failed")
		return 1
	}
	defer closeStatus()

	// ---- poller ----
	p, closePoller, err := poller.Build(ctx, cfg, poller.Deps{
		Log:      log,
		Tracker:  tracker,
		Status:   statusWriter,
		Recorder: m,
	})
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return 1
	}
	defer closePoller()

	// ---- metrics / health ----
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, metrics.Router(m, tracker), log); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	if err := p.Run(ctx); err != nil {
		log.Error().Err(err).Msg("poller stopped")
		return 1
	}
	return 0
}
