// Copyright 2026 The Casewire Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/casewire/casewire/callsession"
	"github.com/casewire/casewire/guardrails"
	"github.com/casewire/casewire/lib/clock"
	"github.com/casewire/casewire/lib/config"
	"github.com/casewire/casewire/lib/service"
	"github.com/casewire/casewire/sealer"
	"github.com/casewire/casewire/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "casewire-call-service:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		logLevel   string
	)
	pflag.StringVar(&configPath, "config", "/etc/casewire/call-service.yaml", "path to the configuration file")
	pflag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pflag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real()

	store, err := callsession.OpenStore(callsession.StoreConfig{
		Path:   cfg.Paths.Database,
		Clock:  realClock,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	caseAPI := upstream.NewCaseAPI(cfg.Upstream.CaseURL, cfg.Upstream.AuthToken)
	speech := upstream.NewSpeech(cfg.Upstream.SpeechURL, cfg.Upstream.AuthToken)
	model := upstream.NewModel(cfg.Upstream.ModelURL, cfg.Upstream.AuthToken)

	baseDenied := append(guardrails.BaseDeniedTopics(), cfg.Guardrails.ExtraDeniedTopics...)
	engine, err := callsession.New(callsession.EngineConfig{
		Store:       store,
		Clock:       realClock,
		Logger:      logger,
		Sealer:      sealer.New(caseAPI, caseAPI, baseDenied),
		Transcriber: speech,
		Synthesizer: speech,
		Generator:   model,
		Timeline:    caseAPI,
		Options: callsession.Options{
			CallDuration:     cfg.Call.Duration.Std(),
			SilenceWindow:    cfg.Call.SilenceWindow.Std(),
			StaleTTL:         cfg.Call.StaleTTL.Std(),
			ColdAfter:        cfg.Ledger.ColdAfter.Std(),
			SweepInterval:    cfg.Ledger.SweepInterval.Std(),
			RetainPrompts:    cfg.Ledger.RetainPrompts,
			UpstreamAttempts: cfg.Upstream.Attempts,
			UpstreamBackoff:  cfg.Upstream.Backoff.Std(),
		},
	})
	if err != nil {
		return err
	}

	// Calls that were live when the service last stopped get their
	// timebox back before the socket opens.
	if err := engine.ResumeTimers(ctx); err != nil {
		return fmt.Errorf("resuming timers: %w", err)
	}

	go engine.Run(ctx)

	callService := &CallService{
		engine: engine,
		clock:  realClock,
		logger: logger,
	}
	socketServer := service.NewSocketServer(cfg.Paths.Socket, logger)
	callService.registerActions(socketServer)

	logger.Info("call service running",
		"socket", cfg.Paths.Socket,
		"database", cfg.Paths.Database,
		"call_duration", cfg.Call.Duration.String())

	return socketServer.Serve(ctx)
}
