// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/dispatcher"
	"github.com/USA-RedDragon/trunk-recorder/internal/metadata"
	"github.com/USA-RedDragon/trunk-recorder/internal/metrics"
	"github.com/USA-RedDragon/trunk-recorder/internal/pubsub"
	"github.com/USA-RedDragon/trunk-recorder/internal/statusticker"
	"github.com/USA-RedDragon/trunk-recorder/internal/wsbroadcast"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewCommand builds the root "trunk-recorder --config <file>" command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trunk-recorder",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.Flags().String("config", "", "path to the JSON or YAML configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("trunk-recorder - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	configPath, err := cmd.Flags().GetString("config")
	if err != nil || configPath == "" {
		return newConfigError(fmt.Errorf("--config is required: %w", err))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return newConfigError(err)
	}
	config.Set(cfg)

	slog.SetDefault(newLogger(&cfg))

	ps, err := pubsub.MakePubSub(ctx, &cfg)
	if err != nil {
		return newFatalError(fmt.Errorf("connecting pubsub: %w", err))
	}
	defer func() {
		if err := ps.Close(); err != nil {
			slog.Error("cmd: closing pubsub", "error", err)
		}
	}()

	callTable := call.NewTable(time.Duration(cfg.CallTimeout) * time.Second)
	disp := dispatcher.New(callTable)
	collector := metrics.NewCollector()
	collector.SetCallTable(callTable)
	emitter := metadata.New(ps, &cfg, callTable)

	sources, err := buildAndRegisterSources(cfg.Sources, collector, emitter)
	if err != nil {
		return err
	}

	if err := buildAndRegisterSystems(cfg.Systems, sources, disp, emitter); err != nil {
		return err
	}

	servers := new(errgroup.Group)
	servers.Go(func() error { return metrics.CreateMetricsServer(&cfg, collector) })
	servers.Go(func() error { return wsbroadcast.CreateServer(&cfg, ps) })
	go func() {
		if err := servers.Wait(); err != nil {
			slog.Error("cmd: a background server exited", "error", err)
		}
	}()

	ticker, err := statusticker.New(disp)
	if err != nil {
		return newFatalError(err)
	}
	for _, src := range sources {
		ticker.RegisterSource(src)
	}
	if err := ticker.Start(time.Duration(cfg.StatusInterval) * time.Second); err != nil {
		return newFatalError(err)
	}

	if err := emitter.EmitConfig(); err != nil {
		slog.Error("cmd: emitting initial config", "error", err)
	}

	slog.Info("cmd: started", "sources", len(sources), "systems", len(cfg.Systems))

	<-waitForShutdownSignal(ctx)
	slog.Info("cmd: shutting down")
	shutdown(ticker)
	return nil
}

// newLogger builds the tint-based console handler, additionally
// teeing output to cfg.LogFile when set. Opening the file is a
// best-effort step: a failure to open it logs to the console handler
// alone rather than aborting startup over a logging destination.
func newLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer
	var level slog.Level
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		out, level = os.Stdout, slog.LevelDebug
	case config.LogLevelWarn:
		out, level = os.Stderr, slog.LevelWarn
	case config.LogLevelError:
		out, level = os.Stderr, slog.LevelError
	default:
		out, level = os.Stdout, slog.LevelInfo
	}

	if cfg.LogFile != "" {
		const logFilePerm = 0o644
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			slog.Error("cmd: opening log file, logging to console only", "file", cfg.LogFile, "error", err)
		} else {
			out = io.MultiWriter(out, f)
		}
	}

	return slog.New(tint.NewHandler(out, &tint.Options{Level: level}))
}

// waitForShutdownSignal returns a channel closed once SIGINT, SIGTERM or
// SIGQUIT arrives, or ctx is canceled. Replaces the ztrue/shutdown package the
// source this CLI shape is grounded on relies on for the same
// signal-to-callback plumbing — that dependency isn't present in its
// own go.mod, so this uses the standard library's equivalent instead.
func waitForShutdownSignal(ctx context.Context) <-chan struct{} {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()
		<-sigCtx.Done()
	}()
	return done
}

// shutdown stops the background tickers within a bounded window,
// mirroring the staged parallel-shutdown shape this package is
// grounded on (a WaitGroup of stop goroutines racing a timeout), sized
// down to the one stateful background job this daemon owns: the HTTP
// listeners close themselves on process exit, and pubsub/Close is
// deferred in runRoot.
func shutdown(ticker *statusticker.Ticker) {
	const timeout = 10 * time.Second
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ticker.Stop(); err != nil {
			slog.Error("cmd: stopping status ticker", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Error("cmd: shutdown timed out")
	}
}
