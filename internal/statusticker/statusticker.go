// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package statusticker runs the periodic maintenance tick the original
// daemon performs on a fixed interval: patch-TTL purge and per-system
// control-channel autotune (both already implemented by
// dispatcher.Dispatcher.StatusTick), plus recorder-pool utilization
// logging, which needs direct visibility into each Source's pools that
// the dispatcher doesn't have. Shaped after a scheduler-owning net
// manager package elsewhere in this codebase's lineage: same
// gocron.Scheduler-owning struct with NewX/Start/Stop and a job map
// under a mutex, generalized from one job per database-backed
// scheduled net to one recurring job covering every registered Source.
package statusticker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/dispatcher"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/go-co-op/gocron/v2"
)

// Ticker owns the recurring status-tick job.
type Ticker struct {
	scheduler  gocron.Scheduler
	dispatcher *dispatcher.Dispatcher

	mu      sync.Mutex
	sources []*source.Source
	job     gocron.Job
}

// New builds a Ticker that drives disp's StatusTick on each interval.
func New(disp *dispatcher.Dispatcher) (*Ticker, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("statusticker: creating scheduler: %w", err)
	}
	return &Ticker{scheduler: s, dispatcher: disp}, nil
}

// RegisterSource adds src to the set of sources whose pool utilization
// is logged on every tick.
func (t *Ticker) RegisterSource(src *source.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = append(t.sources, src)
}

// Start schedules the recurring tick at the given interval and starts
// the underlying scheduler. The interval is supplied by the
// statusInterval config key.
func (t *Ticker) Start(interval time.Duration) error {
	job, err := t.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(t.tick),
		gocron.WithName("status-tick"),
	)
	if err != nil {
		return fmt.Errorf("statusticker: scheduling status tick: %w", err)
	}

	t.mu.Lock()
	t.job = job
	t.mu.Unlock()

	t.scheduler.Start()
	return nil
}

// Stop stops the job and shuts down the scheduler.
func (t *Ticker) Stop() error {
	if err := t.scheduler.StopJobs(); err != nil {
		slog.Error("statusticker: stopping jobs", "error", err)
	}
	if err := t.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("statusticker: shutting down scheduler: %w", err)
	}
	return nil
}

func (t *Ticker) tick() {
	t.dispatcher.StatusTick()

	t.mu.Lock()
	sources := append([]*source.Source(nil), t.sources...)
	t.mu.Unlock()

	for _, src := range sources {
		logPoolUtilization(src)
	}
}

func logPoolUtilization(src *source.Source) {
	slog.Info("statusticker: recorder pool utilization",
		"source", src.Num(),
		"digital", src.DigitalPoolStats(),
		"analog", src.AnalogPoolStats(),
		"debug", src.DebugPoolStats(),
		"sigmf", src.SigMFPoolStats(),
	)
}
