// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/USA-RedDragon/trunk-recorder/internal/autotune"
	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/dispatcher"
	"github.com/USA-RedDragon/trunk-recorder/internal/metadata"
	"github.com/USA-RedDragon/trunk-recorder/internal/metrics"
	"github.com/USA-RedDragon/trunk-recorder/internal/recorder"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/USA-RedDragon/trunk-recorder/internal/system"
	"github.com/USA-RedDragon/trunk-recorder/internal/talkgroups"
	"github.com/USA-RedDragon/trunk-recorder/internal/transmission"
	"github.com/USA-RedDragon/trunk-recorder/internal/unittags"
)

// sinkChannels, sinkRate and sinkBits are the fixed 8kHz mono 16-bit
// PCM parameters mandated for every TransmissionSink's file output,
// regardless of source sample rate.
const (
	sinkChannels = 1
	sinkRate     = 8000
	sinkBits     = 16
)

func toSourceDriver(d config.DriverKind) (source.DriverKind, error) {
	switch d {
	case config.DriverOsmoSDR:
		return source.DriverOsmoSDR, nil
	case config.DriverUSRP:
		return source.DriverUSRP, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownDriver, d)
	}
}

func toSystemKind(kind string) (system.Kind, error) {
	switch kind {
	case "smartnet":
		return system.KindSmartnet, nil
	case "p25":
		return system.KindP25, nil
	case "conventional":
		return system.KindConventional, nil
	case "conventionalP25":
		return system.KindConventionalP25, nil
	case "conventionalDMR":
		return system.KindConventionalDMR, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownSystemType, kind)
	}
}

func toUnitTagsMode(mode string) (unittags.Mode, error) {
	switch mode {
	case "", "userFirst":
		return unittags.ModeUserFirst, nil
	case "otaFirst":
		return unittags.ModeOTAFirst, nil
	case "userOnly":
		return unittags.ModeUserOnly, nil
	case "none":
		return unittags.ModeNone, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownUnitTagsMode, mode)
	}
}

// buildRecorderPool constructs count recorders of kind, each wrapping
// its own fixed-format Sink, and attaches them to src via add.
func buildRecorderPool(kind recorder.Kind, count int, add func(*recorder.Recorder)) error {
	for i := range count {
		sink, err := transmission.NewSink(sinkChannels, sinkRate, sinkBits)
		if err != nil {
			return fmt.Errorf("building %s recorder %d sink: %w", kind, i, err)
		}
		add(recorder.New(i, kind, sink))
	}
	return nil
}

// buildSource constructs a Source and its recorder pools from one
// SourceConfig entry. Opening the underlying hz.tools/sdr.Sdr device is
// an external collaborator's job, out of scope here; this only builds
// the in-process allocator and its pools.
func buildSource(cfg config.SourceConfig) (*source.Source, error) {
	driver, err := toSourceDriver(cfg.Driver)
	if err != nil {
		return nil, newSDRError(err)
	}

	src := source.New(cfg.Num, cfg.Center, cfg.Rate, cfg.Error, driver, cfg.Device)
	src.SetAntenna(cfg.Antenna)
	src.SetGainStage("rf", cfg.Gain)

	if err := buildRecorderPool(recorder.KindDigital, cfg.DigitalRecorders, src.AddDigitalRecorder); err != nil {
		return nil, newSDRError(err)
	}
	if err := buildRecorderPool(recorder.KindAnalog, cfg.AnalogRecorders, src.AddAnalogRecorder); err != nil {
		return nil, newSDRError(err)
	}
	if err := buildRecorderPool(recorder.KindDebug, cfg.DebugRecorders, src.AddDebugRecorder); err != nil {
		return nil, newSDRError(err)
	}
	if err := buildRecorderPool(recorder.KindSigMF, cfg.SigMFRecorders, src.AddSigMFRecorder); err != nil {
		return nil, newSDRError(err)
	}

	return src, nil
}

// buildSystem constructs a System from one SystemConfig entry: its
// talkgroup/unit-tag stores (loaded from the configured CSV files, if
// any), control channels, and conversation-mode flag.
func buildSystem(cfg config.SystemConfig) (*system.System, error) {
	kind, err := toSystemKind(cfg.Type)
	if err != nil {
		return nil, newConfigError(err)
	}
	mode, err := toUnitTagsMode(cfg.UnitTagsMode)
	if err != nil {
		return nil, newConfigError(err)
	}

	tg := talkgroups.NewStore()
	if cfg.TalkgroupsFile != "" {
		if err := tg.Load(cfg.TalkgroupsFile); err != nil {
			return nil, fmt.Errorf("system %s: loading talkgroups: %w", cfg.ShortName, err)
		}
	}

	ut := unittags.NewStore(mode)
	if err := ut.LoadUserTags(cfg.UnitTagsFile); err != nil {
		return nil, fmt.Errorf("system %s: loading unit tags: %w", cfg.ShortName, err)
	}
	if err := ut.LoadOTATags(cfg.UnitTagsOTAFile); err != nil {
		return nil, fmt.Errorf("system %s: loading OTA unit tags: %w", cfg.ShortName, err)
	}

	sys := system.New(cfg.ShortName, kind, cfg.NAC, cfg.SysID, cfg.WACN, tg, ut)
	sys.SetConversationMode(cfg.ConversationMode)
	for _, cc := range cfg.ControlChannels {
		sys.AddControlChannel(cc)
	}

	slog.Info("cmd: built system", "shortName", cfg.ShortName, "type", kind, "talkgroups", tg.Len())
	return sys, nil
}

// findCoveringSource returns the first source whose usable window
// covers sys's first control channel, matching config.SystemConfig's
// Validate cross-check but against live Source windows instead of the
// static arithmetic reproduction Validate uses.
func findCoveringSource(sources []*source.Source, sys *system.System) *source.Source {
	channels := sys.ControlChannels()
	if len(channels) == 0 {
		return nil
	}
	for _, src := range sources {
		if src.Covers(channels[0]) {
			return src
		}
	}
	return nil
}

// buildAndRegisterSources constructs every configured source and wires
// it into the metrics collector and metadata emitter.
func buildAndRegisterSources(cfgs []config.SourceConfig, collector *metrics.Collector, emitter *metadata.Emitter) ([]*source.Source, error) {
	sources := make([]*source.Source, 0, len(cfgs))
	for _, sc := range cfgs {
		src, err := buildSource(sc)
		if err != nil {
			return nil, err
		}
		collector.RegisterSource(src)
		emitter.RegisterSource(src)
		sources = append(sources, src)
	}
	return sources, nil
}

// buildAndRegisterSystems constructs every configured system, binds it
// to the source covering its first control channel, wires its
// AutotuneManager, and registers it with the dispatcher and metadata
// emitter. sysNum is assigned by configuration order: config.SystemConfig
// carries no explicit index field of its own, unlike the per-system
// get_sys_num() accessor the in-process registry this is grounded on
// exposes.
func buildAndRegisterSystems(cfgs []config.SystemConfig, sources []*source.Source, disp *dispatcher.Dispatcher, emitter *metadata.Emitter) error {
	for i, sc := range cfgs {
		sys, err := buildSystem(sc)
		if err != nil {
			return err
		}

		src := findCoveringSource(sources, sys)
		if src == nil {
			return newConfigError(fmt.Errorf("system %s: no source covers its control channel", sc.ShortName))
		}
		sys.SetAutotuneManager(autotune.NewManager(src))

		disp.RegisterSystem(i, sys, src)
		emitter.RegisterSystem(i, sys, sc)
	}
	return nil
}
