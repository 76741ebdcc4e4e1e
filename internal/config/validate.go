// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrCaptureDirRequired indicates that no capture directory was configured.
	ErrCaptureDirRequired = errors.New("captureDir is required")
	// ErrNoSources indicates that the configuration defines no SDR sources.
	ErrNoSources = errors.New("at least one source is required")
	// ErrNoSystems indicates that the configuration defines no trunking systems.
	ErrNoSystems = errors.New("at least one system is required")
	// ErrInvalidSourceRate indicates a source's sample rate is non-positive.
	ErrInvalidSourceRate = errors.New("source rate must be positive")
	// ErrInvalidSourceDriver indicates a source names a driver kind we don't recognize.
	ErrInvalidSourceDriver = errors.New("invalid source driver provided")
	// ErrNegativeRecorderCount indicates a source configures a negative recorder pool size.
	ErrNegativeRecorderCount = errors.New("recorder pool counts must be non-negative")
	// ErrSystemShortNameRequired indicates a system is missing its shortName.
	ErrSystemShortNameRequired = errors.New("system shortName is required")
	// ErrInvalidRedisPort indicates the configured Redis port is out of range.
	ErrInvalidRedisPort = errors.New("invalid Redis port provided")
	// ErrInvalidMetricsPort indicates the configured metrics port is out of range.
	ErrInvalidMetricsPort = errors.New("invalid metrics port provided")
)

func (r Redis) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Port <= 0 || r.Port > 65535 {
		return ErrInvalidRedisPort
	}
	return nil
}

func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate checks recorder pool sizes and the driver kind, matching
// the non-negative-counts and known-driver invariants an allocator
// depends on at startup.
func (s SourceConfig) Validate() error {
	if s.Rate <= 0 {
		return ErrInvalidSourceRate
	}
	if s.Driver != DriverOsmoSDR && s.Driver != DriverUSRP {
		return ErrInvalidSourceDriver
	}
	if s.DigitalRecorders < 0 || s.AnalogRecorders < 0 || s.DebugRecorders < 0 || s.SigMFRecorders < 0 {
		return ErrNegativeRecorderCount
	}
	return nil
}

// Validate checks that a system names itself and, when it has control
// channels of its own, that each one is covered by some source.
func (sys SystemConfig) Validate(sources []SourceConfig) error {
	if sys.ShortName == "" {
		return ErrSystemShortNameRequired
	}
	for _, cc := range sys.ControlChannels {
		covered := false
		for _, src := range sources {
			s := newSourceWindow(src)
			if cc >= s.min && cc <= s.max {
				covered = true
				break
			}
		}
		if !covered {
			return fmt.Errorf("system %s: control channel %.0f is not covered by any source", sys.ShortName, cc)
		}
	}
	return nil
}

type sourceWindow struct {
	min, max float64
}

// newSourceWindow reproduces Source::set_min_max()'s decimation-margin
// arithmetic so Validate can check control-channel coverage without
// constructing a full source.Source.
func newSourceWindow(s SourceConfig) sourceWindow {
	ifFrequencies := [3]int64{24000, 25000, 32000}
	decim := int64(24000)
	rate := int64(s.Rate)

	for _, ifFreq := range ifFrequencies {
		if rate%ifFreq != 0 {
			continue
		}
		q := rate / ifFreq
		if q&1 != 0 {
			continue
		}
		if q >= 40 && q&3 == 0 {
			decim = q / 4
		} else {
			decim = q / 2
		}
	}

	if1 := float64(rate) / float64(decim)
	return sourceWindow{
		min: s.Center - ((s.Rate / 2) - (if1 / 2)),
		max: s.Center + ((s.Rate / 2) - (if1 / 2)),
	}
}

// Validate checks cross-field invariants across the whole document:
// a non-empty capture directory, at least one source and system, each
// source's recorder counts and driver kind, and each system's
// control-channel coverage. A failure here is a configuration error
// (process exit code 1).
func (c Config) Validate() error {
	if c.LogLevel != LogLevelDebug && c.LogLevel != LogLevelInfo &&
		c.LogLevel != LogLevelWarn && c.LogLevel != LogLevelError {
		return ErrInvalidLogLevel
	}

	if c.CaptureDir == "" {
		return ErrCaptureDirRequired
	}

	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	if len(c.Systems) == 0 {
		return ErrNoSystems
	}

	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}

	for _, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source %d: %w", src.Num, err)
		}
	}
	for _, sys := range c.Systems {
		if err := sys.Validate(c.Sources); err != nil {
			return err
		}
	}

	return nil
}
