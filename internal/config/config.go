// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package config loads and validates the mandatory --config <file>
// configuration (JSON or YAML, selected by file extension): a
// package-level atomic singleton, GetConfig()/Load(), and a
// Validate() step that fails fast with a wrapped error, sourced from a
// file instead of environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// LogLevel selects the minimum severity logged via log/slog.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// DriverKind is the SDR backend a Source binds to.
type DriverKind string

const (
	DriverOsmoSDR DriverKind = "osmosdr"
	DriverUSRP    DriverKind = "usrp"
)

// Redis configures the optional Redis-backed metadata pub/sub transport.
type Redis struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
}

// Metrics configures the Prometheus metrics HTTP listener.
type Metrics struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	BindAddress string `json:"bindAddress" yaml:"bindAddress"`
	Port        int    `json:"port" yaml:"port"`
}

// SourceConfig describes one SDR front-end: center frequency, sample
// rate, static frequency error, driver, device args, and recorder pool
// sizes, matching the fields Source::Source's constructor takes plus
// the `max_*_recorders`/`debug_recorder_port` fields read from Config
// at startup in the original.
type SourceConfig struct {
	Num               int        `json:"num" yaml:"num"`
	Center            float64    `json:"center" yaml:"center"`
	Rate              float64    `json:"rate" yaml:"rate"`
	Error             float64    `json:"error" yaml:"error"`
	Driver            DriverKind `json:"driver" yaml:"driver"`
	Device            string     `json:"device" yaml:"device"`
	Antenna           string     `json:"antenna" yaml:"antenna"`
	Gain              int        `json:"gain" yaml:"gain"`
	DigitalRecorders  int        `json:"digitalRecorders" yaml:"digitalRecorders"`
	AnalogRecorders   int        `json:"analogRecorders" yaml:"analogRecorders"`
	DebugRecorders    int        `json:"debugRecorders" yaml:"debugRecorders"`
	SigMFRecorders    int        `json:"sigmfRecorders" yaml:"sigmfRecorders"`
	DebugRecorderPort int        `json:"debugRecorderPort" yaml:"debugRecorderPort"`
}

// SystemConfig describes one trunking system definition.
type SystemConfig struct {
	ShortName        string    `json:"shortName" yaml:"shortName"`
	Type             string    `json:"type" yaml:"type"` // smartnet, p25, conventional, conventionalP25, conventionalDMR
	NAC              uint32    `json:"nac" yaml:"nac"`
	SysID            uint32    `json:"sysid" yaml:"sysid"`
	WACN             uint32    `json:"wacn" yaml:"wacn"`
	ControlChannels  []float64 `json:"controlChannels" yaml:"controlChannels"`
	TalkgroupsFile   string    `json:"talkgroupsFile" yaml:"talkgroupsFile"`
	UnitTagsFile     string    `json:"unitTagsFile" yaml:"unitTagsFile"`
	UnitTagsOTAFile  string    `json:"unitTagsOtaFile" yaml:"unitTagsOtaFile"`
	UnitTagsMode     string    `json:"unitTagsMode" yaml:"unitTagsMode"` // userFirst, otaFirst, userOnly, none
	ConversationMode bool      `json:"conversationMode" yaml:"conversationMode"`
	CaptureDir       string    `json:"captureDir" yaml:"captureDir"` // overrides the top-level capture_dir for this system, if set
}

// Config is the full daemon configuration loaded from the mandatory
// --config <file> document.
type Config struct {
	CaptureDir        string         `json:"captureDir" yaml:"captureDir"`
	UploadServer      string         `json:"uploadServer" yaml:"uploadServer"`
	CallTimeout       int            `json:"callTimeout" yaml:"callTimeout"` // seconds
	LogFile           string         `json:"logFile" yaml:"logFile"`
	LogLevel          LogLevel       `json:"logLevel" yaml:"logLevel"`
	InstanceID        string         `json:"instanceId" yaml:"instanceId"`
	InstanceKey       string         `json:"instanceKey" yaml:"instanceKey"`
	DebugRecorderPort int            `json:"debugRecorderPort" yaml:"debugRecorderPort"`
	BroadcastSignals  bool           `json:"broadcastSignals" yaml:"broadcastSignals"`
	StatusInterval    int            `json:"statusInterval" yaml:"statusInterval"` // seconds between statusticker ticks
	Redis             Redis          `json:"redis" yaml:"redis"`
	Metrics           Metrics        `json:"metrics" yaml:"metrics"`
	Sources           []SourceConfig `json:"sources" yaml:"sources"`
	Systems           []SystemConfig `json:"systems" yaml:"systems"`
}

var currentConfig atomic.Pointer[Config] //nolint:gochecknoglobals

// Default returns a Config with every field at the zero-risk default
// the original trunk-recorder.exe falls back to when a key is absent
// from the JSON document, used by tests and by Load before
// unmarshalling over it.
func Default() Config {
	return Config{
		CallTimeout:       constDefaultCallTimeout,
		LogLevel:          LogLevelInfo,
		DebugRecorderPort: 0,
		StatusInterval:    constDefaultStatusInterval,
		Metrics: Metrics{
			BindAddress: "0.0.0.0",
			Port:        9102,
		},
		Redis: Redis{
			Host: "localhost",
			Port: 6379,
		},
	}
}

const constDefaultCallTimeout = 3 // seconds, matching trunk-recorder's default call idle timeout

const constDefaultStatusInterval = 3 // seconds; this module's own default, not taken from trunk-recorder

// Load reads and parses the file at path into a Config, applying
// Default()'s fallbacks first so a sparse document is still usable,
// then validates the result. The format is chosen by extension: .yaml
// and .yml parse as YAML, everything else as JSON. A parse or
// validation failure is a configuration error (process exit code 1).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validating %s: %w", path, err)
	}

	return cfg, nil
}

// Set installs cfg as the process-wide current configuration.
func Set(cfg Config) {
	currentConfig.Store(&cfg)
}

// GetConfig returns the current process-wide configuration. Panics if
// Set has never been called — there is no implicit environment-derived
// fallback, since this daemon has no meaningful default capture
// directory or system list.
func GetConfig() *Config {
	cfg := currentConfig.Load()
	if cfg == nil {
		panic("config: GetConfig called before Set")
	}
	return cfg
}
