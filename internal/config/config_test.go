// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package config_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeValidConfig() config.Config {
	cfg := config.Default()
	cfg.CaptureDir = "/tmp/captures"
	cfg.Sources = []config.SourceConfig{
		{Num: 0, Center: 851000000, Rate: 2048000, Driver: config.DriverOsmoSDR, DigitalRecorders: 4},
	}
	cfg.Systems = []config.SystemConfig{
		{ShortName: "metro", Type: "p25", ControlChannels: []float64{851012500}},
	}
	return cfg
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := makeValidConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := makeValidConfig()
	cfg.LogLevel = "verbose"
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidLogLevel)
}

func TestValidateRejectsMissingCaptureDir(t *testing.T) {
	cfg := makeValidConfig()
	cfg.CaptureDir = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrCaptureDirRequired)
}

func TestValidateRejectsNoSources(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Sources = nil
	assert.ErrorIs(t, cfg.Validate(), config.ErrNoSources)
}

func TestValidateRejectsNoSystems(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Systems = nil
	assert.ErrorIs(t, cfg.Validate(), config.ErrNoSystems)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Sources[0].Driver = "sdrplay"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeRecorderCount(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Sources[0].DigitalRecorders = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUncoveredControlChannel(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Systems[0].ControlChannels = []float64{900000000}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingSystemShortName(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Systems[0].ShortName = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrSystemShortNameRequired)
}

func TestValidateRejectsBadRedisPort(t *testing.T) {
	cfg := makeValidConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Port = 0
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidRedisPort)
}

func TestLoadParsesAndValidatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	doc := makeValidConfig()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/captures", loaded.CaptureDir)
	assert.Len(t, loaded.Sources, 1)
}

func TestLoadParsesYAMLFileByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	doc := `
captureDir: /tmp/captures
sources:
  - num: 0
    center: 851000000
    rate: 2048000
    driver: osmosdr
    digitalRecorders: 4
systems:
  - shortName: metro
    type: p25
    controlChannels: [851012500]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/captures", loaded.CaptureDir)
	assert.Len(t, loaded.Sources, 1)
	assert.Equal(t, config.DriverOsmoSDR, loaded.Sources[0].Driver)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFailsOnMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := config.Load(path)
	var target error
	assert.True(t, errors.As(err, &target))
}

func TestSetAndGetConfigRoundTrip(t *testing.T) {
	cfg := makeValidConfig()
	config.Set(cfg)
	assert.Equal(t, cfg.CaptureDir, config.GetConfig().CaptureDir)
}
