// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package cmd

import (
	"errors"
	"testing"

	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/USA-RedDragon/trunk-recorder/internal/system"
	"github.com/USA-RedDragon/trunk-recorder/internal/unittags"
	"github.com/stretchr/testify/require"
)

func TestNewCommandRequiresConfigFlag(t *testing.T) {
	t.Parallel()
	cmd := NewCommand("test", "abc123")
	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)
	require.NoError(t, cmd.Flags().Set("config", ""))
	require.Error(t, cmd.Execute())
}

func TestToSourceDriver(t *testing.T) {
	t.Parallel()
	d, err := toSourceDriver(config.DriverOsmoSDR)
	require.NoError(t, err)
	require.Equal(t, source.DriverOsmoSDR, d)

	_, err = toSourceDriver(config.DriverKind("bogus"))
	require.ErrorIs(t, err, errUnknownDriver)
}

func TestToSystemKind(t *testing.T) {
	t.Parallel()
	k, err := toSystemKind("p25")
	require.NoError(t, err)
	require.Equal(t, system.KindP25, k)

	_, err = toSystemKind("nope")
	require.ErrorIs(t, err, errUnknownSystemType)
}

func TestToUnitTagsModeDefaultsToUserFirst(t *testing.T) {
	t.Parallel()
	mode, err := toUnitTagsMode("")
	require.NoError(t, err)
	require.Equal(t, unittags.ModeUserFirst, mode)

	_, err = toUnitTagsMode("garbage")
	require.ErrorIs(t, err, errUnknownUnitTagsMode)
}

func TestBuildSourceRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := buildSource(config.SourceConfig{Num: 0, Driver: config.DriverKind("bogus")})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, ExitSDRError, exitErr.Code)
}

func TestBuildSystemRejectsUnknownType(t *testing.T) {
	t.Parallel()
	_, err := buildSystem(config.SystemConfig{ShortName: "bad", Type: "nope"})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, ExitConfigError, exitErr.Code)
}

func TestFindCoveringSourceMatchesByFrequency(t *testing.T) {
	t.Parallel()
	src := source.New(0, 851000000, 2048000, 0, source.DriverOsmoSDR, "test=0")
	sys, err := buildSystem(config.SystemConfig{
		ShortName:       "test",
		Type:            "p25",
		ControlChannels: []float64{851012500},
	})
	require.NoError(t, err)

	found := findCoveringSource([]*source.Source{src}, sys)
	require.Same(t, src, found)

	other, err := buildSystem(config.SystemConfig{
		ShortName:       "far",
		Type:            "p25",
		ControlChannels: []float64{950000000},
	})
	require.NoError(t, err)
	require.Nil(t, findCoveringSource([]*source.Source{src}, other))
}

func TestExitErrorUnwrap(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")
	err := newFatalError(base)
	require.ErrorIs(t, err, base)
	require.Equal(t, ExitFatalError, err.Code)
}
