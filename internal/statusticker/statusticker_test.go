// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package statusticker_test

import (
	"testing"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/dispatcher"
	"github.com/USA-RedDragon/trunk-recorder/internal/recorder"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/USA-RedDragon/trunk-recorder/internal/statusticker"
	"github.com/USA-RedDragon/trunk-recorder/internal/transmission"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T) *source.Source {
	t.Helper()
	s := source.New(1, 851000000, 2048000, 0, source.DriverOsmoSDR, "test=0")
	sink, err := transmission.NewSink(1, 8000, 16)
	require.NoError(t, err)
	s.AddDigitalRecorder(recorder.New(0, recorder.KindDigital, sink))
	return s
}

func TestNewReturnsUsableTicker(t *testing.T) {
	t.Parallel()
	disp := dispatcher.New(call.NewTable(time.Minute))

	tk, err := statusticker.New(disp)
	require.NoError(t, err)
	require.NotNil(t, tk)
}

func TestStartAndStopDoesNotError(t *testing.T) {
	t.Parallel()
	disp := dispatcher.New(call.NewTable(time.Minute))

	tk, err := statusticker.New(disp)
	require.NoError(t, err)
	tk.RegisterSource(newTestSource(t))

	require.NoError(t, tk.Start(10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, tk.Stop())
}
