// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package autotune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	num    int
	center float64
	errCfg float64
}

func (f fakeSource) Num() int                  { return f.num }
func (f fakeSource) CenterFrequency() float64  { return f.center }
func (f fakeSource) ConfiguredError() float64  { return f.errCfg }

func TestAddErrorMeasurementAveragesAndCaps(t *testing.T) {
	mgr := NewManager(fakeSource{num: 1, center: 851012500})

	for i := 0; i < 25; i++ {
		mgr.AddErrorMeasurement(100, 0)
	}

	require.Equal(t, 20, mgr.HistorySize())
	assert.Equal(t, 100, mgr.AverageError())
}

func TestAddErrorMeasurementComputesRunningMean(t *testing.T) {
	mgr := NewManager(fakeSource{num: 2, center: 851012500})

	mgr.AddErrorMeasurement(10, 0)
	mgr.AddErrorMeasurement(20, 0)
	mgr.AddErrorMeasurement(30, 0)

	assert.Equal(t, 3, mgr.HistorySize())
	assert.Equal(t, 20, mgr.AverageError()) // (10+20+30)/3
}

func TestStatusStringRoundsSuggestedError(t *testing.T) {
	mgr := NewManager(fakeSource{num: 3, center: 851012500, errCfg: 103})
	mgr.AddErrorMeasurement(97, 0) // average becomes 97

	status := mgr.StatusString()
	assert.Contains(t, status, "AutoTune: +97 Hz")
	// totalError = 103 - 97 = 6, rounds to nearest 10 -> 10
	assert.Contains(t, status, "\"error\": 10")
}

func TestResetClearsHistory(t *testing.T) {
	mgr := NewManager(fakeSource{num: 4, center: 851012500})
	mgr.AddErrorMeasurement(50, 0)
	mgr.Reset()

	assert.Equal(t, 0, mgr.HistorySize())
	assert.Equal(t, 0, mgr.AverageError())
}

type fakeControlChannelSystem struct {
	mgr              *Manager
	controlChanFreq  float64
	fllError         int
	autotuneOffset   int
	appliedFreq      float64
	appliedOffset    int
}

func (f *fakeControlChannelSystem) AutotuneManager() *Manager             { return f.mgr }
func (f *fakeControlChannelSystem) CurrentControlChannelFreq() float64    { return f.controlChanFreq }
func (f *fakeControlChannelSystem) FreqError() int                       { return f.fllError }
func (f *fakeControlChannelSystem) AutotuneOffset() int                  { return f.autotuneOffset }
func (f *fakeControlChannelSystem) FinetuneControlFreq(freq float64)     { f.appliedFreq = freq }
func (f *fakeControlChannelSystem) SetAutotuneOffset(offset int)         { f.appliedOffset = offset }

func TestTuneControlChannelAppliesCorrection(t *testing.T) {
	mgr := NewManager(fakeSource{num: 5, center: 851012500})
	sys := &fakeControlChannelSystem{
		mgr:             mgr,
		controlChanFreq: 851012500,
		fllError:        200,
		autotuneOffset:  0,
	}

	TuneControlChannel(sys, true)

	assert.Equal(t, 1, mgr.HistorySize())
	assert.Equal(t, 200, sys.appliedOffset)
	assert.Equal(t, 851012500.0-200, sys.appliedFreq)
}

func TestTuneControlChannelSkipsStorageWhenRequested(t *testing.T) {
	mgr := NewManager(fakeSource{num: 6, center: 851012500})
	sys := &fakeControlChannelSystem{mgr: mgr, controlChanFreq: 851012500, fllError: 500}

	TuneControlChannel(sys, false)

	assert.Equal(t, 0, mgr.HistorySize())
	assert.Equal(t, 0, sys.appliedOffset)
}
