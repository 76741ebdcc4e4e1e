// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package autotune tracks per-source frequency-error measurements from an
// FLL band-edge filter and maintains a running average correction, so a
// source's next recording starts closer to true center than its
// configured static offset.
package autotune

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

const (
	// maxHistory bounds the error measurement window.
	maxHistory = 20

	// ppmThreshold is the warning threshold on the average correction,
	// expressed as parts-per-million of the source's center frequency.
	ppmThreshold = 3.5

	// suggestedErrorRounding rounds the status string's suggested config
	// "error" value to the nearest multiple of this many Hz.
	suggestedErrorRounding = 10
)

// Source is the subset of source state AutotuneManager needs: its log
// identifier, tuned center frequency (for the PPM warning), and the
// statically configured error value (for the suggested-correction
// string). Source implements this directly; keeping it as a narrow
// interface here avoids an import cycle between internal/source and
// internal/autotune.
type Source interface {
	Num() int
	CenterFrequency() float64
	ConfiguredError() float64
}

// Manager accumulates up to 20 error measurements (Hz) for one source
// and keeps a running average, safe for concurrent use.
type Manager struct {
	source Source

	mu           sync.Mutex
	history      []int // front = most recent
	averageError int
}

// NewManager returns a Manager bound to source.
func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

// AddErrorMeasurement records observedError+currentOffset (both Hz) as
// the frame's total tuning error, trims the history to the most recent
// 20 entries, recomputes the average, and logs a warning if the average
// correction exceeds the PPM threshold for this source's center
// frequency.
func (m *Manager) AddErrorMeasurement(observedError, currentOffset int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totalError := observedError + currentOffset
	m.history = append([]int{totalError}, m.history...)
	if len(m.history) > maxHistory {
		m.history = m.history[:maxHistory]
	}

	sum := 0
	for _, e := range m.history {
		sum += e
	}
	m.averageError = sum / len(m.history)

	slog.Debug("autotune: error measurement recorded",
		"source", m.source.Num(), "history", m.history, "average", m.averageError)

	centerFreq := m.source.CenterFrequency()
	if centerFreq != 0 {
		ppmCorrection := float64(m.averageError) / (centerFreq / 1e6)
		if math.Abs(ppmCorrection) > ppmThreshold {
			slog.Warn("autotune: correction exceeds PPM threshold, verify configured offset",
				"source", m.source.Num(),
				"offsetHz", m.averageError,
				"ppmThreshold", ppmThreshold,
				"centerFreqMHz", centerFreq/1e6)
		}
	}
}

// AverageError returns the cached running average correction, in Hz.
func (m *Manager) AverageError() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.averageError
}

// HistorySize returns the number of measurements currently retained
// (0..20), exposed for the history.size <= 20 invariant.
func (m *Manager) HistorySize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// StatusString renders the operator-facing autotune line shown on each
// status tick: the live correction plus a suggested "error" config value
// rounded to the nearest suggestedErrorRounding Hz.
func (m *Manager) StatusString() string {
	autotuneCorrection := m.AverageError()
	initialError := m.source.ConfiguredError()
	totalError := initialError - float64(autotuneCorrection)
	suggestedError := int(math.Round(totalError/suggestedErrorRounding) * suggestedErrorRounding)

	return fmt.Sprintf(" AutoTune: %+d Hz, \"error\": %d", autotuneCorrection, suggestedError)
}

// Reset clears all retained error measurements and the running average.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.averageError = 0
}

// ControlChannelSystem is the subset of System state needed to autotune
// an active control channel: its current tuned frequency, live FLL error
// and offset readings, and the hooks to apply a correction.
type ControlChannelSystem interface {
	AutotuneManager() *Manager
	CurrentControlChannelFreq() float64
	FreqError() int
	AutotuneOffset() int
	FinetuneControlFreq(freq float64)
	SetAutotuneOffset(offset int)
}

// TuneControlChannel applies the next autotune correction to sys's
// control channel. When storeMeasurement is false (a channel that was
// just retuned), the current reading is applied but not added to the
// history, avoiding polluting the average with a transient retune spike.
func TuneControlChannel(sys ControlChannelSystem, storeMeasurement bool) {
	mgr := sys.AutotuneManager()
	controlChannelFreq := sys.CurrentControlChannelFreq()

	fllError := sys.FreqError()
	currentOffset := sys.AutotuneOffset()

	if storeMeasurement {
		mgr.AddErrorMeasurement(fllError, currentOffset)
	} else {
		slog.Debug("autotune: skipping measurement storage for retuned control channel")
	}

	newOffset := mgr.AverageError()

	slog.Info("autotune: control channel correction",
		"currentOffsetHz", currentOffset, "tuningErrorHz", fllError, "nextOffsetHz", newOffset)

	correctedFreq := controlChannelFreq - float64(newOffset)
	sys.FinetuneControlFreq(correctedFreq)
	sys.SetAutotuneOffset(newOffset)
}
