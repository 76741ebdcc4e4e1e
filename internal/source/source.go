// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package source owns one SDR front-end, its usable RF window, and the
// pools of recorders multiplexed across it. It implements
// autotune.Source (so an AutotuneManager can own it) and
// dispatcher.Allocator (so the dispatcher can request recorders from
// it) without either of those packages importing this one.
package source

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/recorder"
	"hz.tools/rf"
	"hz.tools/sdr"
)

// DriverKind is the tagged variant of SDR driver a Source wraps.
type DriverKind int

const (
	DriverOsmoSDR DriverKind = iota
	DriverUSRP
)

func (d DriverKind) String() string {
	switch d {
	case DriverOsmoSDR:
		return "osmosdr"
	case DriverUSRP:
		return "usrp"
	default:
		return "unknown"
	}
}

// ifFrequencies are the fixed IF candidates set_min_max checks, in
// order, exactly as the original tries {24000, 25000, 32000} Hz.
var ifFrequencies = [3]int64{24000, 25000, 32000}

// Source owns a physical SDR receiver's usable window and recorder
// pools.
type Source struct {
	num int

	center float64
	rate   float64
	error  float64 // static error offset, Hz
	driver DriverKind
	device string
	sdr    sdr.Sdr // nil in tests / before Open

	gainStages map[string]int
	antenna    string

	minHz float64
	maxHz float64

	mu              sync.Mutex
	digitalPool     []*recorder.Recorder
	analogPool      []*recorder.Recorder
	debugPool       []*recorder.Recorder
	sigmfPool       []*recorder.Recorder
	autotuneOffset  int
}

// New constructs a Source and immediately computes its usable window
// via the decimation-margin math in setMinMax, mirroring the original
// constructor's call to set_min_max().
func New(num int, center, rate, staticError float64, driver DriverKind, device string) *Source {
	s := &Source{
		num:        num,
		center:     center,
		rate:       rate,
		error:      staticError,
		driver:     driver,
		device:     device,
		gainStages: make(map[string]int),
	}
	s.setMinMax()
	slog.Info("source: usable window computed",
		"source", s.num,
		"center", rf.Hz(s.center).String(),
		"min", rf.Hz(s.minHz).String(),
		"max", rf.Hz(s.maxHz).String(),
	)
	return s
}

// setMinMax computes the usable [minHz, maxHz] window narrower than the
// full sample-rate span by the decimation margin, following
// Source::set_min_max exactly: try each IF candidate in {24000, 25000,
// 32000}, keep decim from the last candidate that evenly divides rate
// into an even quotient.
func (s *Source) setMinMax() {
	decim := int64(24000)
	rateInt := int64(s.rate)

	for _, ifFreq := range ifFrequencies {
		if rateInt%ifFreq != 0 {
			continue
		}
		q := rateInt / ifFreq
		if q&1 != 0 {
			continue
		}
		if q >= 40 && q&3 == 0 {
			decim = q / 4
		} else {
			decim = q / 2
		}
	}

	if1 := float64(rateInt) / float64(decim)
	s.minHz = s.center - ((s.rate / 2) - (if1 / 2))
	s.maxHz = s.center + ((s.rate / 2) - (if1 / 2))
}

// Num implements autotune.Source.
func (s *Source) Num() int { return s.num }

// CenterFrequency implements autotune.Source.
func (s *Source) CenterFrequency() float64 { return s.center }

// ConfiguredError implements autotune.Source.
func (s *Source) ConfiguredError() float64 { return s.error }

// Rate returns the configured sample rate in Hz.
func (s *Source) Rate() float64 { return s.rate }

// MinHz and MaxHz report the usable RF window.
func (s *Source) MinHz() float64 { return s.minHz }
func (s *Source) MaxHz() float64 { return s.maxHz }

// Covers reports whether freq lies within this source's usable window,
// the validity invariant every recorder binding must satisfy.
func (s *Source) Covers(freq float64) bool {
	return freq >= s.minHz && freq <= s.maxHz
}

// Driver returns the SDR backend this source binds to.
func (s *Source) Driver() DriverKind { return s.driver }

// Device returns the driver-specific device argument string.
func (s *Source) Device() string { return s.device }

// Antenna returns the configured antenna name.
func (s *Source) Antenna() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.antenna
}

// SetAntenna records the configured antenna name.
func (s *Source) SetAntenna(antenna string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.antenna = antenna
}

// GainStages returns a copy of the named gain stage values, keyed by
// stage name (e.g. "LNA", "VGA"), for the structured-metadata "config"
// message's per-stage `<stage>_gain` fields.
func (s *Source) GainStages() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.gainStages))
	for k, v := range s.gainStages {
		out[k] = v
	}
	return out
}

// SetGainStage records a named gain stage's value (e.g. "LNA", "VGA").
func (s *Source) SetGainStage(name string, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gainStages[name] = value
}

// GainStage returns a named gain stage's configured value.
func (s *Source) GainStage(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.gainStages[name]
	return v, ok
}

// AddDigitalRecorder, AddAnalogRecorder, AddDebugRecorder and
// AddSigMFRecorder build out the pools at startup, mirroring
// Source::create_digital_recorders/create_conventional_recorder.
func (s *Source) AddDigitalRecorder(r *recorder.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digitalPool = append(s.digitalPool, r)
}

func (s *Source) AddAnalogRecorder(r *recorder.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analogPool = append(s.analogPool, r)
}

func (s *Source) AddDebugRecorder(r *recorder.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugPool = append(s.debugPool, r)
}

func (s *Source) AddSigMFRecorder(r *recorder.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sigmfPool = append(s.sigmfPool, r)
}

// PoolStats summarizes one recorder pool's lifecycle-state distribution,
// consumed by internal/metrics to publish per-source, per-pool gauges.
type PoolStats struct {
	Available int
	Idle      int
	Active    int
	Recording int
	Stopped   int
	Inactive  int
}

func statsOf(pool []*recorder.Recorder) PoolStats {
	var st PoolStats
	for _, r := range pool {
		switch r.State() {
		case recorder.StateAvailable:
			st.Available++
		case recorder.StateIdle:
			st.Idle++
		case recorder.StateActive:
			st.Active++
		case recorder.StateRecording:
			st.Recording++
		case recorder.StateStopped:
			st.Stopped++
		case recorder.StateInactive:
			st.Inactive++
		}
	}
	return st
}

// DigitalPoolStats, AnalogPoolStats, DebugPoolStats and SigMFPoolStats
// snapshot each pool's current state distribution.
func (s *Source) DigitalPoolStats() PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(s.digitalPool)
}

func (s *Source) AnalogPoolStats() PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(s.analogPool)
}

func (s *Source) DebugPoolStats() PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(s.debugPool)
}

func (s *Source) SigMFPoolStats() PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(s.sigmfPool)
}

// DigitalRecorders returns a snapshot copy of the digital pool, walked
// by internal/metrics to sum each recorder's lifetime IMBE counters.
func (s *Source) DigitalRecorders() []*recorder.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*recorder.Recorder, len(s.digitalPool))
	copy(out, s.digitalPool)
	return out
}

// AllRecorders returns a snapshot copy of every pool (digital, analog,
// debug, sigmf) concatenated, for internal/metadata's "recorders"
// message, matching splunk.cc's send_recorders(recorders) which is
// handed every pool's recorders together.
func (s *Source) AllRecorders() []*recorder.Recorder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*recorder.Recorder, 0, len(s.digitalPool)+len(s.analogPool)+len(s.debugPool)+len(s.sigmfPool))
	out = append(out, s.digitalPool...)
	out = append(out, s.analogPool...)
	out = append(out, s.debugPool...)
	out = append(out, s.sigmfPool...)
	return out
}

// numAvailable counts AVAILABLE recorders in pool, in order.
func numAvailable(pool []*recorder.Recorder) int {
	n := 0
	for _, r := range pool {
		if r.State() == recorder.StateAvailable {
			n++
		}
	}
	return n
}

// firstAvailable returns the first AVAILABLE recorder in pool
// order — deterministic "first in pool order wins" allocation.
func firstAvailable(pool []*recorder.Recorder) *recorder.Recorder {
	for _, r := range pool {
		if r.State() == recorder.StateAvailable {
			return r
		}
	}
	return nil
}

// GetDigitalRecorder implements dispatcher.Allocator: returns an
// AVAILABLE digital recorder's pool index, or ok=false if none, or if
// priority gating denies it (priority > available count), matching
// Source::get_digital_recorder(talkgroup, priority).
func (s *Source) GetDigitalRecorder(freq float64, priority int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.coversLocked(freq) {
		return 0, false
	}

	available := numAvailable(s.digitalPool)
	if priority > int64(available) {
		slog.Info("source: not recording, priority exceeds available recorders",
			"source", s.num, "priority", priority, "available", available)
		return 0, false
	}

	r := firstAvailable(s.digitalPool)
	if r == nil {
		slog.Info("source: no digital recorders available", "source", s.num)
		return 0, false
	}
	return s.indexOfLocked(r), true
}

// GetAnalogRecorder mirrors GetDigitalRecorder for the analog pool.
func (s *Source) GetAnalogRecorder(freq float64, priority int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.coversLocked(freq) {
		return 0, false
	}
	available := numAvailable(s.analogPool)
	if priority > int64(available) {
		return 0, false
	}
	r := firstAvailable(s.analogPool)
	if r == nil {
		return 0, false
	}
	return s.indexOfLocked(r) | digitalIndexBit, true
}

// digitalIndexBit distinguishes analog-pool handles from digital-pool
// handles within the same flat handle space BindCall/StopRecorder use.
const digitalIndexBit = 1 << 16

func (s *Source) coversLocked(freq float64) bool {
	return freq >= s.minHz && freq <= s.maxHz
}

func (s *Source) indexOfLocked(r *recorder.Recorder) int {
	for i, candidate := range s.digitalPool {
		if candidate == r {
			return i
		}
	}
	for i, candidate := range s.analogPool {
		if candidate == r {
			return i | digitalIndexBit
		}
	}
	return -1
}

func (s *Source) recorderForHandleLocked(handle int) (*recorder.Recorder, bool) {
	if handle&digitalIndexBit != 0 {
		idx := handle &^ digitalIndexBit
		if idx < 0 || idx >= len(s.analogPool) {
			return nil, false
		}
		return s.analogPool[idx], true
	}
	if handle < 0 || handle >= len(s.digitalPool) {
		return nil, false
	}
	return s.digitalPool[handle], true
}

// BindCall implements dispatcher.Allocator.
func (s *Source) BindCall(handle int, c *call.Call) error {
	s.mu.Lock()
	r, ok := s.recorderForHandleLocked(handle)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("source: no recorder for handle %d", handle)
	}
	slot := c.TDMASlot()
	return r.Start(c, c.Freq(), slot)
}

// StopRecorder implements dispatcher.Allocator.
func (s *Source) StopRecorder(handle int) {
	s.mu.Lock()
	r, ok := s.recorderForHandleLocked(handle)
	s.mu.Unlock()
	if ok {
		r.Stop()
	}
}

// SetRecordMoreTransmissions implements dispatcher.Allocator.
func (s *Source) SetRecordMoreTransmissions(handle int, more bool) {
	s.mu.Lock()
	r, ok := s.recorderForHandleLocked(handle)
	s.mu.Unlock()
	if ok {
		r.SetRecordMoreTransmissions(more)
	}
}

// RecordMoreTransmissions implements dispatcher.Allocator.
func (s *Source) RecordMoreTransmissions(handle int) bool {
	s.mu.Lock()
	r, ok := s.recorderForHandleLocked(handle)
	s.mu.Unlock()
	if !ok {
		return false
	}
	return r.RecordMoreTransmissions()
}

// TuneDigitalRecorders re-aligns every currently bound digital recorder
// after an autotune shift, matching Source::tune_digital_recorders.
func (s *Source) TuneDigitalRecorders() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.digitalPool {
		if r.State() == recorder.StateRecording {
			r.Retune(r.Freq())
		}
	}
}

// SetAutotuneOffset implements autotune.ControlChannelSystem-adjacent
// bookkeeping for sources that also act as their own control-channel
// tuner (single-source conventional P25 systems).
func (s *Source) SetAutotuneOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autotuneOffset = offset
}

// AutotuneOffset returns the last applied autotune correction, in Hz.
func (s *Source) AutotuneOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autotuneOffset
}

func (s *Source) String() string {
	return fmt.Sprintf("Source{%d, %s, center=%.0f, rate=%.0f}", s.num, s.driver, s.center, s.rate)
}
