// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package transmission implements the per-recorder transmission sink: a
// state machine that segments one call's incoming PCM stream into
// individual Transmission recordings (one WAV file per burst, ended by a
// terminate tag or by the call stopping)
// and tracks the lifecycle AVAILABLE -> IDLE -> RECORDING -> (IDLE |
// STOPPED) -> AVAILABLE.
package transmission

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// State is the observable lifecycle of a Sink.
type State int

const (
	StateAvailable State = iota
	StateIdle
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "AVAILABLE"
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// TagKind identifies a side-channel tag attached to a range of incoming
// samples, mirroring the GNU Radio stream tags (src_id, terminate,
// spike_count, error_count) the reference sink reads per work() call.
type TagKind int

const (
	TagSourceID TagKind = iota
	TagTerminate
	TagSpikeCount
	TagErrorCount
)

// Tag is one side-channel annotation attached at a sample offset within
// a single Write call.
type Tag struct {
	Kind   TagKind
	Offset int
	Value  int64
}

// Transmission is one completed segment of a call's recording: the
// samples from the segment's first sample to the next terminate tag or
// call stop. A source-ID change does not end a segment; Source is the
// ID current when the segment ended.
type Transmission struct {
	Source       int64
	StartTime    time.Time
	StopTime     time.Time
	SampleCount  int
	SpikeCount   int
	ErrorCount   int
	Length       float64
	Filename     string
	BaseFilename string
}

// CallInfo is the subset of call state the sink needs to name files and
// tag transmissions. internal/call.Call implements this.
type CallInfo interface {
	Num() int64
	Freq() float64
	Talkgroup() int64
	ShortName() string
	CaptureDir() string
	IsConventional() bool
	CurrentSourceID() int64
}

// Sink is a per-recorder transmission segmenter and WAV writer.
type Sink struct {
	sampleRate    uint32
	channels      int
	bitsPerSample int

	mu                      sync.Mutex
	state                   State
	call                    CallInfo
	callNum                 int64
	callFreq                float64
	callTalkgroup           int64
	callShortName           string
	callCaptureDir          string
	conventional            bool
	slot                    int
	recordMoreTransmissions bool
	terminationFlag         bool

	currSrcID               int64
	sampleCount             int
	errorCount              int
	spikeCount              int
	priorTransmissionLength float64

	startTime time.Time
	stopTime  time.Time
	lastStart time.Time

	baseFilename string
	filename     string
	file         *os.File

	transmissions []Transmission

	// totalSpikeCount and totalErrorCount are lifetime (never reset by
	// StartRecording, unlike transmissions) sums of every finalized
	// transmission's IMBE frame-repeat/mute tag counts, consumed by
	// internal/metrics as Prometheus counters.
	totalSpikeCount uint64
	totalErrorCount uint64
}

// NewSink validates bitsPerSample (8 or 16, matching the reference
// writer's supported depths) and returns an AVAILABLE sink.
func NewSink(channels int, sampleRate uint32, bitsPerSample int) (*Sink, error) {
	if bitsPerSample != 8 && bitsPerSample != 16 {
		return nil, fmt.Errorf("transmission: invalid bits per sample %d (supports 8 and 16)", bitsPerSample)
	}
	return &Sink{
		channels:      channels,
		sampleRate:    sampleRate,
		bitsPerSample: bitsPerSample,
		state:         StateAvailable,
		slot:          -1,
		currSrcID:     -1,
	}, nil
}

// State returns the sink's current lifecycle state.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartRecording binds the sink to call and moves it to IDLE, ready to
// open its first transmission file on the next Write. slot is -1 for a
// single-slot recorder, or a TDMA slot index when two sinks share a
// talkgroup recording (the filename gets a ".<slot>" suffix).
func (s *Sink) StartRecording(call CallInfo, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slot = slot
	s.call = call
	s.callNum = call.Num()
	s.callFreq = call.Freq()
	s.callTalkgroup = call.Talkgroup()
	s.callShortName = call.ShortName()
	s.callCaptureDir = call.CaptureDir()
	s.conventional = call.IsConventional()
	s.currSrcID = call.CurrentSourceID()

	s.priorTransmissionLength = 0
	s.errorCount = 0
	s.spikeCount = 0
	s.sampleCount = 0
	s.recordMoreTransmissions = true
	s.transmissions = nil

	s.state = StateIdle

	slog.Debug("transmission: starting recording",
		"call", s.callNum, "talkgroup", s.callTalkgroup, "freq", s.callFreq, "source", s.currSrcID)
}

// StopRecording finalizes any in-progress transmission and returns the
// sink to AVAILABLE, the terminal state for a call's lifecycle.
func (s *Sink) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sampleCount > 0 {
		s.endTransmissionLocked()
	}
	s.call = nil
	s.terminationFlag = false
	s.state = StateAvailable
}

// SetSource externally forces the current source ID (used when unit ID
// is learned out-of-band rather than from a stream tag).
func (s *Sink) SetSource(src int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currSrcID == -1 {
		s.currSrcID = src
	} else if src != s.currSrcID {
		s.currSrcID = src
	}
}

// SetRecordMoreTransmissions controls whether, after a terminate tag
// closes the in-flight transmission, the sink goes IDLE (ready to start
// a new one) or STOPPED (no more transmissions expected until the call
// ends). The flag is cleared each time a new transmission file is
// opened. Per the reference behavior, flipping this true while STOPPED
// immediately re-arms the sink to IDLE.
func (s *Sink) SetRecordMoreTransmissions(more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recordMoreTransmissions && more && s.state == StateStopped {
		s.sampleCount = 0
		s.state = StateIdle
	}
	s.recordMoreTransmissions = more
}

// Transmissions returns the transmissions recorded so far this call.
func (s *Sink) Transmissions() []Transmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transmission, len(s.transmissions))
	copy(out, s.transmissions)
	return out
}

// TotalSpikeCount returns the lifetime count of IMBE repeat-tagged
// frames across every transmission this sink has ever finalized.
func (s *Sink) TotalSpikeCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSpikeCount
}

// TotalErrorCount returns the lifetime count of IMBE mute-tagged frames
// across every transmission this sink has ever finalized.
func (s *Sink) TotalErrorCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalErrorCount
}

// LengthSeconds returns the in-progress transmission's length.
func (s *Sink) LengthSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lengthInSecondsLocked()
}

func (s *Sink) lengthInSecondsLocked() float64 {
	return float64(s.sampleCount) / float64(s.sampleRate)
}

// TotalLengthSeconds returns the sum of every completed transmission's
// length plus the in-progress one — the invariant checked against
// sum(t.length) for every recorded Call.
func (s *Sink) TotalLengthSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lengthInSecondsLocked() + s.priorTransmissionLength
}

// Write accepts noutput samples (one int16 PCM stream, already mixed
// down to one channel as the reference decoder's IMBE output is) plus
// any tags observed in this batch's offset range, and returns the number
// of samples consumed. This is the Go analogue of transmission_sink::
// work()/dowork(): tag processing, then per-state sample handling.
func (s *Sink) Write(samples []int16, tags []Tag) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.call == nil {
		slog.Error("transmission: dropping samples, no current call", "count", len(samples), "state", s.state)
		return len(samples), nil
	}

	if s.state == StateStopped || s.state == StateAvailable {
		if len(samples) > 1 {
			slog.Error("transmission: dropping samples, sink not recording", "count", len(samples), "state", s.state)
		}
		return len(samples), nil
	}

	for _, tag := range tags {
		switch tag.Kind {
		case TagSourceID:
			if s.currSrcID == -1 {
				s.currSrcID = tag.Value
			} else if tag.Value != s.currSrcID {
				s.currSrcID = tag.Value
			}
		case TagTerminate:
			s.terminationFlag = true
		case TagSpikeCount:
			if s.state == StateRecording {
				s.spikeCount = int(tag.Value)
			}
		case TagErrorCount:
			if s.state == StateRecording {
				s.errorCount = int(tag.Value)
			}
		}
	}

	n, err := s.doWorkLocked(samples)
	s.stopTime = time.Now()
	return n, err
}

func (s *Sink) doWorkLocked(samples []int16) (int, error) {
	if s.terminationFlag {
		s.terminationFlag = false

		if s.call == nil {
			slog.Error("transmission: terminate tag with no current call")
			s.state = StateStopped
			return len(samples), nil
		}

		if s.sampleCount > 0 {
			s.endTransmissionLocked()
			if s.conventional || s.recordMoreTransmissions {
				s.state = StateIdle
			} else {
				s.state = StateStopped
			}
		}
		return len(samples), nil
	}

	if s.state == StateIdle {
		if s.file != nil {
			s.closeWavLocked()
		}

		now := time.Now()
		if now.Unix() <= s.lastStart.Unix() {
			now = s.lastStart.Add(time.Second)
		}
		s.startTime = now
		s.lastStart = now

		s.createBaseFilenameLocked()
		s.filename = s.baseFilename + ".wav"
		if err := s.openLocked(s.filename); err != nil {
			slog.Error("transmission: can't open file", "filename", s.filename, "error", err)
			return len(samples), err
		}

		s.recordMoreTransmissions = false
		s.state = StateRecording
	}

	if s.file == nil {
		slog.Error("transmission: dropping samples, no open file", "count", len(samples))
		return len(samples), nil
	}

	written := 0
	if s.state == StateRecording {
		for _, sample := range samples {
			if err := writeSample(s.file, sample, s.bitsPerSample); err != nil {
				return written, fmt.Errorf("transmission: writing sample: %w", err)
			}
			s.sampleCount++
			written++
		}
		klog.V(4).Infof("transmission: wrote %d samples, total %d", written, s.sampleCount)
	}

	return len(samples), nil
}

// endTransmissionLocked finalizes the open WAV file (if any) and appends
// a completed Transmission record; it is a caller error to invoke this
// with a zero sample count.
func (s *Sink) endTransmissionLocked() {
	if s.sampleCount == 0 {
		slog.Error("transmission: ending transmission with zero samples")
		return
	}
	if s.file != nil {
		s.closeWavLocked()
	} else {
		slog.Error("transmission: ending transmission, sample count > 0 but no open file")
	}

	length := s.lengthInSecondsLocked()
	t := Transmission{
		Source:       s.currSrcID,
		StartTime:    s.startTime,
		StopTime:     s.stopTime,
		SampleCount:  s.sampleCount,
		SpikeCount:   s.spikeCount,
		ErrorCount:   s.errorCount,
		Length:       length,
		Filename:     s.filename,
		BaseFilename: s.baseFilename,
	}
	s.priorTransmissionLength += length
	s.transmissions = append(s.transmissions, t)
	s.totalSpikeCount += uint64(s.spikeCount)
	s.totalErrorCount += uint64(s.errorCount)

	s.sampleCount = 0
	s.errorCount = 0
	s.spikeCount = 0
	s.currSrcID = -1
}

// createBaseFilenameLocked builds "<capture>/<short_name>/<Y>/<M>/<D>/
// <tg>-<unix>_<freq>[.<slot>]", creating the date directories as needed.
func (s *Sink) createBaseFilenameLocked() {
	dir := filepath.Join(
		s.callCaptureDir,
		s.callShortName,
		fmt.Sprintf("%d", s.startTime.Year()),
		fmt.Sprintf("%d", int(s.startTime.Month())),
		fmt.Sprintf("%d", s.startTime.Day()),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("transmission: creating capture directory", "dir", dir, "error", err)
	}

	base := fmt.Sprintf("%s/%d-%d_%.0f", dir, s.callTalkgroup, s.startTime.Unix(), s.callFreq)
	if s.slot != -1 {
		base = fmt.Sprintf("%s.%d", base, s.slot)
	}
	s.baseFilename = base
}

func (s *Sink) openLocked(filename string) error {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o664)
	if err != nil {
		return fmt.Errorf("transmission: opening %s: %w", filename, err)
	}
	if err := writeWavHeader(f, s.sampleRate, s.channels, s.bitsPerSample); err != nil {
		f.Close()
		return fmt.Errorf("transmission: writing wav header: %w", err)
	}
	s.file = f
	s.sampleCount = 0
	return nil
}

func (s *Sink) closeWavLocked() {
	byteCount := uint32(s.sampleCount * (s.bitsPerSample / 8))
	if err := completeWavHeader(s.file, byteCount); err != nil {
		slog.Error("transmission: completing wav header", "error", err)
	}
	if err := s.file.Close(); err != nil {
		slog.Error("transmission: closing wav file", "error", err)
	}
	s.file = nil
}
