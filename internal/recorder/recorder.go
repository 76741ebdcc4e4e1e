// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package recorder implements the reusable processing graph a Source
// hands calls to: a tunable frequency slot, its TransmissionSink, and
// the lifecycle state machine a Source's allocator drives.
package recorder

import (
	"fmt"
	"sync"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/transmission"
	"k8s.io/klog/v2"
)

// State is a Recorder's lifecycle state: one of {AVAILABLE, IDLE,
// ACTIVE, RECORDING, STOPPED, INACTIVE}.
type State int

const (
	StateAvailable State = iota
	StateIdle
	StateActive
	StateRecording
	StateStopped
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "AVAILABLE"
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateRecording:
		return "RECORDING"
	case StateStopped:
		return "STOPPED"
	case StateInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Kind distinguishes the recorder pools a Source maintains.
type Kind int

const (
	KindDigital Kind = iota
	KindAnalog
	KindDebug
	KindSigMF
)

func (k Kind) String() string {
	switch k {
	case KindDigital:
		return "digital"
	case KindAnalog:
		return "analog"
	case KindDebug:
		return "debug"
	case KindSigMF:
		return "sigmf"
	default:
		return "unknown"
	}
}

// Recorder is a reusable per-call processing graph: slicer -> frame
// assembler -> Sink, owned exclusively by one Source.
type Recorder struct {
	Num  int
	Kind Kind

	sink *transmission.Sink

	mu    sync.Mutex
	state State
	freq  float64
	call  *call.Call
}

// New constructs an AVAILABLE recorder wrapping the given sink.
func New(num int, kind Kind, sink *transmission.Sink) *Recorder {
	return &Recorder{
		Num:   num,
		Kind:  kind,
		sink:  sink,
		state: StateAvailable,
	}
}

// State returns the recorder's current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Freq returns the recorder's currently tuned frequency.
func (r *Recorder) Freq() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freq
}

// Call returns the recorder's currently bound Call, or nil if none
// (invariant: AVAILABLE has no Call bound).
func (r *Recorder) Call() *call.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.call
}

// Sink returns the recorder's owned TransmissionSink.
func (r *Recorder) Sink() *transmission.Sink {
	return r.sink
}

// Start binds c to this recorder, tunes to freq, and moves the
// recorder through ACTIVE into RECORDING-readiness (the sink itself
// transitions IDLE->RECORDING on its first sample).
func (r *Recorder) Start(c *call.Call, freq float64, slot int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAvailable {
		return fmt.Errorf("recorder: cannot start recorder %d, state is %s", r.Num, r.state)
	}

	r.call = c
	r.freq = freq
	r.state = StateActive
	r.sink.StartRecording(c, slot)
	r.state = StateRecording
	return nil
}

// Retune updates the recorder's target frequency without unbinding its
// call, used after an autotune correction shifts the source's offset.
func (r *Recorder) Retune(freq float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	klog.V(4).Infof("recorder %d: retuning %.0f -> %.0f", r.Num, r.freq, freq)
	r.freq = freq
}

// SetRecordMoreTransmissions forwards to the sink, keeping a call alive
// past a terminate tag (dispatcher UPDATE handling).
func (r *Recorder) SetRecordMoreTransmissions(more bool) {
	r.sink.SetRecordMoreTransmissions(more)
}

// RecordMoreTransmissions reports whether the sink will stay IDLE
// rather than STOPPED after its next terminate tag.
func (r *Recorder) RecordMoreTransmissions() bool {
	return r.sink.State() != transmission.StateStopped
}

// Stop ends recording, releases the call binding, and returns the
// recorder to AVAILABLE. Idempotent, mirroring TransmissionSink's
// stop_recording.
func (r *Recorder) Stop() {
	r.sink.StopRecording()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.call = nil
	r.freq = 0
	r.state = StateAvailable
}

// Deactivate permanently removes the recorder from service (e.g. at
// shutdown), moving it to INACTIVE regardless of current state.
func (r *Recorder) Deactivate() {
	r.sink.StopRecording()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.call = nil
	r.state = StateInactive
}
