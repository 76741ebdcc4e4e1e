// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package call implements the Call record — one grant-to-release voice
// conversation on a talkgroup — and the CallTable that deduplicates and
// supersedes concurrent grants for the same talkgroup.
package call

import (
	"sync"
	"time"
)

// State is a Call's top-level lifecycle state.
type State int

const (
	StateMonitoring State = iota
	StateRecording
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateMonitoring:
		return "MONITORING"
	case StateRecording:
		return "RECORDING"
	case StateInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// MonitoringSubstate explains why a Call is stuck in StateMonitoring
// instead of actively recording.
type MonitoringSubstate int

const (
	SubstateNone MonitoringSubstate = iota
	SubstateUnknownTG
	SubstateIgnoredTG
	SubstateNoSource
	SubstateNoRecorder
	SubstateEncrypted
	SubstateDuplicate
	SubstateSuperseded
	SubstateUnspecified
)

func (m MonitoringSubstate) String() string {
	switch m {
	case SubstateUnknownTG:
		return "UNKNOWN_TG"
	case SubstateIgnoredTG:
		return "IGNORED_TG"
	case SubstateNoSource:
		return "NO_SOURCE"
	case SubstateNoRecorder:
		return "NO_RECORDER"
	case SubstateEncrypted:
		return "ENCRYPTED"
	case SubstateDuplicate:
		return "DUPLICATE"
	case SubstateSuperseded:
		return "SUPERSEDED"
	case SubstateUnspecified:
		return "UNSPECIFIED"
	default:
		return "NONE"
	}
}

// noRecorder is the sentinel recorder handle meaning "no recorder
// bound", matching the original's weak/nullable recorder pointer.
const noRecorder = -1

// Call represents one grant-to-release voice call. It implements
// transmission.CallInfo so a bound recorder's Sink can name files and
// tag transmissions directly from it.
type Call struct {
	mu sync.Mutex

	id              int64
	talkgroup       int64
	currentSourceID int64
	freq            float64
	tdmaSlot        int // -1 = FDMA
	systemShortName string
	captureDir      string
	conventional    bool

	state    State
	substate MonitoringSubstate

	recorderHandle int // index into the owning allocator's pool, or noRecorder

	startTime  time.Time
	lastUpdate time.Time
}

// New constructs a Call in StateMonitoring with no recorder bound.
func New(id, talkgroup int64, freq float64, tdmaSlot int, systemShortName, captureDir string, conventional bool) *Call {
	now := time.Now()
	return &Call{
		id:              id,
		talkgroup:       talkgroup,
		currentSourceID: -1,
		freq:            freq,
		tdmaSlot:        tdmaSlot,
		systemShortName: systemShortName,
		captureDir:      captureDir,
		conventional:    conventional,
		state:           StateMonitoring,
		substate:        SubstateNone,
		recorderHandle:  noRecorder,
		startTime:       now,
		lastUpdate:      now,
	}
}

// Num implements transmission.CallInfo.
func (c *Call) Num() int64 { return c.id }

// Talkgroup implements transmission.CallInfo.
func (c *Call) Talkgroup() int64 { return c.talkgroup }

// Freq implements transmission.CallInfo.
func (c *Call) Freq() float64 { return c.freq }

// ShortName implements transmission.CallInfo.
func (c *Call) ShortName() string { return c.systemShortName }

// CaptureDir implements transmission.CallInfo.
func (c *Call) CaptureDir() string { return c.captureDir }

// IsConventional implements transmission.CallInfo.
func (c *Call) IsConventional() bool { return c.conventional }

// CurrentSourceID implements transmission.CallInfo.
func (c *Call) CurrentSourceID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSourceID
}

// TDMASlot returns the TDMA slot this call occupies, or -1 for FDMA.
func (c *Call) TDMASlot() int { return c.tdmaSlot }

// State returns the call's current top-level state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Substate returns the monitoring substate (meaningless unless State()
// == StateMonitoring).
func (c *Call) Substate() MonitoringSubstate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.substate
}

// SetMonitoring moves the call to StateMonitoring with the given
// substate explaining why it isn't recording.
func (c *Call) SetMonitoring(substate MonitoringSubstate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateMonitoring
	c.substate = substate
	c.lastUpdate = time.Now()
}

// BindRecorder moves the call to StateRecording bound to the given
// recorder handle.
func (c *Call) BindRecorder(recorderHandle int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorderHandle = recorderHandle
	c.state = StateRecording
	c.substate = SubstateNone
	c.lastUpdate = time.Now()
}

// RecorderHandle returns the bound recorder index, or noRecorder if
// none is bound.
func (c *Call) RecorderHandle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorderHandle
}

// HasRecorder reports whether a recorder is currently bound.
func (c *Call) HasRecorder() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorderHandle != noRecorder
}

// Touch records that the call received an UPDATE message, keeping it
// alive against the idle timeout.
func (c *Call) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUpdate = time.Now()
}

// LastUpdate returns the last time the call was touched (created,
// updated, or moved to a new substate).
func (c *Call) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// StartTime returns when the call was created.
func (c *Call) StartTime() time.Time {
	return c.startTime
}

// Deactivate moves the call to StateInactive, its terminal state, once
// its recorder's transmissions have been handed off.
func (c *Call) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateInactive
	c.recorderHandle = noRecorder
}

// SetCurrentSourceID updates the unit ID currently keyed up on this
// call's talkgroup.
func (c *Call) SetCurrentSourceID(src int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentSourceID = src
}
