// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package dispatcher

import (
	"log/slog"
	"sync"

	"github.com/USA-RedDragon/trunk-recorder/internal/autotune"
	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/system"
)

// Allocator is the subset of internal/source's recorder-pool behavior
// the dispatcher needs: finding and binding recorders to calls,
// without importing internal/source directly (that package in turn
// depends on autotune.Source, not on dispatcher — this keeps the
// dependency graph acyclic).
type Allocator interface {
	// GetDigitalRecorder returns a recorder handle able to cover freq,
	// or ok=false if none is available/priority denies it.
	GetDigitalRecorder(freq float64, priority int64) (handle int, ok bool)
	BindCall(handle int, c *call.Call) error
	StopRecorder(handle int)
	SetRecordMoreTransmissions(handle int, more bool)
	TuneDigitalRecorders()
	// RecordMoreTransmissions reports a recorder's current flag value,
	// used by the call table's supersession decision.
	RecordMoreTransmissions(handle int) bool
}

// Dispatcher consumes TrunkMessages, creates/ends Calls, and binds
// recorders to them.
type Dispatcher struct {
	mu         sync.RWMutex
	systems    map[int]*system.System
	allocators map[int]Allocator
	callTable  *call.Table
}

// New returns an empty Dispatcher sharing the given call table.
func New(callTable *call.Table) *Dispatcher {
	return &Dispatcher{
		systems:    make(map[int]*system.System),
		allocators: make(map[int]Allocator),
		callTable:  callTable,
	}
}

// RegisterSystem associates a sysNum with its System definition and the
// Allocator that serves its recorder pools.
func (d *Dispatcher) RegisterSystem(sysNum int, sys *system.System, alloc Allocator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.systems[sysNum] = sys
	d.allocators[sysNum] = alloc
}

// Dispatch routes one TrunkMessage to its handler.
func (d *Dispatcher) Dispatch(msg TrunkMessage) {
	switch msg.Kind {
	case KindGrant:
		if msg.Grant != nil {
			d.handleGrant(*msg.Grant)
		}
	case KindUpdate:
		if msg.Update != nil {
			d.handleUpdate(*msg.Update)
		}
	case KindPatchAdd:
		if msg.Patch != nil {
			d.handlePatchAdd(*msg.Patch)
		}
	case KindPatchDelete:
		if msg.Patch != nil {
			d.handlePatchDelete(*msg.Patch)
		}
	case KindControlChannel:
		if msg.ControlChannel != nil {
			d.handleControlChannel(*msg.ControlChannel)
		}
	default:
		slog.Debug("dispatcher: informational message", "kind", msg.Kind)
	}
}

func (d *Dispatcher) lookupSystem(sysNum int) (*system.System, Allocator, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sys, ok := d.systems[sysNum]
	if !ok {
		return nil, nil, false
	}
	sys.IncrementMessageCount()
	return sys, d.allocators[sysNum], true
}

// handleGrant implements: resolve talkgroup -> priority, find coverage,
// request a recorder, create/bind the Call or mark it MONITORING with
// the substate that explains why.
func (d *Dispatcher) handleGrant(msg GrantMessage) {
	sys, alloc, ok := d.lookupSystem(msg.SysNum)
	if !ok {
		slog.Warn("dispatcher: grant for unknown system", "sysNum", msg.SysNum)
		return
	}

	tg, known := sys.Talkgroups.Lookup(msg.Talkgroup)
	if !known {
		c := call.New(d.callTable.NextID(), msg.Talkgroup, msg.Freq, msg.TDMASlot, sys.ShortName, "", false)
		c.SetMonitoring(call.SubstateUnknownTG)
		d.callTable.Register(c)
		return
	}

	if msg.Encrypted {
		c := call.New(d.callTable.NextID(), msg.Talkgroup, msg.Freq, msg.TDMASlot, sys.ShortName, "", false)
		c.SetMonitoring(call.SubstateEncrypted)
		d.callTable.Register(c)
		return
	}

	recordMore := true
	if alloc != nil {
		if existing, ok := d.existingRecorder(sys.ShortName, msg.Talkgroup); ok {
			recordMore = alloc.RecordMoreTransmissions(existing)
		}
	}

	decision, existing := d.callTable.Offer(sys.ShortName, msg.Talkgroup, msg.Freq, recordMore)
	switch decision {
	case call.DecisionDuplicate:
		existing.SetMonitoring(call.SubstateDuplicate)
		return
	case call.DecisionSuperseded:
		existing.SetMonitoring(call.SubstateSuperseded)
		if alloc != nil && existing.HasRecorder() {
			alloc.StopRecorder(existing.RecorderHandle())
		}
	}

	c := call.New(d.callTable.NextID(), msg.Talkgroup, msg.Freq, msg.TDMASlot, sys.ShortName, "", false)
	c.SetCurrentSourceID(msg.Source)

	if alloc == nil {
		c.SetMonitoring(call.SubstateNoSource)
		d.callTable.Register(c)
		return
	}

	handle, ok := alloc.GetDigitalRecorder(msg.Freq, msg.Priority)
	if !ok {
		c.SetMonitoring(call.SubstateNoRecorder)
		d.callTable.Register(c)
		return
	}

	if err := alloc.BindCall(handle, c); err != nil {
		slog.Error("dispatcher: binding recorder to call", "error", err)
		c.SetMonitoring(call.SubstateNoRecorder)
		d.callTable.Register(c)
		return
	}

	c.BindRecorder(handle)
	d.callTable.Register(c)

	if tg.Tag == "ignore" {
		c.SetMonitoring(call.SubstateIgnoredTG)
	}

	sys.UpdateActiveTalkgroupSubscribers(msg.Talkgroup, msg.Source)
}

// existingRecorder finds the recorder handle bound to the currently
// tracked call for a talkgroup, if any.
func (d *Dispatcher) existingRecorder(systemShortName string, talkgroup int64) (int, bool) {
	for _, c := range d.callTable.Active() {
		if c.ShortName() == systemShortName && c.Talkgroup() == talkgroup && c.HasRecorder() {
			return c.RecorderHandle(), true
		}
	}
	return 0, false
}

// handleUpdate sets record_more_transmissions=true on the bound
// recorder so a short silence does not finalize the call.
func (d *Dispatcher) handleUpdate(msg UpdateMessage) {
	sys, alloc, ok := d.lookupSystem(msg.SysNum)
	if !ok || alloc == nil {
		return
	}
	for _, c := range d.callTable.Active() {
		if c.ShortName() == sys.ShortName && c.Talkgroup() == msg.Talkgroup && c.HasRecorder() {
			alloc.SetRecordMoreTransmissions(c.RecorderHandle(), true)
			d.callTable.Touch(c)
		}
	}
}

func (d *Dispatcher) handlePatchAdd(msg PatchMessage) {
	sys, _, ok := d.lookupSystem(msg.SysNum)
	if !ok {
		return
	}
	sys.UpdateActiveTalkgroupPatches(msg.Data)
}

func (d *Dispatcher) handlePatchDelete(msg PatchMessage) {
	sys, _, ok := d.lookupSystem(msg.SysNum)
	if !ok {
		return
	}
	sys.DeleteTalkgroupPatch(msg.Data)
}

// handleControlChannel updates the active control channel and may
// trigger an autotune correction.
func (d *Dispatcher) handleControlChannel(msg ControlChannelMessage) {
	sys, alloc, ok := d.lookupSystem(msg.SysNum)
	if !ok {
		return
	}
	sys.AddControlChannel(msg.Freq)

	mgr := sys.AutotuneManager()
	if mgr != nil {
		autotune.TuneControlChannel(sys, true)
	}
	if alloc != nil {
		alloc.TuneDigitalRecorders()
	}
}

// StatusTick runs the periodic maintenance the original performs on
// each status interval: purge stale patches and autotune each system's
// control channel. Recorder-pool utilization logging is left to
// internal/statusticker, which has visibility into the pools
// themselves.
func (d *Dispatcher) StatusTick() {
	d.mu.RLock()
	systems := make([]*system.System, 0, len(d.systems))
	for _, sys := range d.systems {
		systems = append(systems, sys)
	}
	d.mu.RUnlock()

	for _, sys := range systems {
		sys.ClearStaleTalkgroupPatches()
		if sys.AutotuneManager() != nil {
			autotune.TuneControlChannel(sys, true)
		}
	}
}
