// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package dispatcher

import (
	"sync"
	"testing"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/system"
	"github.com/USA-RedDragon/trunk-recorder/internal/talkgroups"
	"github.com/USA-RedDragon/trunk-recorder/internal/unittags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct {
	mu         sync.Mutex
	nextHandle int
	bound      map[int]*call.Call
	recordMore map[int]bool
	stopped    []int
	available  bool
	tuned      int
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{
		bound:      make(map[int]*call.Call),
		recordMore: make(map[int]bool),
		available:  true,
	}
}

func (f *fakeAllocator) GetDigitalRecorder(freq float64, priority int64) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available {
		return 0, false
	}
	handle := f.nextHandle
	f.nextHandle++
	return handle, true
}

func (f *fakeAllocator) BindCall(handle int, c *call.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound[handle] = c
	f.recordMore[handle] = false
	return nil
}

func (f *fakeAllocator) StopRecorder(handle int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, handle)
	delete(f.bound, handle)
}

func (f *fakeAllocator) SetRecordMoreTransmissions(handle int, more bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordMore[handle] = more
}

func (f *fakeAllocator) RecordMoreTransmissions(handle int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordMore[handle]
}

func (f *fakeAllocator) TuneDigitalRecorders() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tuned++
}

func newTestSetup() (*Dispatcher, *system.System, *fakeAllocator) {
	sys := system.New("metro", system.KindP25, 0x1A2, 0xBEE00, 0xBEE00, talkgroups.NewStore(), unittags.NewStore(unittags.ModeUserFirst))
	sys.Talkgroups.Add(talkgroups.Talkgroup{Number: 100, AlphaTag: "Dispatch"})

	table := call.NewTable(time.Hour)
	d := New(table)
	alloc := newFakeAllocator()
	d.RegisterSystem(1, sys, alloc)
	return d, sys, alloc
}

func TestHandleGrantBindsRecorderForKnownTalkgroup(t *testing.T) {
	d, _, alloc := newTestSetup()

	d.Dispatch(TrunkMessage{Kind: KindGrant, Grant: &GrantMessage{
		Freq: 851012500, Talkgroup: 100, Source: 42, SysNum: 1,
	}})

	calls := d.callTable.Active()
	require.Len(t, calls, 1)
	assert.Equal(t, call.StateRecording, calls[0].State())
	assert.Len(t, alloc.bound, 1)
}

func TestHandleGrantUnknownTalkgroupMonitors(t *testing.T) {
	d, _, _ := newTestSetup()

	d.Dispatch(TrunkMessage{Kind: KindGrant, Grant: &GrantMessage{
		Freq: 851012500, Talkgroup: 999, Source: 42, SysNum: 1,
	}})

	calls := d.callTable.Active()
	require.Len(t, calls, 1)
	assert.Equal(t, call.StateMonitoring, calls[0].State())
	assert.Equal(t, call.SubstateUnknownTG, calls[0].Substate())
}

func TestHandleGrantEncryptedMonitors(t *testing.T) {
	d, _, _ := newTestSetup()

	d.Dispatch(TrunkMessage{Kind: KindGrant, Grant: &GrantMessage{
		Freq: 851012500, Talkgroup: 100, Source: 42, SysNum: 1, Encrypted: true,
	}})

	calls := d.callTable.Active()
	require.Len(t, calls, 1)
	assert.Equal(t, call.SubstateEncrypted, calls[0].Substate())
}

func TestHandleGrantNoRecorderAvailable(t *testing.T) {
	d, _, alloc := newTestSetup()
	alloc.available = false

	d.Dispatch(TrunkMessage{Kind: KindGrant, Grant: &GrantMessage{
		Freq: 851012500, Talkgroup: 100, Source: 42, SysNum: 1,
	}})

	calls := d.callTable.Active()
	require.Len(t, calls, 1)
	assert.Equal(t, call.SubstateNoRecorder, calls[0].Substate())
}

func TestHandlePatchAddAndDelete(t *testing.T) {
	d, sys, _ := newTestSetup()

	d.Dispatch(TrunkMessage{Kind: KindPatchAdd, Patch: &PatchMessage{
		SysNum: 1, Data: system.PatchData{SG: 100, GA1: 101},
	}})
	assert.ElementsMatch(t, []int64{100, 101}, sys.TalkgroupPatch(101))

	d.Dispatch(TrunkMessage{Kind: KindPatchDelete, Patch: &PatchMessage{
		SysNum: 1, Data: system.PatchData{SG: 100, GA1: 101},
	}})
	assert.Nil(t, sys.TalkgroupPatch(101))
}

func TestHandleControlChannelAddsFrequencyAndTunes(t *testing.T) {
	d, sys, alloc := newTestSetup()

	d.Dispatch(TrunkMessage{Kind: KindControlChannel, ControlChannel: &ControlChannelMessage{
		Freq: 851012500, SysNum: 1,
	}})

	assert.Contains(t, sys.ControlChannels(), 851012500.0)
	assert.Equal(t, 1, alloc.tuned)
}

func TestStatusTickKeepsFreshPatches(t *testing.T) {
	d, sys, _ := newTestSetup()
	sys.UpdateActiveTalkgroupPatches(system.PatchData{SG: 100, GA1: 101})

	d.StatusTick()
	assert.ElementsMatch(t, []int64{100, 101}, sys.TalkgroupPatch(101))
}
