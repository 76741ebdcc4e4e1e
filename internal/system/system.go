// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package system models one trunking system definition: its control
// channel rotation, talkgroup/unit-tag tables, active talkgroup-patch
// map, active subscriber map, and the P25 Phase-2 XOR scrambling mask
// derived from its NAC/SYSID/WACN.
package system

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/USA-RedDragon/trunk-recorder/internal/autotune"
	"github.com/USA-RedDragon/trunk-recorder/internal/talkgroups"
	"github.com/USA-RedDragon/trunk-recorder/internal/unittags"
	"github.com/puzpuzpuz/xsync/v4"
)

// Kind enumerates the trunking protocols a System can speak, mirroring
// the original's system_type strings.
type Kind int

const (
	KindSmartnet Kind = iota
	KindP25
	KindConventional
	KindConventionalP25
	KindConventionalDMR
)

func (k Kind) String() string {
	switch k {
	case KindSmartnet:
		return "smartnet"
	case KindP25:
		return "p25"
	case KindConventional:
		return "conventional"
	case KindConventionalP25:
		return "conventionalP25"
	case KindConventionalDMR:
		return "conventionalDMR"
	default:
		return "unknown"
	}
}

// patchTTL is the hard-coded 10-second patch staleness window the
// original's clear_stale_talkgroup_patches uses.
const patchTTL = 10 * time.Second

// Subscriber tracks one radio's affiliation and last-heard time on a
// talkgroup.
type Subscriber struct {
	UnitID          int64
	AffiliationTime time.Time
	LastActivity    time.Time
}

// System is a trunking system definition plus its mutable runtime state
// (control channel rotation index, patches, subscribers, autotune).
type System struct {
	ShortName string
	Kind      Kind

	NAC   uint32
	SysID uint32
	WACN  uint32

	Talkgroups *talkgroups.Store
	UnitTags   *unittags.Store

	autotuneMgr *autotune.Manager

	mu               sync.Mutex
	controlChannels  []float64
	currentCCIndex   int
	autotuneOffset   int
	freqError        int
	conversationMode bool

	// supergroup talkgroup -> member talkgroup -> last-seen time. Kept
	// as lock-striped maps, not under mu, since metadata emitters read
	// them concurrently with the dispatcher goroutine mutating them.
	patches *xsync.Map[int64, *xsync.Map[int64, time.Time]]
	// talkgroup -> unit ID -> subscriber state.
	subscribers *xsync.Map[int64, *xsync.Map[int64, *Subscriber]]

	xorMask []byte

	// messageCount is the lifetime count of TrunkMessages the dispatcher
	// has routed to this system, consumed by internal/metadata's "rates"
	// message to report a per-system decode rate.
	messageCount atomic.Uint64
}

// New constructs a System with its scrambling mask derived immediately
// from the given identifiers, matching the original's set_xor_mask call
// during system construction.
func New(shortName string, kind Kind, nac, sysID, wacn uint32, tg *talkgroups.Store, ut *unittags.Store) *System {
	s := &System{
		ShortName:   shortName,
		Kind:        kind,
		NAC:         nac,
		SysID:       sysID,
		WACN:        wacn,
		Talkgroups:  tg,
		UnitTags:    ut,
		patches:     xsync.NewMap[int64, *xsync.Map[int64, time.Time]](),
		subscribers: xsync.NewMap[int64, *xsync.Map[int64, *Subscriber]](),
	}
	s.xorMask = deriveXORMask(nac, sysID, wacn)
	return s
}

// SetAutotuneManager wires the per-system AutotuneManager once its
// owning Source exists; System itself never constructs one.
func (s *System) SetAutotuneManager(mgr *autotune.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autotuneMgr = mgr
}

// AutotuneManager implements autotune.ControlChannelSystem.
func (s *System) AutotuneManager() *autotune.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autotuneMgr
}

// XORMask returns the P25 Phase-2 scrambling mask bytes.
func (s *System) XORMask() []byte {
	return s.xorMask
}

// AddControlChannel appends a control-channel frequency if not already
// present, mirroring the original's deduplicating add_control_channel.
func (s *System) AddControlChannel(freq float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.controlChannels {
		if f == freq {
			return
		}
	}
	s.controlChannels = append(s.controlChannels, freq)
}

// ControlChannels returns the configured control-channel frequencies.
func (s *System) ControlChannels() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.controlChannels))
	copy(out, s.controlChannels)
	return out
}

// CurrentControlChannelFreq implements autotune.ControlChannelSystem.
func (s *System) CurrentControlChannelFreq() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.controlChannels) == 0 {
		return 0
	}
	return s.controlChannels[s.currentCCIndex]
}

// NextControlChannel rotates to and returns the next control channel.
func (s *System) NextControlChannel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.controlChannels) == 0 {
		return 0
	}
	s.currentCCIndex++
	if s.currentCCIndex >= len(s.controlChannels) {
		s.currentCCIndex = 0
	}
	return s.controlChannels[s.currentCCIndex]
}

// FreqError implements autotune.ControlChannelSystem.
func (s *System) FreqError() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freqError
}

// SetFreqError records the control channel's latest FLL band-edge error.
func (s *System) SetFreqError(hz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freqError = hz
}

// AutotuneOffset implements autotune.ControlChannelSystem.
func (s *System) AutotuneOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autotuneOffset
}

// SetAutotuneOffset implements autotune.ControlChannelSystem.
func (s *System) SetAutotuneOffset(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autotuneOffset = offset
}

// FinetuneControlFreq implements autotune.ControlChannelSystem. A real
// system would push this down to the bound Source's SDR retune call;
// here we just log it, since SDR retuning is an external collaborator.
func (s *System) FinetuneControlFreq(freq float64) {
	slog.Debug("system: retuning control channel", "system", s.ShortName, "freq", freq)
}

// SetConversationMode toggles whether this system stays on a single
// voice channel for the duration of a multi-talkgroup conversation.
func (s *System) SetConversationMode(mode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationMode = mode
}

// ConversationMode reports the current conversation-mode setting.
func (s *System) ConversationMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationMode
}

// IncrementMessageCount records one more TrunkMessage routed to this
// system.
func (s *System) IncrementMessageCount() {
	s.messageCount.Add(1)
}

// MessageCount returns the lifetime count of TrunkMessages routed to
// this system.
func (s *System) MessageCount() uint64 {
	return s.messageCount.Load()
}

func (s *System) String() string {
	return fmt.Sprintf("System{%s, %s}", s.ShortName, s.Kind)
}
