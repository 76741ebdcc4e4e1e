// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package call

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// dedupKey is the fields a grant is deduplicated by: calls for the same
// system and talkgroup are the same logical conversation regardless of
// which control-channel frequency announced them.
type dedupKey struct {
	SystemShortName string
	Talkgroup       int64
}

func (k dedupKey) hash() (uint64, error) {
	return hashstructure.Hash(k, hashstructure.FormatV2, nil)
}

// Table tracks in-progress Calls, deduplicating and superseding grants
// for the same talkgroup via a mutex-guarded map plus a per-call idle
// timer.
type Table struct {
	idleTimeout time.Duration

	mu          sync.Mutex
	byKey       map[uint64]*Call
	byID        map[int64]*Call
	idleTimers  map[int64]*time.Timer
	nextID      int64

	// startedTotal and endedTotal are lifetime counts, consumed by
	// internal/metrics as Prometheus counters.
	startedTotal uint64
	endedTotal   uint64
}

// NewTable returns an empty Table with the given per-call idle timeout
// (the duration of no UPDATE/grant activity before a recording call is
// torn down).
func NewTable(idleTimeout time.Duration) *Table {
	return &Table{
		idleTimeout: idleTimeout,
		byKey:       make(map[uint64]*Call),
		byID:        make(map[int64]*Call),
		idleTimers:  make(map[int64]*time.Timer),
	}
}

// Decision is the outcome of offering a new grant to the table.
type Decision int

const (
	// DecisionNew means no call exists for this talkgroup yet; the
	// caller should create one and register it with Register.
	DecisionNew Decision = iota
	// DecisionDuplicate means an existing call already covers this
	// talkgroup, either on the same frequency or on a different one
	// without being superseded; the new grant should be ignored.
	DecisionDuplicate
	// DecisionSuperseded means an existing call is RECORDING on a
	// different frequency and is not accepting more transmissions;
	// the new grant should start its own call and the old one should
	// be marked SUPERSEDED.
	DecisionSuperseded
)

// Offer implements the supersession scenario: while call A is
// RECORDING on frequency F1, a grant for the same talkgroup on a
// different frequency F2 arrives. If A's recorder is no longer
// accepting more transmissions (recordMoreTransmissions == false), the
// new grant supersedes A (DecisionSuperseded, caller should mark A
// SUPERSEDED and start a new call for F2). Otherwise the new grant is a
// DecisionDuplicate and should be dropped. A grant for a talkgroup with
// no tracked call is DecisionNew.
func (t *Table) Offer(systemShortName string, talkgroup int64, freq float64, recordMoreTransmissions bool) (Decision, *Call) {
	key, err := dedupKey{SystemShortName: systemShortName, Talkgroup: talkgroup}.hash()
	if err != nil {
		slog.Error("call: hashing dedup key", "error", err)
		return DecisionNew, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.byKey[key]
	if !ok || existing.State() == StateInactive {
		return DecisionNew, nil
	}

	if existing.Freq() == freq {
		return DecisionDuplicate, existing
	}

	if existing.State() == StateRecording && !recordMoreTransmissions {
		return DecisionSuperseded, existing
	}
	return DecisionDuplicate, existing
}

// Register adds a newly created call to the table and arms its idle
// timer.
func (t *Table) Register(c *Call) {
	key, err := dedupKey{SystemShortName: c.ShortName(), Talkgroup: c.Talkgroup()}.hash()
	if err != nil {
		slog.Error("call: hashing dedup key", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.byKey[key] = c
	t.byID[c.Num()] = c
	t.startedTotal++
	t.armIdleTimerLocked(c)
}

// Touch refreshes a call's activity (an UPDATE message) and its idle
// timer.
func (t *Table) Touch(c *Call) {
	c.Touch()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[c.Num()]; ok {
		t.armIdleTimerLocked(c)
	}
}

// armIdleTimerLocked must be called with t.mu held.
func (t *Table) armIdleTimerLocked(c *Call) {
	if timer, ok := t.idleTimers[c.Num()]; ok {
		timer.Stop()
	}
	id := c.Num()
	t.idleTimers[id] = time.AfterFunc(t.idleTimeout, func() {
		t.expire(id)
	})
}

// expire is invoked by a call's idle timer; it deactivates the call and
// removes it from the table.
func (t *Table) expire(id int64) {
	t.mu.Lock()
	c, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.byID, id)
	delete(t.idleTimers, id)
	key, err := dedupKey{SystemShortName: c.ShortName(), Talkgroup: c.Talkgroup()}.hash()
	if err == nil {
		if current, ok := t.byKey[key]; ok && current.Num() == id {
			delete(t.byKey, key)
		}
	}
	t.endedTotal++
	t.mu.Unlock()

	c.Deactivate()
	slog.Debug("call: idle timeout, deactivating", "call", id, "talkgroup", c.Talkgroup())
}

// Remove immediately evicts a call (e.g. on explicit release), stopping
// its idle timer.
func (t *Table) Remove(c *Call) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := c.Num()
	if timer, ok := t.idleTimers[id]; ok {
		timer.Stop()
		delete(t.idleTimers, id)
	}
	delete(t.byID, id)

	key, err := dedupKey{SystemShortName: c.ShortName(), Talkgroup: c.Talkgroup()}.hash()
	if err == nil {
		if current, ok := t.byKey[key]; ok && current.Num() == id {
			delete(t.byKey, key)
		}
	}
	t.endedTotal++
}

// NextID returns a process-unique, monotonically increasing call ID.
func (t *Table) NextID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return t.nextID
}

// Active returns a snapshot of every tracked (non-inactive) call.
func (t *Table) Active() []*Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Call, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	return out
}

// Len reports how many calls are currently tracked.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

// StartedTotal returns the lifetime count of calls Registered.
func (t *Table) StartedTotal() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedTotal
}

// EndedTotal returns the lifetime count of calls expired or Removed.
func (t *Table) EndedTotal() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endedTotal
}
