// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallStartsMonitoring(t *testing.T) {
	c := New(1, 100, 851012500, -1, "system1", "/tmp", false)
	assert.Equal(t, StateMonitoring, c.State())
	assert.Equal(t, SubstateNone, c.Substate())
	assert.False(t, c.HasRecorder())
	assert.Equal(t, int64(-1), c.CurrentSourceID())
}

func TestBindRecorderMovesToRecording(t *testing.T) {
	c := New(1, 100, 851012500, -1, "system1", "/tmp", false)
	c.BindRecorder(3)

	assert.Equal(t, StateRecording, c.State())
	assert.True(t, c.HasRecorder())
	assert.Equal(t, 3, c.RecorderHandle())
}

func TestDeactivateClearsRecorder(t *testing.T) {
	c := New(1, 100, 851012500, -1, "system1", "/tmp", false)
	c.BindRecorder(3)
	c.Deactivate()

	assert.Equal(t, StateInactive, c.State())
	assert.False(t, c.HasRecorder())
}

func TestCallImplementsTransmissionCallInfoShape(t *testing.T) {
	c := New(1, 100, 851012500, -1, "system1", "/tmp", true)
	assert.Equal(t, int64(1), c.Num())
	assert.Equal(t, int64(100), c.Talkgroup())
	assert.Equal(t, 851012500.0, c.Freq())
	assert.Equal(t, "system1", c.ShortName())
	assert.Equal(t, "/tmp", c.CaptureDir())
	assert.True(t, c.IsConventional())
}

// TestOfferSupersession mirrors the supersession scenario: Call A is
// RECORDING on one frequency; a grant for the same talkgroup on a
// different frequency arrives while A is not accepting more
// transmissions, so A should be superseded rather than treated as a
// duplicate.
func TestOfferSupersession(t *testing.T) {
	table := NewTable(time.Hour)

	a := New(table.NextID(), 100, 851012500, -1, "system1", "/tmp", false)
	table.Register(a)
	a.BindRecorder(0)

	decision, existing := table.Offer("system1", 100, 851037500, false)
	assert.Equal(t, DecisionSuperseded, decision)
	assert.Same(t, a, existing)
}

func TestOfferDuplicateWhenStillAcceptingTransmissions(t *testing.T) {
	table := NewTable(time.Hour)

	a := New(table.NextID(), 100, 851012500, -1, "system1", "/tmp", false)
	table.Register(a)
	a.BindRecorder(0)

	decision, existing := table.Offer("system1", 100, 851037500, true)
	assert.Equal(t, DecisionDuplicate, decision)
	assert.Same(t, a, existing)
}

func TestOfferDuplicateSameFrequency(t *testing.T) {
	table := NewTable(time.Hour)

	a := New(table.NextID(), 100, 851012500, -1, "system1", "/tmp", false)
	table.Register(a)

	decision, existing := table.Offer("system1", 100, 851012500, false)
	assert.Equal(t, DecisionDuplicate, decision)
	assert.Same(t, a, existing)
}

func TestOfferNewForUnknownTalkgroup(t *testing.T) {
	table := NewTable(time.Hour)
	decision, existing := table.Offer("system1", 999, 851012500, false)
	assert.Equal(t, DecisionNew, decision)
	assert.Nil(t, existing)
}

func TestIdleTimeoutDeactivatesAndRemoves(t *testing.T) {
	table := NewTable(20 * time.Millisecond)
	a := New(table.NextID(), 100, 851012500, -1, "system1", "/tmp", false)
	table.Register(a)

	require.Eventually(t, func() bool {
		return a.State() == StateInactive
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, table.Len())
}

func TestTouchRearmsIdleTimer(t *testing.T) {
	table := NewTable(40 * time.Millisecond)
	a := New(table.NextID(), 100, 851012500, -1, "system1", "/tmp", false)
	table.Register(a)

	time.Sleep(25 * time.Millisecond)
	table.Touch(a)
	time.Sleep(25 * time.Millisecond)

	assert.Equal(t, StateMonitoring, a.State())

	require.Eventually(t, func() bool {
		return a.State() == StateInactive
	}, time.Second, 5*time.Millisecond)
}

func TestRemoveStopsTimerAndEvicts(t *testing.T) {
	table := NewTable(time.Hour)
	a := New(table.NextID(), 100, 851012500, -1, "system1", "/tmp", false)
	table.Register(a)

	table.Remove(a)
	assert.Equal(t, 0, table.Len())

	decision, _ := table.Offer("system1", 100, 851012500, false)
	assert.Equal(t, DecisionNew, decision)
}
