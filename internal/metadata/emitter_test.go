// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package metadata_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/metadata"
	"github.com/USA-RedDragon/trunk-recorder/internal/pubsub"
	"github.com/USA-RedDragon/trunk-recorder/internal/recorder"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/USA-RedDragon/trunk-recorder/internal/system"
	"github.com/USA-RedDragon/trunk-recorder/internal/talkgroups"
	"github.com/USA-RedDragon/trunk-recorder/internal/transmission"
	"github.com/USA-RedDragon/trunk-recorder/internal/unittags"
	"github.com/stretchr/testify/require"
)

func makeTestPubSub(t *testing.T) pubsub.PubSub {
	t.Helper()
	cfg := config.Default()
	ps, err := pubsub.MakePubSub(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func newTestSource(t *testing.T) *source.Source {
	t.Helper()
	s := source.New(1, 851000000, 2048000, 0, source.DriverOsmoSDR, "test=0")
	s.SetAntenna("TX/RX")
	s.SetGainStage("LNA", 30)
	sink, err := transmission.NewSink(1, 8000, 16)
	require.NoError(t, err)
	s.AddDigitalRecorder(recorder.New(0, recorder.KindDigital, sink))
	return s
}

func newTestSystem() *system.System {
	return system.New("test-system", system.KindP25, 0x123, 1, 0xBEE00, talkgroups.NewStore(), unittags.NewStore(unittags.ModeNone))
}

func receiveOne(t *testing.T, sub pubsub.Subscription) map[string]any {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(msg, &decoded))
		return decoded
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for metadata message")
		return nil
	}
}

func TestEmitConfigSendsOnceAndIncludesSourcesAndSystems(t *testing.T) {
	t.Parallel()
	ps := makeTestPubSub(t)
	sub := ps.Subscribe(metadata.Topic)
	defer func() { _ = sub.Close() }()

	cfg := config.Default()
	cfg.CaptureDir = "/tmp/captures"
	cfg.InstanceID = "inst-1"

	table := call.NewTable(time.Minute)
	e := metadata.New(ps, &cfg, table)
	e.RegisterSource(newTestSource(t))
	e.RegisterSystem(1, newTestSystem(), config.SystemConfig{ShortName: "test-system", TalkgroupsFile: "talkgroups.csv"})

	require.NoError(t, e.EmitConfig())
	decoded := receiveOne(t, sub)
	require.Equal(t, "config", decoded["type"])
	require.Equal(t, "inst-1", decoded["instanceId"])
	sources, ok := decoded["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 1)
	sourceEntry := sources[0].(map[string]any)
	require.Equal(t, float64(30), sourceEntry["LNA_gain"])
	systems, ok := decoded["systems"].([]any)
	require.True(t, ok)
	require.Len(t, systems, 1)

	// second call is a no-op: nothing else published within the timeout.
	require.NoError(t, e.EmitConfig())
	select {
	case <-sub.Channel():
		t.Fatal("EmitConfig published a second time")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitRatesReportsZeroThenNonzero(t *testing.T) {
	t.Parallel()
	ps := makeTestPubSub(t)
	sub := ps.Subscribe(metadata.Topic)
	defer func() { _ = sub.Close() }()

	cfg := config.Default()
	table := call.NewTable(time.Minute)
	e := metadata.New(ps, &cfg, table)
	sys := newTestSystem()
	e.RegisterSystem(7, sys, config.SystemConfig{ShortName: "test-system"})

	require.NoError(t, e.EmitRates())
	first := receiveOne(t, sub)
	rates := first["rates"].([]any)
	require.Len(t, rates, 1)
	require.InDelta(t, 0, rates[0].(map[string]any)["decoderate"], 0.0001)

	sys.IncrementMessageCount()
	sys.IncrementMessageCount()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.EmitRates())
	second := receiveOne(t, sub)
	rates = second["rates"].([]any)
	require.Greater(t, rates[0].(map[string]any)["decoderate"], 0.0)
}

func TestEmitCallStartAndCallsActive(t *testing.T) {
	t.Parallel()
	ps := makeTestPubSub(t)
	sub := ps.Subscribe(metadata.Topic)
	defer func() { _ = sub.Close() }()

	cfg := config.Default()
	table := call.NewTable(time.Minute)
	e := metadata.New(ps, &cfg, table)

	c := call.New(table.NextID(), 100, 851000000, -1, "test-system", "/tmp", false)
	table.Register(c)

	require.NoError(t, e.EmitCallStart(c))
	start := receiveOne(t, sub)
	require.Equal(t, "call_start", start["type"])
	callObj := start["call"].(map[string]any)
	require.Equal(t, float64(100), callObj["talkgroup"])

	require.NoError(t, e.EmitCallsActive())
	active := receiveOne(t, sub)
	calls := active["calls"].([]any)
	require.Len(t, calls, 1)
}

func TestEmitRecordersAndRecorder(t *testing.T) {
	t.Parallel()
	ps := makeTestPubSub(t)
	sub := ps.Subscribe(metadata.Topic)
	defer func() { _ = sub.Close() }()

	cfg := config.Default()
	table := call.NewTable(time.Minute)
	e := metadata.New(ps, &cfg, table)
	src := newTestSource(t)
	e.RegisterSource(src)

	require.NoError(t, e.EmitRecorders())
	decoded := receiveOne(t, sub)
	require.Equal(t, "recorders", decoded["type"])
	recorders := decoded["recorders"].([]any)
	require.Len(t, recorders, 1)

	require.NoError(t, e.EmitRecorder(src.Num(), src.DigitalRecorders()[0]))
	single := receiveOne(t, sub)
	require.Equal(t, "recorder", single["type"])
	recObj := single["recorder"].(map[string]any)
	require.Equal(t, "digital", recObj["type"])
}

func TestEmitSignalNoopUnlessBroadcastEnabled(t *testing.T) {
	t.Parallel()
	ps := makeTestPubSub(t)
	sub := ps.Subscribe(metadata.Topic)
	defer func() { _ = sub.Close() }()

	cfg := config.Default()
	table := call.NewTable(time.Minute)
	e := metadata.New(ps, &cfg, table)

	require.NoError(t, e.EmitSignal(42, nil, 0, nil, nil))
	select {
	case <-sub.Channel():
		t.Fatal("EmitSignal published while BroadcastSignals is disabled")
	case <-time.After(50 * time.Millisecond):
	}

	cfg.BroadcastSignals = true
	require.NoError(t, e.EmitSignal(42, nil, 0, nil, nil))
	decoded := receiveOne(t, sub)
	require.Equal(t, "signaling", decoded["type"])
	require.Equal(t, float64(42), decoded["unit_id"])
	require.Nil(t, decoded["call"])
}
