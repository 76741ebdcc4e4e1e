// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package metadata

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/USA-RedDragon/trunk-recorder/internal/call"
	"github.com/USA-RedDragon/trunk-recorder/internal/config"
	"github.com/USA-RedDragon/trunk-recorder/internal/pubsub"
	"github.com/USA-RedDragon/trunk-recorder/internal/recorder"
	"github.com/USA-RedDragon/trunk-recorder/internal/source"
	"github.com/USA-RedDragon/trunk-recorder/internal/system"
)

// registeredSystem pairs a live System with the sysNum the dispatcher
// keys it by and the static config entry it was built from, the three
// things splunk.cc's send_config/send_systems/system_rates each need.
type registeredSystem struct {
	sysNum int
	sys    *system.System
	cfg    config.SystemConfig
}

// Emitter builds and Publishes every structured-metadata message kind,
// adapted from splunk.cc's plugin class: each send_* method there
// becomes an Emit* method here, and send_object's {type, instanceId,
// instanceKey} envelope becomes the Type/InstanceID/InstanceKey fields
// every message struct carries directly.
type Emitter struct {
	ps  pubsub.PubSub
	cfg *config.Config

	mu      sync.Mutex
	sources []*source.Source
	systems []registeredSystem
	table   *call.Table

	rateMu       sync.Mutex
	lastMessages map[int]uint64
	lastRateTime time.Time

	configSent bool
}

// New constructs an Emitter publishing to ps using cfg's instance
// identity and call timeout/capture settings, tracking calls in table.
func New(ps pubsub.PubSub, cfg *config.Config, table *call.Table) *Emitter {
	return &Emitter{
		ps:           ps,
		cfg:          cfg,
		table:        table,
		lastMessages: make(map[int]uint64),
	}
}

// RegisterSource adds src to the set of sources the config/recorders
// messages report on.
func (e *Emitter) RegisterSource(src *source.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, src)
}

// RegisterSystem associates a sysNum and its static config with the
// live System the dispatcher drives, mirroring the sysNum keys
// internal/dispatcher.Dispatcher.RegisterSystem uses.
func (e *Emitter) RegisterSystem(sysNum int, sys *system.System, cfg config.SystemConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.systems = append(e.systems, registeredSystem{sysNum: sysNum, sys: sys, cfg: cfg})
}

func poolTotal(stats source.PoolStats) int {
	return stats.Available + stats.Idle + stats.Active + stats.Recording + stats.Stopped + stats.Inactive
}

func (e *Emitter) publish(topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("metadata: marshaling %s message: %w", topic, err)
	}
	if err := e.ps.Publish(topic, b); err != nil {
		return fmt.Errorf("metadata: publishing %s message: %w", topic, err)
	}
	return nil
}

func sourceConfigStat(src *source.Source) SourceConfigStat {
	return SourceConfigStat{
		SourceNum:        src.Num(),
		Antenna:          src.Antenna(),
		MinHz:            src.MinHz(),
		MaxHz:            src.MaxHz(),
		Center:           src.CenterFrequency(),
		Rate:             src.Rate(),
		Driver:           src.Driver().String(),
		Device:           src.Device(),
		Error:            src.ConfiguredError(),
		GainStages:       src.GainStages(),
		AnalogRecorders:  poolTotal(src.AnalogPoolStats()),
		DigitalRecorders: poolTotal(src.DigitalPoolStats()),
		DebugRecorders:   poolTotal(src.DebugPoolStats()),
		SigMFRecorders:   poolTotal(src.SigMFPoolStats()),
	}
}

func systemConfigStat(rs registeredSystem) SystemConfigStat {
	return SystemConfigStat{
		ShortName:        rs.sys.ShortName,
		SystemType:       rs.sys.Kind.String(),
		SysNum:           rs.sysNum,
		NAC:              rs.sys.NAC,
		SysID:            rs.sys.SysID,
		WACN:             rs.sys.WACN,
		TalkgroupsFile:   rs.cfg.TalkgroupsFile,
		ConversationMode: rs.sys.ConversationMode(),
		Channels:         rs.sys.ControlChannels(),
	}
}

func systemStat(rs registeredSystem) SystemStat {
	return SystemStat{
		ID:    rs.sysNum,
		Name:  rs.sys.ShortName,
		Type:  rs.sys.Kind.String(),
		SysID: rs.sys.SysID,
		WACN:  rs.sys.WACN,
		NAC:   rs.sys.NAC,
	}
}

func callStat(c *call.Call) CallStat {
	return CallStat{
		ID:         c.Num(),
		Talkgroup:  c.Talkgroup(),
		Freq:       c.Freq(),
		TDMASlot:   c.TDMASlot(),
		ShortName:  c.ShortName(),
		State:      c.State().String(),
		Substate:   c.Substate().String(),
		SrcNum:     c.CurrentSourceID(),
		StartTime:  c.StartTime().Unix(),
		ElapsedSec: time.Since(c.StartTime()).Seconds(),
	}
}

func recorderStat(sourceNum int, r *recorder.Recorder) RecorderStat {
	stat := RecorderStat{
		ID:        r.Num,
		SourceNum: sourceNum,
		Kind:      r.Kind.String(),
		State:     r.State().String(),
		Freq:      r.Freq(),
	}
	if c := r.Call(); c != nil {
		stat.CallNum = c.Num()
	}
	if sink := r.Sink(); sink != nil {
		stat.SpikeCount = sink.TotalSpikeCount()
		stat.ErrorCount = sink.TotalErrorCount()
	}
	return stat
}

// EmitConfig publishes the one-shot startup config message the first
// time it's called; subsequent calls are no-ops, matching splunk.cc's
// m_config_sent guard.
func (e *Emitter) EmitConfig() error {
	e.mu.Lock()
	if e.configSent {
		e.mu.Unlock()
		return nil
	}
	e.configSent = true
	sources := append([]*source.Source(nil), e.sources...)
	systems := append([]registeredSystem(nil), e.systems...)
	e.mu.Unlock()

	msg := ConfigMessage{
		Sources:          make([]SourceConfigStat, 0, len(sources)),
		Systems:          make([]SystemConfigStat, 0, len(systems)),
		CaptureDir:       e.cfg.CaptureDir,
		UploadServer:     e.cfg.UploadServer,
		CallTimeout:      e.cfg.CallTimeout,
		LogFile:          e.cfg.LogFile,
		InstanceID:       e.cfg.InstanceID,
		InstanceKey:      e.cfg.InstanceKey,
		Type:             "config",
		BroadcastSignals: e.cfg.BroadcastSignals,
	}
	for _, src := range sources {
		msg.Sources = append(msg.Sources, sourceConfigStat(src))
	}
	for _, rs := range systems {
		msg.Systems = append(msg.Systems, systemConfigStat(rs))
	}
	return e.publish(Topic, msg)
}

// EmitRates publishes each registered system's decode rate since the
// last call to EmitRates, matching splunk.cc's system_rates. The first
// call after RegisterSystem reports a zero rate for that system, since
// no prior sample exists yet.
func (e *Emitter) EmitRates() error {
	e.mu.Lock()
	systems := append([]registeredSystem(nil), e.systems...)
	e.mu.Unlock()

	e.rateMu.Lock()
	now := time.Now()
	timeDiff := now.Sub(e.lastRateTime).Seconds()
	if e.lastRateTime.IsZero() {
		timeDiff = 0
	}
	rates := make([]SystemRate, 0, len(systems))
	for _, rs := range systems {
		current := rs.sys.MessageCount()
		prev, seen := e.lastMessages[rs.sysNum]
		rate := 0.0
		if seen && timeDiff > 0 && current >= prev {
			rate = float64(current-prev) / timeDiff
		}
		rates = append(rates, SystemRate{ID: rs.sysNum, DecodeRate: rate})
		e.lastMessages[rs.sysNum] = current
	}
	e.lastRateTime = now
	e.rateMu.Unlock()

	return e.publish(Topic, RatesMessage{
		Rates:       rates,
		Type:        "rates",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitSystems publishes every registered system's identity snapshot,
// matching splunk.cc's send_systems.
func (e *Emitter) EmitSystems() error {
	e.mu.Lock()
	systems := append([]registeredSystem(nil), e.systems...)
	e.mu.Unlock()

	stats := make([]SystemStat, 0, len(systems))
	for _, rs := range systems {
		stats = append(stats, systemStat(rs))
	}
	return e.publish(Topic, SystemsMessage{
		Systems:     stats,
		Type:        "systems",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitSystem publishes one system's identity snapshot, matching
// splunk.cc's send_system.
func (e *Emitter) EmitSystem(sysNum int, sys *system.System) error {
	rs := registeredSystem{sysNum: sysNum, sys: sys}
	return e.publish(Topic, SystemMessage{
		System:      systemStat(rs),
		Type:        "system",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitCallsActive publishes every currently-active call in the call
// table, matching splunk.cc's calls_active.
func (e *Emitter) EmitCallsActive() error {
	calls := e.table.Active()
	stats := make([]CallStat, 0, len(calls))
	for _, c := range calls {
		stats = append(stats, callStat(c))
	}
	return e.publish(Topic, CallsActiveMessage{
		Calls:       stats,
		Type:        "calls_active",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitCallStart announces one newly-registered call, matching
// splunk.cc's call_start.
func (e *Emitter) EmitCallStart(c *call.Call) error {
	return e.publish(Topic, CallStartMessage{
		Call:        callStat(c),
		Type:        "call_start",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitRecorders publishes every recorder across every registered
// source, matching splunk.cc's send_recorders.
func (e *Emitter) EmitRecorders() error {
	e.mu.Lock()
	sources := append([]*source.Source(nil), e.sources...)
	e.mu.Unlock()

	var stats []RecorderStat
	for _, src := range sources {
		for _, r := range src.AllRecorders() {
			stats = append(stats, recorderStat(src.Num(), r))
		}
	}
	return e.publish(Topic, RecordersMessage{
		Recorders:   stats,
		Type:        "recorders",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitRecorder publishes one recorder's snapshot, matching splunk.cc's
// send_recorder.
func (e *Emitter) EmitRecorder(sourceNum int, r *recorder.Recorder) error {
	return e.publish(Topic, RecorderMessage{
		Recorder:    recorderStat(sourceNum, r),
		Type:        "recorder",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	})
}

// EmitSignal publishes one IMBE frame's decode signaling, matching
// splunk.cc's signal. It is a no-op unless cfg.BroadcastSignals is set,
// same as the original's config->broadcast_signals guard. call,
// sourceNum/r and sys are each optional (pass nil/0 to omit that
// sub-object), matching the original's NULL-checked add_child calls.
func (e *Emitter) EmitSignal(unitID int64, c *call.Call, sourceNum int, r *recorder.Recorder, sys *system.System) error {
	if !e.cfg.BroadcastSignals {
		return nil
	}

	msg := SignalMessage{
		UnitID:      unitID,
		Type:        "signaling",
		InstanceID:  e.cfg.InstanceID,
		InstanceKey: e.cfg.InstanceKey,
	}
	if c != nil {
		stat := callStat(c)
		msg.Call = &stat
	}
	if r != nil {
		stat := recorderStat(sourceNum, r)
		msg.Recorder = &stat
	}
	if sys != nil {
		stat := SystemStat{
			Name:  sys.ShortName,
			Type:  sys.Kind.String(),
			SysID: sys.SysID,
			WACN:  sys.WACN,
			NAC:   sys.NAC,
		}
		msg.System = &stat
	}
	return e.publish(Topic, msg)
}
