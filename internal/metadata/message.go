// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package metadata defines the structured JSON message schema the
// debug recorder surface requires (config, rates, systems, system,
// calls_active, call_start, recorders, recorder, signal) and the
// Emitter that builds each payload from live Source/System/Call/
// Recorder state and Publishes it to internal/pubsub.
package metadata

import "encoding/json"

// Topic is the pubsub topic every message in this package is Published
// to; internal/wsbroadcast subscribes to the same name to relay
// messages to debug clients.
const Topic = "metadata"

// SourceConfigStat is one SDR front-end's config-message entry,
// matching splunk.cc's send_config source_node fields.
type SourceConfigStat struct {
	SourceNum        int     `json:"source_num"`
	Antenna          string  `json:"antenna"`
	MinHz            float64 `json:"min_hz"`
	MaxHz            float64 `json:"max_hz"`
	Center           float64 `json:"center"`
	Rate             float64 `json:"rate"`
	Driver           string  `json:"driver"`
	Device           string  `json:"device"`
	Error            float64 `json:"error"`
	AnalogRecorders  int     `json:"analog_recorders"`
	DigitalRecorders int     `json:"digital_recorders"`
	DebugRecorders   int     `json:"debug_recorders"`
	SigMFRecorders   int     `json:"sigmf_recorders"`

	// GainStages holds named stages (e.g. "LNA" -> value) flattened into
	// "<stage>_gain" fields by MarshalJSON, matching the original's
	// per-Gain_Stage_t ptree.put calls.
	GainStages map[string]int `json:"-"`
}

// MarshalJSON flattens GainStages into "<stage>_gain" sibling fields
// alongside the struct's fixed fields.
func (s SourceConfigStat) MarshalJSON() ([]byte, error) {
	type fixed SourceConfigStat
	b, err := json.Marshal(fixed(s))
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for stage, value := range s.GainStages {
		m[stage+"_gain"] = value
	}
	return json.Marshal(m)
}

// SystemConfigStat is one trunking system's config-message entry. This
// module doesn't model audio archiving, upload scripts, call logging,
// or analog/digital squelch levels, so only the fields backed by
// system.System/config.SystemConfig are carried (unlike the fuller
// splunk.cc sys_node, which also serializes those unmodeled concerns).
type SystemConfigStat struct {
	ShortName        string    `json:"shortName"`
	SystemType       string    `json:"systemType"`
	SysNum           int       `json:"sysNum"`
	NAC              uint32    `json:"nac"`
	SysID            uint32    `json:"sysid"`
	WACN             uint32    `json:"wacn"`
	TalkgroupsFile   string    `json:"talkgroupsFile"`
	ConversationMode bool      `json:"conversationMode"`
	Channels         []float64 `json:"channels"`
}

// ConfigMessage is the one-shot startup message enumerating every
// configured source and system, matching splunk.cc's send_config (sent
// once, guarded by m_config_sent there; guarded by Emitter.configSent
// here).
type ConfigMessage struct {
	Sources          []SourceConfigStat `json:"sources"`
	Systems          []SystemConfigStat `json:"systems"`
	CaptureDir       string             `json:"captureDir"`
	UploadServer     string             `json:"uploadServer"`
	CallTimeout      int                `json:"callTimeout"`
	LogFile          string             `json:"logFile"`
	InstanceID       string             `json:"instanceId"`
	InstanceKey      string             `json:"instanceKey"`
	Type             string             `json:"type"`
	BroadcastSignals bool               `json:"broadcast_signals,omitempty"`
}

// SystemRate is one system's decode-rate sample, matching
// System::get_stats_current(timeDiff): {id, decoderate}.
type SystemRate struct {
	ID         int     `json:"id"`
	DecodeRate float64 `json:"decoderate"`
}

// RatesMessage reports each system's current decode rate, matching
// splunk.cc's system_rates.
type RatesMessage struct {
	Rates       []SystemRate `json:"rates"`
	Type        string       `json:"type"`
	InstanceID  string       `json:"instanceId"`
	InstanceKey string       `json:"instanceKey"`
}

// SystemStat is one system's identity snapshot, matching
// System::get_stats(): {id, name, type, sysid, wacn, nac}.
type SystemStat struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	SysID uint32 `json:"sysid"`
	WACN  uint32 `json:"wacn"`
	NAC   uint32 `json:"nac"`
}

// SystemsMessage reports every configured system's identity, matching
// splunk.cc's send_systems.
type SystemsMessage struct {
	Systems     []SystemStat `json:"systems"`
	Type        string       `json:"type"`
	InstanceID  string       `json:"instanceId"`
	InstanceKey string       `json:"instanceKey"`
}

// SystemMessage reports one system's identity, matching splunk.cc's
// send_system.
type SystemMessage struct {
	System      SystemStat `json:"system"`
	Type        string     `json:"type"`
	InstanceID  string     `json:"instanceId"`
	InstanceKey string     `json:"instanceKey"`
}

// CallStat is one call's snapshot. The original get_stats field names
// for this payload were never retrieved, so these names are this
// module's own.
type CallStat struct {
	ID         int64  `json:"id"`
	Talkgroup  int64  `json:"talkgroup"`
	Freq       float64 `json:"freq"`
	TDMASlot   int    `json:"tdmaSlot"`
	ShortName  string `json:"shortName"`
	State      string `json:"state"`
	Substate   string `json:"substate,omitempty"`
	SrcNum     int64  `json:"srcNum"`
	StartTime  int64  `json:"startTime"`
	ElapsedSec float64 `json:"elapsed"`
}

// CallsActiveMessage reports every currently-active call, matching
// splunk.cc's calls_active.
type CallsActiveMessage struct {
	Calls       []CallStat `json:"calls"`
	Type        string     `json:"type"`
	InstanceID  string     `json:"instanceId"`
	InstanceKey string     `json:"instanceKey"`
}

// CallStartMessage announces one newly-registered call, matching
// splunk.cc's call_start.
type CallStartMessage struct {
	Call        CallStat `json:"call"`
	Type        string   `json:"type"`
	InstanceID  string   `json:"instanceId"`
	InstanceKey string   `json:"instanceKey"`
}

// RecorderStat is one recorder's snapshot. As with CallStat, the
// original get_stats field names for this payload were never
// retrieved, so these names are this module's own.
type RecorderStat struct {
	ID         int    `json:"id"`
	SourceNum  int    `json:"src_num"`
	Kind       string `json:"type"`
	State      string `json:"state"`
	Freq       float64 `json:"freq"`
	CallNum    int64  `json:"callNum,omitempty"`
	SpikeCount uint64 `json:"spikeCount"`
	ErrorCount uint64 `json:"errorCount"`
}

// RecordersMessage reports every recorder across every registered
// source, matching splunk.cc's send_recorders.
type RecordersMessage struct {
	Recorders   []RecorderStat `json:"recorders"`
	Type        string         `json:"type"`
	InstanceID  string         `json:"instanceId"`
	InstanceKey string         `json:"instanceKey"`
}

// RecorderMessage reports one recorder, matching splunk.cc's
// send_recorder.
type RecorderMessage struct {
	Recorder    RecorderStat `json:"recorder"`
	Type        string       `json:"type"`
	InstanceID  string       `json:"instanceId"`
	InstanceKey string       `json:"instanceKey"`
}

// SignalMessage reports one IMBE frame's decode signaling, matching
// splunk.cc's signal (only sent when broadcast_signals is enabled).
// Call/Recorder/System are omitted from the JSON when unknown, just as
// the original only add_child()s the ones it was given.
type SignalMessage struct {
	UnitID      int64       `json:"unit_id"`
	Call        *CallStat   `json:"call,omitempty"`
	Recorder    *RecorderStat `json:"recorder,omitempty"`
	System      *SystemStat `json:"system,omitempty"`
	Type        string      `json:"type"`
	InstanceID  string      `json:"instanceId"`
	InstanceKey string      `json:"instanceKey"`
}
