// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package dispatcher consumes TrunkMessages from the control-channel
// parser and turns them into call creation/teardown, recorder binding,
// patch-map mutation, and autotune feedback.
package dispatcher

import "github.com/USA-RedDragon/trunk-recorder/internal/system"

// MessageKind discriminates the TrunkMessage sum type, re-architected
// from the original's flat MessageType-tagged struct into a sum type
// with one variant per message kind carrying only its own fields.
type MessageKind int

const (
	KindGrant MessageKind = iota
	KindStatus
	KindUpdate
	KindControlChannel
	KindRegistration
	KindDeregistration
	KindAffiliation
	KindSysID
	KindAcknowledge
	KindLocation
	KindPatchAdd
	KindPatchDelete
	KindUnknown
)

// GrantMessage announces a voice-channel assignment.
type GrantMessage struct {
	Freq        float64
	Talkgroup   int64
	Source      int64
	Encrypted   bool
	Emergency   bool
	Duplex      bool
	Priority    int64
	TDMASlot    int
	Phase2TDMA  bool
	SysNum      int
}

// UpdateMessage refreshes an in-progress call (e.g. a continuation
// grant) without changing its frequency.
type UpdateMessage struct {
	Freq      float64
	Talkgroup int64
	Source    int64
	SysNum    int
}

// ControlChannelMessage announces (or reconfirms) the active control
// channel frequency for a system.
type ControlChannelMessage struct {
	Freq   float64
	SysNum int
}

// PatchMessage carries a talkgroup-patch mutation (ADD or DELETE).
type PatchMessage struct {
	SysNum int
	Data   system.PatchData
}

// SysIDMessage carries P25 network identifiers learned from the
// control channel, used to (re)derive a system's scrambling mask.
type SysIDMessage struct {
	SysNum int
	NAC    uint32
	SysID  uint32
	WACN   uint32
}

// TrunkMessage is the sum type dispatched by Dispatch: exactly one of
// its Grant/Update/ControlChannel/Patch/SysID fields is non-nil,
// selected by Kind.
type TrunkMessage struct {
	Kind MessageKind

	Grant          *GrantMessage
	Update         *UpdateMessage
	ControlChannel *ControlChannelMessage
	Patch          *PatchMessage
	SysID          *SysIDMessage
}
