// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package system

import (
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// PatchData names the talkgroups a patch message ties together: sg is
// the supergroup ID, ga1..ga3 are up to three patched talkgroup IDs. A
// zero value in any field means "not present" (mirrors the original's
// unsigned-long-zero-as-absent convention).
type PatchData struct {
	SG  int64
	GA1 int64
	GA2 int64
	GA3 int64
}

// UpdateActiveTalkgroupPatches adds or refreshes a patch, matching
// System::update_active_talkgroup_patches: an existing patch keyed by
// sg has its member talkgroups' last-seen timestamps bumped; a
// previously-unseen sg starts a new patch.
func (s *System) UpdateActiveTalkgroupPatches(data PatchData) {
	now := time.Now()

	patch, _ := s.patches.LoadOrStore(data.SG, xsync.NewMap[int64, time.Time]())
	for _, tg := range []int64{data.SG, data.GA1, data.GA2, data.GA3} {
		if tg != 0 {
			patch.Store(tg, now)
		}
	}
}

// DeleteTalkgroupPatch removes up to three member talkgroups from the
// patch keyed by data.SG, matching System::delete_talkgroup_patch.
func (s *System) DeleteTalkgroupPatch(data PatchData) {
	patch, ok := s.patches.Load(data.SG)
	if !ok {
		return
	}
	for _, tg := range []int64{data.GA1, data.GA2, data.GA3} {
		patch.Delete(tg)
	}
}

// TalkgroupPatch returns every talkgroup ID patched together with tg
// (including tg itself), or nil if tg is not part of any active patch.
// Mirrors System::get_talkgroup_patch.
func (s *System) TalkgroupPatch(tg int64) []int64 {
	var out []int64
	s.patches.Range(func(_ int64, patch *xsync.Map[int64, time.Time]) bool {
		if _, ok := patch.Load(tg); !ok {
			return true
		}
		out = make([]int64, 0, patch.Size())
		patch.Range(func(member int64, _ time.Time) bool {
			out = append(out, member)
			return true
		})
		return false
	})
	return out
}

// ClearStaleTalkgroupPatches purges patch entries older than patchTTL
// and drops any patch left with no members, matching
// System::clear_stale_talkgroup_patches. Called once per status tick.
func (s *System) ClearStaleTalkgroupPatches() {
	now := time.Now()

	var emptySupergroups []int64
	s.patches.Range(func(sg int64, patch *xsync.Map[int64, time.Time]) bool {
		var stale []int64
		patch.Range(func(tg int64, lastSeen time.Time) bool {
			if now.Sub(lastSeen) >= patchTTL {
				stale = append(stale, tg)
			}
			return true
		})
		for _, tg := range stale {
			patch.Delete(tg)
		}
		if patch.Size() == 0 {
			emptySupergroups = append(emptySupergroups, sg)
		}
		return true
	})
	for _, sg := range emptySupergroups {
		s.patches.Delete(sg)
	}

	slog.Debug("system: active talkgroup patches", "system", s.ShortName, "count", s.patches.Size())
}

// ActivePatchCount reports how many supergroup patches currently hold
// at least one member talkgroup.
func (s *System) ActivePatchCount() int {
	return s.patches.Size()
}
