// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package system

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// UpdateActiveTalkgroupSubscribers records that unitID was heard on tg
// at the current time: a new Subscriber entry if unseen, else a
// last-activity bump. source == -1 (unknown) is a no-op, matching
// System::update_active_talkgroup_subscribers.
func (s *System) UpdateActiveTalkgroupSubscribers(tg, unitID int64) {
	if unitID == -1 {
		return
	}
	now := time.Now()

	subs, _ := s.subscribers.LoadOrStore(tg, xsync.NewMap[int64, *Subscriber]())

	// LastActivity is only ever written by the dispatcher's single
	// processing goroutine; readers (TalkgroupSubscribers, metadata
	// emitters) copy the struct, so no lock is needed on sub itself.
	sub, ok := subs.Load(unitID)
	if !ok {
		subs.Store(unitID, &Subscriber{
			UnitID:          unitID,
			AffiliationTime: now,
			LastActivity:    now,
		})
		return
	}
	sub.LastActivity = now
}

// TalkgroupSubscribers returns a snapshot of the subscribers currently
// affiliated with tg.
func (s *System) TalkgroupSubscribers(tg int64) []Subscriber {
	subs, ok := s.subscribers.Load(tg)
	if !ok {
		return nil
	}
	out := make([]Subscriber, 0, subs.Size())
	subs.Range(func(_ int64, sub *Subscriber) bool {
		out = append(out, *sub)
		return true
	})
	return out
}
