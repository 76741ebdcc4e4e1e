// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package unittags implements the UnitTags store: user-configured
// regex-based unit labels plus over-the-air (OTA) discovered aliases,
// with CSV persistence for the OTA set.
package unittags

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/USA-RedDragon/trunk-recorder/internal/ota"
)

// Mode controls which tag sources FindUnitTag consults and in what
// order, matching the original's UnitTagMode enum.
type Mode int

const (
	ModeUserFirst Mode = iota
	ModeOTAFirst
	ModeUserOnly
	ModeNone
)

// UserTag is one configured regex -> replacement mapping.
type UserTag struct {
	Pattern *regexp.Regexp
	Tag     string
}

// OTATag is one over-the-air discovered alias, keyed by unit ID.
type OTATag struct {
	UnitID      int64
	Alias       string
	Source      string
	Timestamp   int64
	WACN        string
	Sys         string
	TalkgroupID int64 // -1 = unknown
}

// Store holds the user and OTA tag sets for one system.
type Store struct {
	mode Mode

	mu          sync.RWMutex
	userTags    []UserTag
	otaTags     []OTATag
	otaFilename string
}

// NewStore returns an empty Store in the given mode.
func NewStore(mode Mode) *Store {
	return &Store{mode: mode}
}

// SetMode changes which tag sources FindUnitTag consults.
func (s *Store) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Add compiles and stores a user tag. A pattern wrapped in "/.../ " is
// used as a raw regex; otherwise it is anchored with ^...$ so a bare
// unit ID like "123" only matches exactly, matching UnitTags::add.
func (s *Store) Add(pattern, tag string) error {
	compiled, err := compilePattern(pattern)
	if err != nil {
		return fmt.Errorf("unittags: invalid pattern %q: %w", pattern, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userTags = append(s.userTags, UserTag{Pattern: compiled, Tag: tag})
	return nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) >= 2 && pattern[0] == '/' && pattern[len(pattern)-1] == '/' {
		pattern = pattern[1 : len(pattern)-1]
	} else {
		pattern = "^" + pattern + "$"
	}
	return regexp.Compile(pattern)
}

// FindUnitTag looks up a label for unitID, respecting Mode, matching
// UnitTags::find_unit_tag.
func (s *Store) FindUnitTag(unitID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.mode {
	case ModeNone:
		return ""
	case ModeUserFirst:
		if tag := s.searchUserTags(unitID); tag != "" {
			return tag
		}
		return s.searchOTATags(unitID)
	case ModeOTAFirst:
		if tag := s.searchOTATags(unitID); tag != "" {
			return tag
		}
		return s.searchUserTags(unitID)
	case ModeUserOnly:
		return s.searchUserTags(unitID)
	default:
		return ""
	}
}

func (s *Store) searchUserTags(unitID int64) string {
	idStr := fmt.Sprintf("%d", unitID)
	for _, ut := range s.userTags {
		if ut.Pattern.MatchString(idStr) {
			return ut.Pattern.ReplaceAllString(idStr, ut.Tag)
		}
	}
	return ""
}

// searchOTATags walks newest-first, matching the original's reverse
// iteration over unit_tags_ota.
func (s *Store) searchOTATags(unitID int64) string {
	for i := len(s.otaTags) - 1; i >= 0; i-- {
		if s.otaTags[i].UnitID == unitID {
			return s.otaTags[i].Alias
		}
	}
	return ""
}

// AddOTA folds a newly decoded Motorola alias into the OTA set: a
// brand-new unit ID is appended; an existing entry with the same alias
// is enriched in place if it was missing WACN/sys/talkgroup metadata; a
// changed alias for a known unit ID replaces the old entry. Returns
// true if persistence should append a new CSV row (a brand-new entry),
// matching UnitTags::add_ota's bool return (true = freshly added).
func (s *Store) AddOTA(alias ota.Alias, timestamp int64) bool {
	if !alias.Success || s.mode == ModeNone {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.otaTags) - 1; i >= 0; i-- {
		existing := &s.otaTags[i]
		if existing.UnitID != alias.RadioID {
			continue
		}
		if existing.Alias == alias.Alias {
			enriched := false
			if existing.WACN == "" && alias.WACN != "" {
				existing.WACN = alias.WACN
				enriched = true
			}
			if existing.Sys == "" && alias.SysID != "" {
				existing.Sys = alias.SysID
				enriched = true
			}
			if existing.TalkgroupID == -1 && alias.TalkgroupID != -1 {
				existing.TalkgroupID = alias.TalkgroupID
				enriched = true
			}
			if enriched {
				existing.Timestamp = timestamp
				if alias.Source != "" {
					existing.Source = alias.Source
				}
				slog.Debug("unittags: enriching OTA entry", "unit", alias.RadioID, "alias", alias.Alias)
			}
			return false
		}
		slog.Info("unittags: OTA alias updated", "unit", alias.RadioID, "old", existing.Alias, "new", alias.Alias)
		s.otaTags = append(s.otaTags[:i], s.otaTags[i+1:]...)
		break
	}

	s.otaTags = append(s.otaTags, OTATag{
		UnitID:      alias.RadioID,
		Alias:       alias.Alias,
		Source:      alias.Source,
		Timestamp:   timestamp,
		WACN:        alias.WACN,
		Sys:         alias.SysID,
		TalkgroupID: alias.TalkgroupID,
	})
	return true
}

// OTATags returns a snapshot of the current OTA tag set.
func (s *Store) OTATags() []OTATag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OTATag, len(s.otaTags))
	copy(out, s.otaTags)
	return out
}
