// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

// Package talkgroups implements the Talkgroups store: a CSV-backed
// lookup table of {number, mode, alpha_tag, description, tag, group,
// priority} keyed by talkgroup number.
package talkgroups

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// Talkgroup is one configured talkgroup's static metadata.
type Talkgroup struct {
	Number      int64
	Mode        string // "A" analog, "D" digital, etc.
	AlphaTag    string
	Description string
	Tag         string
	Group       string
	Priority    int
}

// Store is a talkgroup table for one system, safe for concurrent reads
// while being (re)loaded.
type Store struct {
	mu    sync.RWMutex
	byNum map[int64]Talkgroup
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byNum: make(map[int64]Talkgroup)}
}

// Lookup returns the Talkgroup for number, or false if unconfigured
// (unknown talkgroup, the UNKNOWN_TG monitoring substate trigger).
func (s *Store) Lookup(number int64) (Talkgroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tg, ok := s.byNum[number]
	return tg, ok
}

// Add inserts or replaces a talkgroup entry.
func (s *Store) Add(tg Talkgroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byNum[tg.Number] = tg
}

// Len reports how many talkgroups are loaded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byNum)
}

// All returns a snapshot of every configured talkgroup.
func (s *Store) All() []Talkgroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Talkgroup, 0, len(s.byNum))
	for _, tg := range s.byNum {
		out = append(out, tg)
	}
	return out
}

// Load reads a "number,mode,alpha_tag,description,tag,group,priority"
// CSV (no header row) into the store, replacing its contents. An empty
// filename is a no-op, matching the original loader's optional-file
// convention for CSV-backed tables.
func (s *Store) Load(filename string) error {
	if filename == "" {
		return nil
	}
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("talkgroups: opening %s: %w", filename, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("talkgroups: reading %s: %w", filename, err)
	}

	loaded := 0
	parsed := make(map[int64]Talkgroup, len(rows))
	for _, row := range rows {
		if len(row) < 1 {
			continue
		}
		num, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			slog.Warn("talkgroups: skipping row with invalid number", "value", row[0])
			continue
		}
		tg := Talkgroup{Number: num}
		if len(row) > 1 {
			tg.Mode = row[1]
		}
		if len(row) > 2 {
			tg.AlphaTag = row[2]
		}
		if len(row) > 3 {
			tg.Description = row[3]
		}
		if len(row) > 4 {
			tg.Tag = row[4]
		}
		if len(row) > 5 {
			tg.Group = row[5]
		}
		if len(row) > 6 && row[6] != "" {
			if p, err := strconv.Atoi(row[6]); err == nil {
				tg.Priority = p
			}
		}
		parsed[num] = tg
		loaded++
	}

	s.mu.Lock()
	s.byNum = parsed
	s.mu.Unlock()

	slog.Info("talkgroups: loaded", "count", loaded, "file", filename)
	return nil
}
