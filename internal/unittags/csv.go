// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package unittags

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
)

// LoadUserTags reads a "unit_id,tag" CSV (no header row) and adds each
// row via Add, matching UnitTags::load_unit_tags. An empty filename or
// a missing file is a silent no-op.
func (s *Store) LoadUserTags(filename string) error {
	if filename == "" {
		return nil
	}
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unittags: opening user tag file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("unittags: reading user tag file: %w", err)
	}

	loaded := 0
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if err := s.Add(row[0], row[1]); err != nil {
			slog.Warn("unittags: skipping invalid user tag row", "error", err)
			continue
		}
		loaded++
	}
	slog.Info("unittags: loaded user tags", "count", loaded, "file", filename)
	return nil
}

// LoadOTATags reads the "unit_id,tag,source,timestamp,wacn,sys,
// talkgroup_id" OTA CSV, deduplicating by unit ID (newest timestamp
// wins; a tie prefers the entry with non-empty WACN metadata), then
// rewrites the file atomically (temp file + rename) if anything
// changed, matching UnitTags::load_unit_tags_ota.
func (s *Store) LoadOTATags(filename string) error {
	s.mu.Lock()
	s.otaFilename = filename
	mode := s.mode
	s.mu.Unlock()

	if filename == "" || mode == ModeNone {
		return nil
	}

	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unittags: opening OTA tag file: %w", err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	f.Close()
	if err != nil {
		return fmt.Errorf("unittags: reading OTA tag file: %w", err)
	}

	var parsed []OTATag
	needingUpdate := 0
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		tag, err := parseOTARow(row)
		if err != nil {
			slog.Warn("unittags: skipping invalid OTA row", "error", err)
			continue
		}
		if tag.WACN == "" {
			needingUpdate++
		}
		parsed = append(parsed, tag)
	}
	if len(parsed) == 0 {
		return nil
	}

	sortedByID := true
	for i := 1; i < len(parsed); i++ {
		if parsed[i-1].UnitID > parsed[i].UnitID {
			sortedByID = false
			break
		}
	}

	unique := make(map[int64]OTATag, len(parsed))
	duplicates := 0
	for _, tag := range parsed {
		existing, ok := unique[tag.UnitID]
		if !ok {
			unique[tag.UnitID] = tag
			continue
		}
		replace := tag.Timestamp > existing.Timestamp ||
			(tag.Timestamp == existing.Timestamp && tag.WACN != "" && existing.WACN == "")
		if replace {
			unique[tag.UnitID] = tag
		}
		duplicates++
	}

	deduped := make([]OTATag, 0, len(unique))
	for _, tag := range unique {
		deduped = append(deduped, tag)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].UnitID < deduped[j].UnitID })

	s.mu.Lock()
	s.otaTags = deduped
	s.mu.Unlock()

	slog.Info("unittags: loaded OTA tags", "count", len(deduped), "file", filename)

	if duplicates > 0 || !sortedByID || needingUpdate > 0 {
		if err := s.rewriteOTAFile(filename); err != nil {
			slog.Error("unittags: rewriting OTA CSV", "error", err)
		}
	}
	return nil
}

func parseOTARow(row []string) (OTATag, error) {
	unitID, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return OTATag{}, fmt.Errorf("parsing unit_id: %w", err)
	}
	tag := OTATag{UnitID: unitID, Alias: row[1], TalkgroupID: -1}
	if len(row) >= 3 {
		tag.Source = row[2]
	}
	if len(row) >= 4 && row[3] != "" {
		ts, err := strconv.ParseInt(row[3], 10, 64)
		if err == nil {
			tag.Timestamp = ts
		}
	}
	if len(row) >= 7 {
		tag.WACN = row[4]
		tag.Sys = row[5]
		if row[6] != "" {
			if tg, err := strconv.ParseInt(row[6], 10, 64); err == nil {
				tag.TalkgroupID = tg
			}
		}
	}
	return tag, nil
}

func otaRow(tag OTATag) []string {
	tgStr := ""
	if tag.TalkgroupID != -1 {
		tgStr = strconv.FormatInt(tag.TalkgroupID, 10)
	}
	return []string{
		strconv.FormatInt(tag.UnitID, 10),
		tag.Alias,
		tag.Source,
		strconv.FormatInt(tag.Timestamp, 10),
		tag.WACN,
		tag.Sys,
		tgStr,
	}
}

// rewriteOTAFile atomically rewrites the whole OTA CSV from the current
// in-memory set (temp file + rename), matching the cleanup path of
// UnitTags::load_unit_tags_ota.
func (s *Store) rewriteOTAFile(filename string) error {
	s.mu.RLock()
	tags := make([]OTATag, len(s.otaTags))
	copy(tags, s.otaTags)
	s.mu.RUnlock()

	tmp := filename + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	w := csv.NewWriter(f)
	for _, tag := range tags {
		if err := w.Write(otaRow(tag)); err != nil {
			f.Close()
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// AppendOTARow appends a single enriched/new OTA entry directly to the
// persisted CSV, matching UnitTags::add_ota's append-on-write path (the
// in-memory AddOTA call is kept in sync separately by the caller).
func (s *Store) AppendOTARow(tag OTATag) error {
	s.mu.RLock()
	filename := s.otaFilename
	s.mu.RUnlock()
	if filename == "" {
		return nil
	}

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("unittags: opening OTA file for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(otaRow(tag)); err != nil {
		return fmt.Errorf("unittags: writing OTA row: %w", err)
	}
	w.Flush()
	return w.Error()
}
