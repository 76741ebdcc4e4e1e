// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package unittags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/USA-RedDragon/trunk-recorder/internal/ota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAnchorsBarePattern(t *testing.T) {
	s := NewStore(ModeUserOnly)
	require.NoError(t, s.Add("123", "Dispatch"))
	assert.Equal(t, "Dispatch", s.FindUnitTag(123))
	assert.Equal(t, "", s.FindUnitTag(1234))
}

func TestAddRawRegexPattern(t *testing.T) {
	s := NewStore(ModeUserOnly)
	require.NoError(t, s.Add("/^12.*/", "Matched"))
	assert.Equal(t, "Matched", s.FindUnitTag(12345))
}

func TestFindUnitTagModeNone(t *testing.T) {
	s := NewStore(ModeNone)
	require.NoError(t, s.Add("123", "Dispatch"))
	assert.Equal(t, "", s.FindUnitTag(123))
}

func TestFindUnitTagUserFirstFallsBackToOTA(t *testing.T) {
	s := NewStore(ModeUserFirst)
	added := s.AddOTA(ota.Alias{Success: true, RadioID: 42, Alias: "Engine 7", TalkgroupID: -1}, 100)
	require.True(t, added)
	assert.Equal(t, "Engine 7", s.FindUnitTag(42))
}

func TestAddOTADeduplicatesAndEnriches(t *testing.T) {
	s := NewStore(ModeOTAFirst)
	added := s.AddOTA(ota.Alias{Success: true, RadioID: 1, Alias: "Medic 1", TalkgroupID: -1}, 100)
	require.True(t, added)

	added = s.AddOTA(ota.Alias{Success: true, RadioID: 1, Alias: "Medic 1", WACN: "BEE00", TalkgroupID: -1}, 200)
	require.False(t, added)

	tags := s.OTATags()
	require.Len(t, tags, 1)
	assert.Equal(t, "BEE00", tags[0].WACN)
	assert.Equal(t, int64(200), tags[0].Timestamp)
}

func TestAddOTAIgnoresFailedDecode(t *testing.T) {
	s := NewStore(ModeOTAFirst)
	added := s.AddOTA(ota.Alias{Success: false}, 1)
	assert.False(t, added)
	assert.Empty(t, s.OTATags())
}

func TestOTACSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "ota.csv")

	s := NewStore(ModeOTAFirst)
	s.AddOTA(ota.Alias{Success: true, RadioID: 5, Alias: "Truck 3", WACN: "BEE00", SysID: "1", TalkgroupID: 100}, 10)
	require.NoError(t, s.rewriteOTAFile(filename))

	reloaded := NewStore(ModeOTAFirst)
	require.NoError(t, reloaded.LoadOTATags(filename))

	tags := reloaded.OTATags()
	require.Len(t, tags, 1)
	assert.Equal(t, int64(5), tags[0].UnitID)
	assert.Equal(t, "Truck 3", tags[0].Alias)
	assert.Equal(t, int64(100), tags[0].TalkgroupID)
}

func TestLoadOTATagsDeduplicatesKeepingNewest(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "ota.csv")

	content := "5,Old Name,src,1,,,\n5,New Name,src,2,BEE00,1,100\n"
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	s := NewStore(ModeOTAFirst)
	require.NoError(t, s.LoadOTATags(filename))

	tags := s.OTATags()
	require.Len(t, tags, 1)
	assert.Equal(t, "New Name", tags[0].Alias)
	assert.Equal(t, "BEE00", tags[0].WACN)
}

func TestLoadUserTagsMissingFileIsNoop(t *testing.T) {
	s := NewStore(ModeUserOnly)
	require.NoError(t, s.LoadUserTags(filepath.Join(t.TempDir(), "missing.csv")))
	assert.Empty(t, s.userTags)
}
