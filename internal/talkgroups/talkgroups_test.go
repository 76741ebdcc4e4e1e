// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package talkgroups

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesAllColumns(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "talkgroups.csv")
	content := "100,D,Dispatch,Fire Dispatch,Fire,Fire-Rescue,1\n200,A,PD,Police Dispatch,Law,Police,2\n"
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	s := NewStore()
	require.NoError(t, s.Load(filename))

	assert.Equal(t, 2, s.Len())
	tg, ok := s.Lookup(100)
	require.True(t, ok)
	assert.Equal(t, "Dispatch", tg.AlphaTag)
	assert.Equal(t, "Fire Dispatch", tg.Description)
	assert.Equal(t, 1, tg.Priority)
}

func TestLookupUnknownTalkgroup(t *testing.T) {
	s := NewStore()
	_, ok := s.Lookup(999)
	assert.False(t, ok)
}

func TestLoadEmptyFilenameIsNoop(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load(""))
	assert.Equal(t, 0, s.Len())
}

func TestLoadMissingFileIsNoop(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "missing.csv")))
	assert.Equal(t, 0, s.Len())
}
