// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package transmission

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	num         int64
	freq        float64
	talkgroup   int64
	shortName   string
	captureDir  string
	conventional bool
	srcID       int64
}

func (f *fakeCall) Num() int64              { return f.num }
func (f *fakeCall) Freq() float64           { return f.freq }
func (f *fakeCall) Talkgroup() int64        { return f.talkgroup }
func (f *fakeCall) ShortName() string       { return f.shortName }
func (f *fakeCall) CaptureDir() string      { return f.captureDir }
func (f *fakeCall) IsConventional() bool    { return f.conventional }
func (f *fakeCall) CurrentSourceID() int64  { return f.srcID }

func newTestSink(t *testing.T) (*Sink, *fakeCall) {
	t.Helper()
	dir := t.TempDir()
	call := &fakeCall{
		num:        1,
		freq:       851012500,
		talkgroup:  100,
		shortName:  "system1",
		captureDir: dir,
		srcID:      -1,
	}
	sink, err := NewSink(1, 8000, 16)
	require.NoError(t, err)
	return sink, call
}

func TestNewSinkRejectsUnsupportedBitDepth(t *testing.T) {
	_, err := NewSink(1, 8000, 24)
	assert.Error(t, err)
}

func TestSinkStartsAvailable(t *testing.T) {
	sink, _ := newTestSink(t)
	assert.Equal(t, StateAvailable, sink.State())
}

// TestTransmissionSegmentation mirrors the "Transmission segmentation"
// scenario: start recording call {tg=100, freq=851.0125e6}, inject 800
// samples tagged src_id=42 at offset 0, then a terminate tag at offset
// 800, and expect one Transmission with sample_count=800, length=0.1s
// (at an 8kHz sample rate), source=42, and a filename matching
// ".../100-<unix>_851012500.wav".
func TestTransmissionSegmentation(t *testing.T) {
	sink, call := newTestSink(t)

	sink.StartRecording(call, -1)
	require.Equal(t, StateIdle, sink.State())

	samples := make([]int16, 800)
	for i := range samples {
		samples[i] = int16(i % 100)
	}

	n, err := sink.Write(samples, []Tag{{Kind: TagSourceID, Offset: 0, Value: 42}})
	require.NoError(t, err)
	assert.Equal(t, 800, n)
	assert.Equal(t, StateRecording, sink.State())

	_, err = sink.Write(nil, []Tag{{Kind: TagTerminate, Offset: 800}})
	require.NoError(t, err)

	transmissions := sink.Transmissions()
	require.Len(t, transmissions, 1)

	tx := transmissions[0]
	assert.Equal(t, int64(42), tx.Source)
	assert.Equal(t, 800, tx.SampleCount)
	assert.InDelta(t, 0.1, tx.Length, 1e-9)

	expectedBase := fmt.Sprintf("%s-%d_%.0f", "100", tx.StartTime.Unix(), call.Freq())
	assert.Contains(t, tx.Filename, expectedBase)
	assert.Contains(t, tx.Filename, call.shortName)

	info, err := os.Stat(tx.Filename)
	require.NoError(t, err)
	assert.Equal(t, int64(wavHeaderSize+800*2), info.Size())
}

func TestTerminateThenNewSourceStartsNewFile(t *testing.T) {
	sink, call := newTestSink(t)
	sink.StartRecording(call, -1)

	_, err := sink.Write(make([]int16, 400), []Tag{{Kind: TagSourceID, Value: 10}})
	require.NoError(t, err)

	// An UPDATE keeps the call open past the terminate.
	sink.SetRecordMoreTransmissions(true)
	_, err = sink.Write(nil, []Tag{{Kind: TagTerminate}})
	require.NoError(t, err)

	assert.Equal(t, StateIdle, sink.State())

	_, err = sink.Write(make([]int16, 200), []Tag{{Kind: TagSourceID, Value: 20}})
	require.NoError(t, err)
	_, err = sink.Write(nil, []Tag{{Kind: TagTerminate}})
	require.NoError(t, err)

	transmissions := sink.Transmissions()
	require.Len(t, transmissions, 2)
	assert.Equal(t, int64(10), transmissions[0].Source)
	assert.Equal(t, 400, transmissions[0].SampleCount)
	assert.Equal(t, int64(20), transmissions[1].Source)
	assert.Equal(t, 200, transmissions[1].SampleCount)
}

func TestSetRecordMoreTransmissionsReArmsStoppedSink(t *testing.T) {
	sink, call := newTestSink(t)
	sink.StartRecording(call, -1)
	sink.SetRecordMoreTransmissions(false)

	_, err := sink.Write(make([]int16, 100), []Tag{{Kind: TagSourceID, Value: 5}})
	require.NoError(t, err)
	_, err = sink.Write(nil, []Tag{{Kind: TagTerminate}})
	require.NoError(t, err)

	assert.Equal(t, StateStopped, sink.State())

	sink.SetRecordMoreTransmissions(true)
	assert.Equal(t, StateIdle, sink.State())
}

func TestStopRecordingFinalizesOpenTransmission(t *testing.T) {
	sink, call := newTestSink(t)
	sink.StartRecording(call, -1)

	_, err := sink.Write(make([]int16, 50), []Tag{{Kind: TagSourceID, Value: 7}})
	require.NoError(t, err)

	sink.StopRecording()

	assert.Equal(t, StateAvailable, sink.State())
	transmissions := sink.Transmissions()
	require.Len(t, transmissions, 1)
	assert.Equal(t, 50, transmissions[0].SampleCount)
}

func TestTotalLengthSecondsSumsCompletedAndInProgress(t *testing.T) {
	sink, call := newTestSink(t)
	sink.StartRecording(call, -1)

	_, err := sink.Write(make([]int16, 800), []Tag{{Kind: TagSourceID, Value: 1}})
	require.NoError(t, err)
	// An UPDATE keeps the call open past the terminate.
	sink.SetRecordMoreTransmissions(true)
	_, err = sink.Write(nil, []Tag{{Kind: TagTerminate}})
	require.NoError(t, err)

	_, err = sink.Write(make([]int16, 400), []Tag{{Kind: TagSourceID, Value: 2}})
	require.NoError(t, err)

	assert.InDelta(t, 0.15, sink.TotalLengthSeconds(), 1e-9)
}

func TestWriteWithoutCurrentCallDropsSamples(t *testing.T) {
	sink, _ := newTestSink(t)
	n, err := sink.Write(make([]int16, 10), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestSlotSuffixAppearsInFilename(t *testing.T) {
	sink, call := newTestSink(t)
	sink.StartRecording(call, 1)

	_, err := sink.Write(make([]int16, 10), []Tag{{Kind: TagSourceID, Value: 1}})
	require.NoError(t, err)
	_, err = sink.Write(nil, []Tag{{Kind: TagTerminate}})
	require.NoError(t, err)

	transmissions := sink.Transmissions()
	require.Len(t, transmissions, 1)
	assert.Contains(t, transmissions[0].BaseFilename, ".1")
}
