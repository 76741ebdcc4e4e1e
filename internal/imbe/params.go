// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package imbe implements the fixed-point IMBE vocoder decode path: 88-bit
// P25 voice frames in, 160 PCM samples out, including frame repetition,
// frame muting, adaptive smoothing and voiced/unvoiced synthesis.
package imbe

const (
	// Frame is the number of PCM samples produced per 20ms voice frame.
	Frame = 160

	// SampleRate is the IMBE decode rate in Hz.
	SampleRate = 8000

	// NumHarmsMin and NumHarmsMax bound L, the harmonic count.
	NumHarmsMin = 9
	NumHarmsMax = 56

	// NumBandsMin and NumBandsMax bound K, the voicing band count.
	NumBandsMin = 3
	NumBandsMax = 12

	// BitStreamLen is the length of the rebuilt interior bit stream: 3
	// prepended + 36 (words 3,2,1) + 33 (words 6,5,4) + 3 appended.
	BitStreamLen = 75

	// maxMuteRepeat is the repeat_count threshold past which synthesis is
	// muted outright, per P25/IMBE Algorithms 97/98.
	maxMuteRepeat = 3

	// severeErrorRate is the frame-mute threshold on errorRate.
	severeErrorRate = 0.0875
)

// Param is the fixed-point voice-frame state carried across frames,
// mutated once per 20ms frame and consulted by the synthesizers.
type Param struct {
	BVec [NumHarmsMax + 3]int16

	FundFreq float64 // Q-format fundamental frequency, radians/pi
	NumHarms int     // L, 9..56
	NumBands int     // K, 3..12

	VUVDesignation [NumHarmsMax]int16
	SpectralAmp    [NumHarmsMax]float64

	ErrorRate    float64
	ErrorTotal   int
	ErrorCoset0  int
	ErrorCoset4  int
	RepeatCount  int
	MuteAudio    bool
	SpectralEnergy  float64
	AmplitudeThresh float64

	LUV int // count of unvoiced harmonics from the last v_uv_decode

	bitAlloc []int

	// synthesis state carried across frames for phase continuity
	voicedPhase     [NumHarmsMax]float64
	prevFundFreq    float64
	prevNumHarms    int
	unvoicedTail    [unvoicedFFTSize - Frame]float64
	hasUnvoicedTail bool
	noiseState      uint64
}

// NewParam returns a Param initialized the way decode_init() does: the
// first-frame default consistent with the other struct-wide zero
// initializations in the original source (the original carries two
// conflicting defaults for this value; this picks the one consistent
// with decode_init()'s own zero-initialized struct).
func NewParam() *Param {
	p := &Param{
		NumHarms: 9,
		NumBands: 3,
	}
	p.FundFreq = q31ToFloat(0x0cf6474a)
	p.AmplitudeThresh = 20480
	p.prevFundFreq = p.FundFreq
	p.prevNumHarms = p.NumHarms
	p.noiseState = 0x9e3779b97f4a7c15
	return p
}

// q31ToFloat converts a Q31 fixed-point fundamental-frequency encoding
// (fraction of pi radians/sample) into a float64 in the same units used
// by fundamentalFrequency table lookups.
func q31ToFloat(q31 uint32) float64 {
	return float64(q31) / float64(uint32(1)<<31)
}
