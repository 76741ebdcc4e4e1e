// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package imbe

import (
	"log/slog"

	"github.com/USA-RedDragon/trunk-recorder/internal/fixedpoint"
)

// DecodeFrameVector implements the P25/IMBE frame-decode protocol, steps
// 1-10: it mutates param in place from an 8-word 88-bit frame vector and the
// previous frame's parameters (already resident in param on entry). It
// returns true if a new frame's parameters were decoded, false if the
// frame was a repeat or a mute (in which case param's voicing/spectral
// fields still hold the previous frame's values, per the "frame
// repetition" contract).
func DecodeFrameVector(param *Param, frameVector [8]int16) bool {
	b0 := (fixedpoint.Shr(frameVector[0], 4) & 0xFC) | (fixedpoint.Shr(frameVector[7], 1) & 0x3)
	param.BVec[0] = b0

	// 7.7 FRAME REPEATS — INVALID PITCH ESTIMATE
	if b0 < 0 || int(b0) > 207 {
		param.RepeatCount++
		return false
	}

	// 7.7 FRAME REPEATS — ALGORITHM 97
	if param.ErrorCoset0 >= 2 {
		param.RepeatCount++
		return false
	}

	// 7.7 FRAME REPEATS — ALGORITHM 98
	if float64(param.ErrorTotal) >= 10+40*param.ErrorRate {
		param.RepeatCount++
		return false
	}

	// 7.7 FRAME MUTING — SEVERE BIT ERRORS
	if param.ErrorRate >= severeErrorRate {
		param.MuteAudio = true
		return false
	}

	param.RepeatCount = 0
	param.MuteAudio = false

	index := int(b0)
	param.FundFreq = fundamentalFrequency[index]
	param.NumHarms = spectralAmplitudeCounts[index]
	param.NumBands = voicingBandCounts[index]

	bitStream := rebuildBitStream(frameVector)

	// Rebuild b1 (voicing) from num_bands bits starting at offset 39.
	offset := 3 + 3*12
	var b1 int16
	for i := 0; i < param.NumBands; i++ {
		b1 = (b1 << 1) | bitStream[offset]
		offset++
	}
	param.BVec[1] = b1

	// Rebuild b2 (gain): two bits from the stream plus fields of word 0/7.
	var tmp int16
	tmp |= bitStream[offset] << 1
	offset++
	tmp |= bitStream[offset]
	offset++
	param.BVec[2] = (frameVector[0] & 0x38) | (tmp << 1) | (fixedpoint.Shr(frameVector[7], 3) & 0x01)

	// Shift-compact: splice out the num_bands+2 bits just consumed by b1/b2,
	// joining the bits before them (the 3 prepended + words 3,2,1) with the
	// bits after (words 6,5,4 + 3 appended) into one coefficient stream.
	remaining := make([]int16, 0, BitStreamLen-(param.NumBands+2))
	remaining = append(remaining, bitStream[:3+3*12]...)
	remaining = append(remaining, bitStream[offset:]...)

	// Priority-rescan decode of b_vec[3..num_harms+1].
	for i := range param.BVec {
		if i >= 3 {
			param.BVec[i] = 0
		}
	}
	param.bitAlloc = getBitAllocation(param.NumHarms)

	bitThr := param.bitAlloc[0]
	if param.NumHarms == 11 {
		bitThr = 9
	}

	streamIndex := 0
	limit := len(remaining)
	for streamIndex < limit {
		overran := false
		for i := 0; i < param.NumHarms-1; i++ {
			if bitThr != 0 && bitThr <= param.bitAlloc[i] {
				if streamIndex >= limit {
					overran = true
					break
				}
				param.BVec[3+i] = (param.BVec[3+i] << 1) | remaining[streamIndex]
				streamIndex++
			}
		}
		if overran {
			slog.Warn("imbe: priority rescan ran past end of bit stream, stopping decode")
			break
		}
		bitThr--
		if bitThr < 0 {
			break
		}
	}

	// Synchronization bit decoding.
	param.BVec[param.NumHarms+2] = frameVector[7] & 1

	return true
}

// rebuildBitStream implements step 6 of that process: the first 36 bits come
// from words 3,2,1 (12 bits each, LSB-first within each word), the next 33
// from words 6,5,4 (11 bits each); 3 MSB bits of word 0 are prepended, 3
// bits of word 7 appended.
func rebuildBitStream(frameVector [8]int16) [BitStreamLen]int16 {
	var stream [BitStreamLen]int16

	stream[0] = bitSet(frameVector[0], 0x4)
	stream[1] = bitSet(frameVector[0], 0x2)
	stream[2] = bitSet(frameVector[0], 0x1)

	stream[BitStreamLen-3] = bitSet(frameVector[7], 0x40)
	stream[BitStreamLen-2] = bitSet(frameVector[7], 0x20)
	stream[BitStreamLen-1] = bitSet(frameVector[7], 0x10)

	index := 3 + 3*12 - 1
	for vecNum := 3; vecNum >= 1; vecNum-- {
		tmp := frameVector[vecNum]
		for i := 0; i < 12; i++ {
			stream[index] = tmp & 0x1
			tmp >>= 1
			index--
		}
	}

	index = 3 + 3*12 + 3*11 - 1
	for vecNum := 6; vecNum >= 4; vecNum-- {
		tmp := frameVector[vecNum]
		for i := 0; i < 11; i++ {
			stream[index] = tmp & 0x1
			tmp >>= 1
			index--
		}
	}

	return stream
}

func bitSet(word int16, mask int16) int16 {
	if word&mask != 0 {
		return 1
	}
	return 0
}

// VUVDecode expands the K-band voicing vector b1 into an L-length
// per-harmonic voicing array, repeating each band's bit across up to
// three consecutive harmonics (the last band covers the tail), and counts
// unvoiced harmonics into LUV.
func VUVDecode(param *Param) {
	numHarms := param.NumHarms
	numBands := param.NumBands
	vuVec := param.BVec[1]

	mask := int16(1) << uint(numBands-1)

	for i := range param.VUVDesignation {
		param.VUVDesignation[i] = 0
	}

	i := 0
	uvCount := 0
	for h := 0; h < numHarms; h++ {
		if vuVec&mask != 0 {
			param.VUVDesignation[h] = 1
		} else {
			param.VUVDesignation[h] = 0
			uvCount++
		}

		i++
		if i == 3 {
			if numBands > 1 {
				numBands--
				mask >>= 1
			}
			i = 0
		}
	}
	param.LUV = uvCount
}
