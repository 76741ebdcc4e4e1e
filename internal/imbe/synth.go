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
	"math"

	"hz.tools/sdr"
	"hz.tools/sdr/fft"
)

// unvoicedFFTSize is the block size used for the unvoiced noise-excited
// inverse transform. 256 gives enough frequency resolution below 4kHz for
// the widest IMBE band spacing while staying a power of two for radix2.
const unvoicedFFTSize = 256

// clampSample saturates a synthesis accumulator to the decoder's output
// ceiling at +/-31125 rather than the full int16 range, matching the
// fixed-point reference's post-synthesis limiter.
func clampSample(v float64) int16 {
	const limit = 31125.0
	if v > limit {
		return int16(limit)
	}
	if v < -limit {
		return int16(-limit)
	}
	return int16(v)
}

// Decode runs the full per-frame decode pipeline: frame-vector decode,
// voicing expansion, spectral amplitude decode and
// enhancement, adaptive smoothing, then voiced+unvoiced synthesis summed
// into one 160-sample PCM frame. A repeated frame still synthesizes from
// the carried-over param state; a muted frame, or any frame once
// RepeatCount exceeds maxMuteRepeat, produces silence.
func Decode(param *Param, frameVector [8]int16) [Frame]int16 {
	DecodeFrameVector(param, frameVector)

	if param.MuteAudio || param.RepeatCount > maxMuteRepeat {
		var silence [Frame]int16
		param.prevFundFreq = param.FundFreq
		param.prevNumHarms = param.NumHarms
		return silence
	}

	VUVDecode(param)
	DecodeSpectralAmplitudes(param)
	EnhanceSpectralAmplitudes(param)
	AdaptiveSmoothing(param)

	return synthesizeAndAdvance(param)
}

// SynthesizeFromParams is the decode_tap equivalent from
// _examples/original_source/.../decode.cc: it accepts already-decoded
// floating point voicing/magnitude parameters instead of an 88-bit frame,
// for decode backends that produce these directly. angularFundFreq is in
// radians/sample (w0); voicing and magnitudes must each have at least
// numHarms entries.
func SynthesizeFromParams(param *Param, numHarms int, angularFundFreq float64, voicing []int, magnitudes []float64) [Frame]int16 {
	if numHarms < 1 {
		numHarms = 1
	}
	if numHarms > NumHarmsMax {
		numHarms = NumHarmsMax
	}
	param.NumHarms = numHarms
	param.FundFreq = angularFundFreq / math.Pi

	luv := 0
	for i := 0; i < numHarms; i++ {
		var v int16
		if i < len(voicing) && voicing[i] != 0 {
			v = 1
		} else {
			luv++
		}
		param.VUVDesignation[i] = v

		var m float64
		if i < len(magnitudes) {
			m = magnitudes[i]
		}
		param.SpectralAmp[i] = m
	}
	param.LUV = luv

	EnhanceSpectralAmplitudes(param)

	return synthesizeAndAdvance(param)
}

// synthesizeAndAdvance sums voiced and unvoiced synthesis and rolls the
// phase-continuity state forward for the next frame, mirroring
// imbe_vocoder::decode's add(snd, snd_tmp) combine step.
func synthesizeAndAdvance(param *Param) [Frame]int16 {
	voiced := voicedSynthesize(param)
	unvoiced := unvoicedSynthesize(param)

	var out [Frame]int16
	for i := range out {
		out[i] = clampSample(float64(voiced[i]) + float64(unvoiced[i]))
	}

	param.prevFundFreq = param.FundFreq
	param.prevNumHarms = param.NumHarms
	return out
}

// voicedSynthesize sums sinusoids for every voiced harmonic using
// quadratic phase interpolation between the previous and current frame's
// fundamental frequency, the classic McCree/Barnwell approach to keeping
// voiced harmonics phase-continuous across 20ms frame boundaries without
// needing the encoder's exact onset timing.
func voicedSynthesize(param *Param) [Frame]float64 {
	var out [Frame]float64

	for h := 0; h < param.NumHarms; h++ {
		if param.VUVDesignation[h] == 0 {
			continue
		}

		harmonicNum := float64(h + 1)
		w0 := harmonicNum * param.prevFundFreq * math.Pi
		w1 := harmonicNum * param.FundFreq * math.Pi
		amp := param.SpectralAmp[h]

		phase := param.voicedPhase[h]
		for n := 0; n < Frame; n++ {
			t := float64(n)
			instPhase := phase + w0*t + (w1-w0)*t*t/(2*Frame)
			out[n] += amp * math.Sin(instPhase)
		}

		finalPhase := phase + w0*Frame + (w1-w0)*Frame/2
		param.voicedPhase[h] = math.Mod(finalPhase, 2*math.Pi)
	}

	return out
}

// unvoicedSynthesize builds a noise spectrum with energy only at the
// unvoiced harmonic bins, inverse-transforms it through the package's
// radix2 Planner, and overlap-adds the tail against the previous frame's
// tail for a continuous noise floor (no block-boundary clicks).
func unvoicedSynthesize(param *Param) [Frame]float64 {
	var out [Frame]float64
	if param.LUV == 0 && !param.hasUnvoicedTail {
		return out
	}

	freqDomain := make([]complex64, unvoicedFFTSize)
	timeDomain := make(sdr.SamplesC64, unvoicedFFTSize)

	rng := param.noiseState
	nextRand := func() float64 {
		rng ^= rng << 13
		rng ^= rng >> 7
		rng ^= rng << 17
		return float64(rng%100000)/100000.0*2*math.Pi - math.Pi
	}

	for h := 0; h < param.NumHarms; h++ {
		if param.VUVDesignation[h] != 0 {
			continue
		}
		binFreq := float64(h+1) * param.FundFreq / 2.0
		bin := int(binFreq * unvoicedFFTSize)
		if bin < 1 || bin >= unvoicedFFTSize/2 {
			continue
		}
		mag := float32(param.SpectralAmp[h])
		phase := nextRand()
		val := complex64(complex(float64(mag)*math.Cos(phase), float64(mag)*math.Sin(phase)))
		freqDomain[bin] += val
		freqDomain[unvoicedFFTSize-bin] += complex64(complex(real(val), -imag(val)))
	}
	param.noiseState = rng

	if err := fft.TransformOnce(unvoicedFFTPlanner, timeDomain, freqDomain, fft.Backward); err != nil {
		return out
	}

	const tailLen = unvoicedFFTSize - Frame
	window := func(n, total int) float64 {
		return 0.5 - 0.5*math.Cos(2*math.Pi*float64(n)/float64(total-1))
	}

	for n := 0; n < Frame; n++ {
		w := window(n, unvoicedFFTSize)
		sample := float64(real(timeDomain[n])) * w
		if param.hasUnvoicedTail && n < tailLen {
			sample += param.unvoicedTail[n]
		}
		out[n] = sample
	}

	for n := 0; n < tailLen; n++ {
		w := window(Frame+n, unvoicedFFTSize)
		param.unvoicedTail[n] = float64(real(timeDomain[Frame+n])) * w
	}
	param.hasUnvoicedTail = true

	return out
}
