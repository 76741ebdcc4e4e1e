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
	"errors"
	"math"
	"math/cmplx"

	"hz.tools/sdr"
	"hz.tools/sdr/fft"
)

// radix2Plan is a from-scratch Cooley-Tukey FFT/IFFT conforming to
// fft.Planner. The unvoiced synthesizer's noise-excited inverse transform
// is the only DSP primitive in this package without a library counterpart
// anywhere in the retrieved examples; see DESIGN.md for why this is
// hand-rolled rather than imported, and why it is still wired through
// hz.tools/sdr/fft's Direction/Plan/Planner/TransformOnce types instead of
// bypassing them.
type radix2Plan struct {
	iq        sdr.SamplesC64
	frequency []complex64
	direction fft.Direction
}

// unvoicedFFTPlanner implements fft.Planner.
func unvoicedFFTPlanner(iq sdr.SamplesC64, frequency []complex64, direction fft.Direction) (fft.Plan, error) {
	if len(iq) != len(frequency) {
		return nil, errors.New("imbe: fft buffers must be the same length")
	}
	if len(iq) == 0 || (len(iq)&(len(iq)-1)) != 0 {
		return nil, errors.New("imbe: fft length must be a non-zero power of two")
	}
	return &radix2Plan{iq: iq, frequency: frequency, direction: direction}, nil
}

func (p *radix2Plan) Close() error { return nil }

func (p *radix2Plan) Transform() error {
	n := len(p.iq)
	buf := make([]complex128, n)

	if p.direction == fft.Forward {
		for i, v := range p.iq {
			buf[i] = complex(float64(real(v)), float64(imag(v)))
		}
		radix2(buf, false)
		for i, v := range buf {
			p.frequency[i] = complex64(v)
		}
		return nil
	}

	for i, v := range p.frequency {
		buf[i] = complex(float64(real(v)), float64(imag(v)))
	}
	radix2(buf, true)
	scale := 1.0 / float64(n)
	for i, v := range buf {
		p.iq[i] = complex64(v * complex(scale, 0))
	}
	return nil
}

// radix2 performs an in-place iterative Cooley-Tukey transform. inverse
// selects the sign of the twiddle exponent; the caller is responsible for
// the 1/N scaling on the inverse pass.
func radix2(a []complex128, inverse bool) {
	n := len(a)
	if n <= 1 {
		return
	}

	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j &^= bit
		}
		j |= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for length := 2; length <= n; length <<= 1 {
		angle := sign * 2 * math.Pi / float64(length)
		wLen := cmplx.Rect(1, angle)
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			half := length / 2
			for k := 0; k < half; k++ {
				u := a[start+k]
				v := a[start+k+half] * w
				a[start+k] = u + v
				a[start+k+half] = u - v
				w *= wLen
			}
		}
	}
}
