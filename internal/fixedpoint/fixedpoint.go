// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package fixedpoint implements the saturating 16- and 32-bit fixed-point
// primitives the IMBE vocoder is built on. Every operation saturates at the
// int16/int32 bounds instead of wrapping, matching the ITU "basic_op"
// reference operations the original IMBE implementation used.
package fixedpoint

import "math"

const (
	maxWord16 = math.MaxInt16
	minWord16 = math.MinInt16
	maxWord32 = math.MaxInt32
	minWord32 = math.MinInt32
)

// Add returns a saturated 16-bit sum of a and b.
func Add(a, b int16) int16 {
	return saturate16(int32(a) + int32(b))
}

// Sub returns a saturated 16-bit difference of a and b.
func Sub(a, b int16) int16 {
	return saturate16(int32(a) - int32(b))
}

// Mult returns the saturated Q15 product of a and b: (a*b) >> 15.
func Mult(a, b int16) int16 {
	product := (int32(a) * int32(b)) >> 15
	return saturate16(product)
}

// LMult returns the full-precision Q31 product of a and b: (a*b) << 1.
func LMult(a, b int16) int32 {
	return saturateL(int64(a) * int64(b) * 2)
}

// LAdd returns a saturated 32-bit sum of a and b.
func LAdd(a, b int32) int32 {
	return saturateL(int64(a) + int64(b))
}

// LSub returns a saturated 32-bit difference of a and b.
func LSub(a, b int32) int32 {
	return saturateL(int64(a) - int64(b))
}

// Shr arithmetic-shifts a right by n bits (n >= 0), saturating if n < 0
// (an equivalent left shift) exactly as the reference shr() does.
func Shr(a int16, n int16) int16 {
	if n < 0 {
		return Shl(a, -n)
	}
	if n >= 16 {
		if a < 0 {
			return -1
		}
		return 0
	}
	return int16(int32(a) >> uint(n))
}

// Shl saturating left-shifts a by n bits (n >= 0).
func Shl(a int16, n int16) int16 {
	if n < 0 {
		return Shr(a, -n)
	}
	if n >= 16 {
		if a == 0 {
			return 0
		}
		if a > 0 {
			return maxWord16
		}
		return minWord16
	}
	return saturate16(int32(a) << uint(n))
}

// LShr arithmetic-shifts a 32-bit value right by n bits.
func LShr(a int32, n int16) int32 {
	if n < 0 {
		return LShl(a, -n)
	}
	if n >= 32 {
		if a < 0 {
			return -1
		}
		return 0
	}
	return a >> uint(n)
}

// LShl saturating left-shifts a 32-bit value by n bits.
func LShl(a int32, n int16) int32 {
	if n < 0 {
		return LShr(a, -n)
	}
	if n >= 32 {
		if a == 0 {
			return 0
		}
		if a > 0 {
			return maxWord32
		}
		return minWord32
	}
	return saturateL(int64(a) << uint(n))
}

// LDepositH places a 16-bit value in the high half of a 32-bit word.
func LDepositH(a int16) int32 {
	return int32(a) << 16
}

// LDepositL sign-extends a 16-bit value into a 32-bit word.
func LDepositL(a int16) int32 {
	return int32(a)
}

// ExtractL returns the low 16 bits of a.
func ExtractL(a int32) int16 {
	return int16(a & 0xFFFF)
}

// ExtractH returns the high 16 bits of a.
func ExtractH(a int32) int16 {
	return int16(a >> 16)
}

// NormS returns the left-shift count needed to normalize a 16-bit value so
// its leading significant bit sits in bit 14 (0 for a == 0).
func NormS(a int16) int16 {
	if a == 0 {
		return 0
	}
	var value int32 = int32(a)
	if value < 0 {
		value = ^value
	}
	var shift int16
	for shift = 0; shift < 15; shift++ {
		if value&0x4000 != 0 {
			break
		}
		value <<= 1
	}
	return shift
}

// NormL returns the left-shift count needed to normalize a 32-bit value so
// its leading significant bit sits in bit 30 (0 for a == 0).
func NormL(a int32) int16 {
	if a == 0 {
		return 0
	}
	value := a
	if value < 0 {
		value = ^value
	}
	var shift int16
	for shift = 0; shift < 31; shift++ {
		if value&0x40000000 != 0 {
			break
		}
		value <<= 1
	}
	return shift
}

// DivS returns the Q15 quotient num/den. Requires 0 <= num <= den and
// den != 0; callers outside that contract get a saturated MAX_WORD16.
func DivS(num, den int16) int16 {
	if den == 0 || num < 0 || num > den {
		return maxWord16
	}
	if num == 0 {
		return 0
	}
	if num == den {
		return maxWord16
	}
	quotient := (int64(num) << 15) / int64(den)
	return saturate16(int32(quotient))
}

func saturate16(v int32) int16 {
	if v > maxWord16 {
		return maxWord16
	}
	if v < minWord16 {
		return minWord16
	}
	return int16(v)
}

func saturateL(v int64) int32 {
	if v > maxWord32 {
		return maxWord32
	}
	if v < minWord32 {
		return minWord32
	}
	return int32(v)
}
