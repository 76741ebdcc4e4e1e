// SPDX-License-Identifier: AGPL-3.0-or-later
package fixedpoint_test

import (
	"math"
	"testing"

	"github.com/USA-RedDragon/trunk-recorder/internal/fixedpoint"
	"github.com/stretchr/testify/assert"
)

func TestAddSaturates(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, math.MaxInt16, fixedpoint.Add(math.MaxInt16, 1))
	assert.EqualValues(t, math.MinInt16, fixedpoint.Sub(math.MinInt16, 1))
	assert.EqualValues(t, 30, fixedpoint.Add(10, 20))
}

func TestMultQ15(t *testing.T) {
	t.Parallel()
	// 0.5 * 0.5 in Q15 is 0x4000 * 0x4000 -> 0x2000 (0.25)
	assert.EqualValues(t, 0x2000, fixedpoint.Mult(0x4000, 0x4000))
}

func TestLMult(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, int32(2)*1*2, fixedpoint.LMult(2, 1))
}

func TestShrShlRoundTrip(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, 4, fixedpoint.Shr(16, 2))
	assert.EqualValues(t, 64, fixedpoint.Shl(16, 2))
	assert.EqualValues(t, -1, fixedpoint.Shr(-1, 20))
	assert.EqualValues(t, 0, fixedpoint.Shr(1, 20))
}

func TestLShrLShlSaturate(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, math.MaxInt32, fixedpoint.LShl(1<<30, 4))
	assert.EqualValues(t, math.MinInt32, fixedpoint.LShl(-(1<<30), 4))
}

func TestDepositExtract(t *testing.T) {
	t.Parallel()
	h := fixedpoint.LDepositH(0x1234)
	assert.EqualValues(t, 0x1234, fixedpoint.ExtractH(h))
	assert.EqualValues(t, 0, fixedpoint.ExtractL(h))
}

func TestNormS(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, 0, fixedpoint.NormS(0))
	assert.EqualValues(t, 6, fixedpoint.NormS(0x100))
}

func TestNormL(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, 0, fixedpoint.NormL(0))
	assert.Greater(t, fixedpoint.NormL(0x100), int16(0))
}

func TestDivSContract(t *testing.T) {
	t.Parallel()
	assert.EqualValues(t, 0x4000, fixedpoint.DivS(1, 2))
	assert.EqualValues(t, 0, fixedpoint.DivS(0, 5))
	assert.EqualValues(t, math.MaxInt16, fixedpoint.DivS(5, 5))
	// Out of contract (num > den) saturates rather than panics.
	assert.EqualValues(t, math.MaxInt16, fixedpoint.DivS(10, 5))
}
