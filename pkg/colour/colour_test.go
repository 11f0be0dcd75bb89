package colour_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
)

func TestNamedLooksUpBuiltins(t *testing.T) {
	spec, ok := colour.Named("bt709")
	require.True(t, ok)
	assert.Equal(t, colour.BT709, spec)

	_, ok = colour.Named("not-a-space")
	assert.False(t, ok)
}

func TestRGBToCommonSpaceMatrixIsIdentityForBT709(t *testing.T) {
	m := colour.RGBToCommonSpaceMatrix(colour.BT709)
	r, c := m.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 3, c)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, m.At(i, j), 1e-4)
		}
	}
}

func TestGammaLUTsAreMonotonic(t *testing.T) {
	toLinear := colour.GammaToLinearLUT(colour.BT709)
	toGamma := colour.LinearToGammaLUT(colour.BT709)
	require.Len(t, toLinear, colour.LUTSize)
	require.Len(t, toGamma, colour.LUTSize)

	// Spot-check monotonicity at a handful of points instead of a full
	// round-trip grid: both LUTs must be non-decreasing end to end.
	for i := 1; i < colour.LUTSize; i += 4096 {
		assert.GreaterOrEqual(t, toLinear[i], toLinear[i-1])
		assert.GreaterOrEqual(t, toGamma[i], toGamma[i-1])
	}
}

func TestYCbCrToRGBMatrixShape(t *testing.T) {
	m := colour.YCbCrToRGBMatrix(colour.BT709, colour.YCbCrParams{
		NumberOfBits: 8,
		LumaBlack:    16,
		LumaWhite:    235,
		ChromaRange:  224,
	})
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
}
