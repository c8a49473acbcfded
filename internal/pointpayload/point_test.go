package pointpayload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallAndDecodeRoundTrip(t *testing.T) {
	buf := make([]byte, RegionSize)
	p := Point{Valid: 1, X: 1.5, Y: -2.25}

	require.NoError(t, Install(buf, 3, p))

	got := decodePoint(buf, 3*PointSize)
	assert.Equal(t, p, got)
}

func TestInstallRejectsOutOfRangeIndex(t *testing.T) {
	buf := make([]byte, RegionSize)
	err := Install(buf, MaxPoints, Point{Valid: 1})
	require.Error(t, err)
	assert.ErrorContains(t, err, "index")
}

func TestInstallRejectsNegativeIndex(t *testing.T) {
	buf := make([]byte, RegionSize)
	err := Install(buf, -1, Point{Valid: 1})
	require.Error(t, err)
}

func TestInvalidateClearsFlagOnly(t *testing.T) {
	buf := make([]byte, RegionSize)
	require.NoError(t, Install(buf, 0, Point{Valid: 1, X: 4, Y: 5}))

	require.NoError(t, Invalidate(buf, 0))

	got := decodePoint(buf, 0)
	assert.Equal(t, int32(0), got.Valid)
	assert.Equal(t, float32(4), got.X)
	assert.Equal(t, float32(5), got.Y)
}

func TestInvalidateRejectsOutOfRangeIndex(t *testing.T) {
	buf := make([]byte, RegionSize)
	err := Invalidate(buf, 999)
	require.Error(t, err)
}

func TestShowPointsComputesAverageOfValidOnly(t *testing.T) {
	buf := make([]byte, RegionSize)
	require.NoError(t, Install(buf, 0, Point{Valid: 1, X: 2, Y: 4}))
	require.NoError(t, Install(buf, 1, Point{Valid: 1, X: 6, Y: 8}))
	require.NoError(t, Install(buf, 2, Point{Valid: 0, X: 100, Y: 100}))

	stats := ShowPoints(buf, MaxPoints)
	assert.Equal(t, 2, stats.ValidCount)
	assert.Equal(t, float32(4), stats.AvgX)
	assert.Equal(t, float32(6), stats.AvgY)
}

func TestShowPointsAllInvalid(t *testing.T) {
	buf := make([]byte, RegionSize)
	stats := ShowPoints(buf, MaxPoints)
	assert.Equal(t, 0, stats.ValidCount)
	assert.Equal(t, float32(0), stats.AvgX)
}

func TestPointTaskInvalidatingAndSleepSeconds(t *testing.T) {
	negative := PointTask{Index: 1, Delay: -3}
	assert.True(t, negative.Invalidating())
	assert.Equal(t, 3, negative.SleepSeconds())

	positive := PointTask{Index: 1, Delay: 3}
	assert.False(t, positive.Invalidating())
	assert.Equal(t, 3, positive.SleepSeconds())
}
