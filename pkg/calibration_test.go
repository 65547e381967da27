package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableCalibration(t *testing.T) {
	cal := NewTableCalibration()
	cal.Set(AsicData, 0, 1, 10, CalParams{Gain: 2, Offset: 100, Threshold: 50, Walk: 3})

	energy, walk, over := cal.Calibrate(AsicData, 0, 1, 10, 200)
	assert.Equal(t, float32(500), energy)
	assert.Equal(t, int64(3), walk)
	assert.True(t, over)

	_, _, over = cal.Calibrate(AsicData, 0, 1, 10, 50)
	assert.False(t, over)
}

func TestTableCalibrationMissingChannel(t *testing.T) {
	cal := NewTableCalibration()

	energy, walk, over := cal.Calibrate(CaenData, 0, 0, 5, 123)
	assert.Equal(t, float32(123), energy)
	assert.Equal(t, int64(0), walk)
	assert.True(t, over)
	assert.Equal(t, uint64(1), cal.Missing)

	_, _, over = cal.Calibrate(CaenData, 0, 0, 5, 0)
	assert.False(t, over)
	assert.Equal(t, uint64(2), cal.Missing)
}

func TestPassthroughCalibration(t *testing.T) {
	cal := NewPassthroughCalibration()

	energy, walk, over := cal.Calibrate(AsicData, 2, 0, 7, 321)
	assert.Equal(t, float32(321), energy)
	assert.Equal(t, int64(0), walk)
	assert.True(t, over)
}
