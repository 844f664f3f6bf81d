package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameArithmetic(t *testing.T) {
	f := NewFilledFrame(3, 2, 10)
	f.Set(2, 1, 4)
	assert.Equal(t, float32(4), f.At(2, 1))
	assert.Equal(t, float32(4), f.Pix[5])

	f.SubScalar(2)
	assert.Equal(t, float32(8), f.At(0, 0))

	require.NoError(t, f.Add(NewFilledFrame(3, 2, 2)))
	require.NoError(t, f.Div(NewFilledFrame(3, 2, 2)))
	assert.Equal(t, float32(5), f.At(0, 0))
	assert.Equal(t, float32(2), f.At(2, 1))

	require.NoError(t, f.Min(NewFilledFrame(3, 2, 3)))
	assert.Equal(t, float32(3), f.At(0, 0))
	assert.Equal(t, float32(2), f.At(2, 1))

	f.Scale(0.5)
	assert.Equal(t, float32(1.5), f.At(1, 0))

	assert.Error(t, f.Sub(NewFrame(2, 3)))
	assert.Error(t, f.Div(nil))
}

func TestFrameCloneAndZero(t *testing.T) {
	f := NewFrame(2, 2)
	assert.True(t, f.IsZero())

	c := f.Clone()
	c.Pix[0] = 1
	assert.True(t, f.IsZero(), "clone shares no pixels")
	assert.False(t, c.IsZero())
	assert.True(t, f.SameShape(c))
	assert.Equal(t, []float64{1, 0, 0, 0}, c.Float64s())
}

func TestCoordinateWithChannel(t *testing.T) {
	c := Coordinate{Position: 1, Time: 2, Z: 3}
	d := c.WithChannel(4)
	assert.Equal(t, 0, c.Channel)
	assert.Equal(t, 4, d.Channel)
	assert.Equal(t, "p=1 t=2 z=3 c=4", d.String())
}
