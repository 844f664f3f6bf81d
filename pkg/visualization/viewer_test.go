package visualization

import (
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polrecon/internal/models"
)

// ramp returns a frame whose pixels run 0, 1, 2, ... in row-major order
func ramp(w, h int) *models.Frame {
	f := models.NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = float32(i)
	}
	return f
}

func TestHSVToRGBA(t *testing.T) {
	tests := []struct {
		h, s, v float64
		want    color.RGBA
	}{
		{0, 1, 1, color.RGBA{255, 0, 0, 255}},
		{1, 1, 1, color.RGBA{255, 0, 0, 255}},
		{1.0 / 3, 1, 1, color.RGBA{0, 255, 0, 255}},
		{2.0 / 3, 1, 1, color.RGBA{0, 0, 255, 255}},
		{0.5, 0, 1, color.RGBA{255, 255, 255, 255}},
		{0.25, 1, 0, color.RGBA{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HSVToRGBA(tt.h, tt.s, tt.v), "h=%v s=%v v=%v", tt.h, tt.s, tt.v)
	}
}

func TestQuantileLimits(t *testing.T) {
	lim := QuantileLimits(ramp(10, 10), 0, 1)
	assert.Equal(t, 0.0, lim.Low)
	assert.Equal(t, 99.0, lim.High)

	assert.Equal(t, 0.0, lim.Normalize(-5))
	assert.Equal(t, 1.0, lim.Normalize(150))
	assert.InDelta(t, 0.5, lim.Normalize(49.5), 1e-9)

	flat := Limits{Low: 3, High: 3}
	assert.Equal(t, 1.0, flat.Normalize(3))
	assert.Equal(t, 0.0, flat.Normalize(0))
}

func TestRetardanceOrientationOverlay(t *testing.T) {
	const w, h = 4, 4
	ret := ramp(w, h)
	orient := models.NewFrame(w, h)
	orient.Set(1, 0, float32(math.Pi/3))

	v, err := NewViewer(models.NewFilledFrame(w, h, 1), ret, orient)
	require.NoError(t, err)
	v.SetLimits(Limits{0, 1}, Limits{0, 15})

	img := v.RetardanceOrientation()
	assert.Equal(t, w, img.Bounds().Dx())
	// zero retardance is black whatever the orientation
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 0))
	// full retardance at orientation 0 is pure red
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(3, 3))
	// pi/3 maps to hue 1/3
	px := img.RGBAAt(1, 0)
	assert.Equal(t, uint8(0), px.R)
	assert.Greater(t, px.G, uint8(0))
}

func TestTransmissionRetardanceOrientationOverlay(t *testing.T) {
	const w, h = 2, 1
	trans := models.NewFrame(w, h)
	trans.Pix[0], trans.Pix[1] = 1, 1
	ret := models.NewFrame(w, h)
	ret.Pix[1] = 10

	v, err := NewViewer(trans, ret, models.NewFrame(w, h))
	require.NoError(t, err)
	v.SetLimits(Limits{0, 1}, Limits{0, 10})

	img := v.TransmissionRetardanceOrientation()
	// no retardance means no saturation, so bright transmission is white
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(1, 0))
}

func TestNewViewerRejectsMismatchedShapes(t *testing.T) {
	_, err := NewViewer(models.NewFrame(2, 2), models.NewFrame(2, 2), models.NewFrame(3, 2))
	assert.Error(t, err)
}

func TestSavePreview(t *testing.T) {
	v, err := NewViewer(ramp(8, 8), ramp(8, 8), models.NewFrame(8, 8))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "preview.jpg")
	require.NoError(t, SavePreview(v.RetardanceOrientation(), path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	img, err := jpeg.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}
