package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"polrecon/internal/models"
)

func rampFrame(w, h int) *models.Frame {
	f := models.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, float32(1000+y*w+x))
		}
	}
	return f
}

func TestUint16PreservesBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.tif")
	want := rampFrame(8, 6)
	require.NoError(t, WriteUint16(path, want))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, want.Width, got.Width)
	assert.Equal(t, want.Height, got.Height)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestFloatRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.tif")
	want := rampFrame(5, 4)
	want.Set(2, 2, -0.125)
	require.NoError(t, Write(path, want))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.tif"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRGBASwapsToBGR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.tif")
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 10, A: 255})
		}
	}
	require.NoError(t, WriteRGBA(path, img))

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()
	require.False(t, mat.Empty())
	assert.Equal(t, 3, mat.Channels())
	v := mat.GetVecbAt(0, 0)
	assert.Equal(t, []uint8{10, 100, 200}, []uint8(v))
}

func TestFrameToMatRejectsBadFrame(t *testing.T) {
	_, err := FrameToMat(&models.Frame{Width: 2, Height: 2, Pix: make([]float32, 3)})
	assert.Error(t, err)
}
