// Package imageio reads and writes the TIFF planes of an acquisition and
// bridges Frames to OpenCV matrices.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"polrecon/internal/models"
)

// ErrDecode is returned when OpenCV cannot decode a file.
var ErrDecode = errors.New("imageio: cannot decode image")

// Read loads a single-plane image as float32, keeping the raw bit depth
// values (a 16-bit pixel of 1000 reads as 1000.0, no rescaling).
func Read(path string) (*models.Frame, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	mat := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrDecode, path)
	}

	if mat.Channels() > 1 {
		gray := gocv.NewMat()
		defer gray.Close()
		code := gocv.ColorBGRToGray
		if mat.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}
		gocv.CvtColor(mat, &gray, code)
		return MatToFrame(gray)
	}
	return MatToFrame(mat)
}

// Write stores f as a single-channel 32-bit float TIFF.
func Write(path string, f *models.Frame) error {
	mat, err := FrameToMat(f)
	if err != nil {
		return err
	}
	defer mat.Close()

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

// WriteRGBA stores an RGBA raster as an 8-bit three channel image. OpenCV
// expects BGR order, so the channels are swapped and alpha dropped first.
func WriteRGBA(path string, img *image.RGBA) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	pix := img.Pix
	if img.Stride != 4*w || b.Min != (image.Point{}) {
		pix = make([]byte, 4*w*h)
		for y := 0; y < h; y++ {
			start := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[4*w*y:4*w*(y+1)], img.Pix[start:start+4*w])
		}
	}

	rgba, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return fmt.Errorf("failed to wrap RGBA raster: %w", err)
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)

	if ok := gocv.IMWrite(path, bgr); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

// FrameToMat copies f into a new CV_32F matrix. The caller owns the result
// and must Close it.
func FrameToMat(f *models.Frame) (gocv.Mat, error) {
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) != f.Width*f.Height {
		return gocv.NewMat(), fmt.Errorf("invalid frame")
	}
	mat := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV32F)
	data, err := mat.DataPtrFloat32()
	if err != nil {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("failed to access matrix data: %w", err)
	}
	copy(data, f.Pix)
	return mat, nil
}

// MatToFrame converts a single-channel matrix of any depth into a Frame.
func MatToFrame(mat gocv.Mat) (*models.Frame, error) {
	if mat.Channels() != 1 {
		return nil, fmt.Errorf("expected single channel matrix, got %d channels", mat.Channels())
	}

	f32 := mat
	if mat.Type() != gocv.MatTypeCV32F {
		f32 = gocv.NewMat()
		defer f32.Close()
		mat.ConvertTo(&f32, gocv.MatTypeCV32F)
	}

	data, err := f32.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to access matrix data: %w", err)
	}
	frame := models.NewFrame(f32.Cols(), f32.Rows())
	copy(frame.Pix, data)
	return frame, nil
}

// WriteUint16 stores f as a 16-bit unsigned TIFF, the layout cameras
// produce. Values are saturated to [0, 65535].
func WriteUint16(path string, f *models.Frame) error {
	mat, err := FrameToMat(f)
	if err != nil {
		return err
	}
	defer mat.Close()

	u16 := gocv.NewMat()
	defer u16.Close()
	mat.ConvertTo(&u16, gocv.MatTypeCV16U)

	if ok := gocv.IMWrite(path, u16); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}
