// Package background estimates the fluorescence illumination profile from a
// sweep over background positions.
package background

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"polrecon/internal/models"
	"polrecon/pkg/channels"
	"polrecon/pkg/imageio"
)

// DefaultKernelSize is the diameter of the elliptical opening kernel.
const DefaultKernelSize = 100

// Method selects the estimate used for flat-field correction.
type Method string

const (
	// MethodOpen averages the morphological openings of every position
	MethodOpen Method = "open"

	// MethodEmpty takes the pixelwise minimum over every position
	MethodEmpty Method = "empty"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodOpen, MethodEmpty:
		return Method(s), nil
	case "":
		return MethodOpen, nil
	default:
		return "", fmt.Errorf("unknown flat-field method %q", s)
	}
}

// Bands is one frame per fluorescence band.
type Bands = [channels.NumBands]*models.Frame

// Accumulator keeps a running sum of openings and a running minimum per
// fluorescence band. Estimates are only meaningful once every background
// position has been added.
type Accumulator struct {
	width, height int
	kernel        gocv.Mat

	sum     Bands
	min     Bands
	visited int
}

// NewAccumulator creates an accumulator for frames of the given size. A
// kernelSize of zero or less selects DefaultKernelSize. Close must be called
// to release the kernel.
func NewAccumulator(width, height, kernelSize int) *Accumulator {
	if kernelSize <= 0 {
		kernelSize = DefaultKernelSize
	}
	return &Accumulator{
		width:  width,
		height: height,
		kernel: gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(kernelSize, kernelSize)),
	}
}

// Close releases the OpenCV kernel.
func (a *Accumulator) Close() error {
	return a.kernel.Close()
}

// Visited returns the number of positions added so far.
func (a *Accumulator) Visited() int { return a.visited }

// Add folds the fluorescence bands of one position into the estimates.
// All-zero bands are absent and leave their estimates untouched.
func (a *Accumulator) Add(bands Bands) error {
	for i, f := range bands {
		if f == nil || f.IsZero() {
			continue
		}
		if f.Width != a.width || f.Height != a.height {
			return fmt.Errorf("band %s is %dx%d, expected %dx%d", channels.BandNames[i], f.Width, f.Height, a.width, a.height)
		}

		opened, err := a.open(f)
		if err != nil {
			return fmt.Errorf("failed to open band %s: %w", channels.BandNames[i], err)
		}
		if a.sum[i] == nil {
			a.sum[i] = opened
			a.min[i] = f.Clone()
			continue
		}
		if err := a.sum[i].Add(opened); err != nil {
			return err
		}
		if err := a.min[i].Min(f); err != nil {
			return err
		}
	}
	a.visited++
	return nil
}

// open applies a morphological opening with replicated borders.
func (a *Accumulator) open(f *models.Frame) (*models.Frame, error) {
	src, err := imageio.FrameToMat(f)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MorphologyExWithParams(src, &dst, gocv.MorphOpen, a.kernel, 1, gocv.BorderReplicate)
	return imageio.MatToFrame(dst)
}

// Open returns the mean opening per band. Bands never observed are uniform
// ones so dividing by them is a no-op.
func (a *Accumulator) Open() Bands {
	var out Bands
	for i := range out {
		if a.sum[i] == nil || a.visited == 0 {
			out[i] = Ones(a.width, a.height)
			continue
		}
		out[i] = a.sum[i].Clone()
		out[i].Scale(1 / float32(a.visited))
	}
	return out
}

// Empty returns the pixelwise minimum per band, ones where never observed.
func (a *Accumulator) Empty() Bands {
	var out Bands
	for i := range out {
		if a.min[i] == nil {
			out[i] = Ones(a.width, a.height)
			continue
		}
		out[i] = a.min[i].Clone()
	}
	return out
}

// Estimate returns the estimate selected by m.
func (a *Accumulator) Estimate(m Method) (Bands, error) {
	switch m {
	case MethodOpen:
		return a.Open(), nil
	case MethodEmpty:
		return a.Empty(), nil
	default:
		return Bands{}, fmt.Errorf("unknown flat-field method %q", m)
	}
}

// Ones returns a uniform field for one band.
func Ones(width, height int) *models.Frame {
	return models.NewFilledFrame(width, height, 1)
}

// Uniform returns uniform fields for every band, used when flat-field
// correction is disabled.
func Uniform(width, height int) Bands {
	var out Bands
	for i := range out {
		out[i] = Ones(width, height)
	}
	return out
}
