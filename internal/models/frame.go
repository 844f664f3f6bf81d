package models

import (
	"fmt"
	"math"
)

// Frame represents a single 2D image plane held in single precision.
// Pixels are stored row-major, so the pixel at (x, y) lives at Pix[y*Width+x].
type Frame struct {
	// Width is the number of columns in the frame
	Width int

	// Height is the number of rows in the frame
	Height int

	// Pix holds the pixel values in row-major order
	Pix []float32
}

// NewFrame allocates a zero-filled frame with the given dimensions
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// NewFilledFrame allocates a frame with every pixel set to value
func NewFilledFrame(width, height int, value float32) *Frame {
	f := NewFrame(width, height)
	f.Fill(value)
	return f
}

// At returns the pixel at column x and row y
func (f *Frame) At(x, y int) float32 {
	return f.Pix[y*f.Width+x]
}

// Set assigns the pixel at column x and row y
func (f *Frame) Set(x, y int, v float32) {
	f.Pix[y*f.Width+x] = v
}

// Fill sets every pixel to value
func (f *Frame) Fill(value float32) {
	for i := range f.Pix {
		f.Pix[i] = value
	}
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	c := &Frame{Width: f.Width, Height: f.Height, Pix: make([]float32, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// SameShape reports whether two frames have identical dimensions
func (f *Frame) SameShape(o *Frame) bool {
	return o != nil && f.Width == o.Width && f.Height == o.Height
}

// IsZero reports whether every pixel is exactly zero. An absent channel is
// represented by an all-zero frame.
func (f *Frame) IsZero() bool {
	for _, v := range f.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// SubScalar subtracts v from every pixel in place
func (f *Frame) SubScalar(v float32) {
	for i := range f.Pix {
		f.Pix[i] -= v
	}
}

// Sub subtracts o from f pixelwise in place
func (f *Frame) Sub(o *Frame) error {
	if !f.SameShape(o) {
		return shapeError(f, o)
	}
	for i := range f.Pix {
		f.Pix[i] -= o.Pix[i]
	}
	return nil
}

// Add adds o to f pixelwise in place
func (f *Frame) Add(o *Frame) error {
	if !f.SameShape(o) {
		return shapeError(f, o)
	}
	for i := range f.Pix {
		f.Pix[i] += o.Pix[i]
	}
	return nil
}

// Div divides f by o pixelwise in place
func (f *Frame) Div(o *Frame) error {
	if !f.SameShape(o) {
		return shapeError(f, o)
	}
	for i := range f.Pix {
		f.Pix[i] /= o.Pix[i]
	}
	return nil
}

// Scale multiplies every pixel by s in place
func (f *Frame) Scale(s float32) {
	for i := range f.Pix {
		f.Pix[i] *= s
	}
}

// Min replaces each pixel of f with the smaller of f and o
func (f *Frame) Min(o *Frame) error {
	if !f.SameShape(o) {
		return shapeError(f, o)
	}
	for i := range f.Pix {
		f.Pix[i] = float32(math.Min(float64(f.Pix[i]), float64(o.Pix[i])))
	}
	return nil
}

// Float64s returns the pixel values widened to float64
func (f *Frame) Float64s() []float64 {
	out := make([]float64, len(f.Pix))
	for i, v := range f.Pix {
		out[i] = float64(v)
	}
	return out
}

func shapeError(a, b *Frame) error {
	if b == nil {
		return fmt.Errorf("frame shape mismatch: %dx%d vs nil", a.Width, a.Height)
	}
	return fmt.Errorf("frame shape mismatch: %dx%d vs %dx%d", a.Width, a.Height, b.Width, b.Height)
}
