// Package optics recovers the retardance and slow-axis orientation of a
// sample from polarization-resolved intensity frames.
package optics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"polrecon/internal/models"
)

// ErrSchemeSize is returned when the number of polarization frames matches
// neither the 4-frame nor the 5-frame scheme.
var ErrSchemeSize = errors.New("optics: polarization stack must hold 4 or 5 frames")

// Params holds the acquisition settings the reconstruction depends on.
type Params struct {
	// Swing is the ellipticity of the polarization states, as a fraction of
	// the wavelength
	Swing float64

	// Wavelength is the illumination wavelength in nm
	Wavelength float64

	// FlipPol mirrors the orientation, for cameras behind an odd number of
	// reflections
	FlipPol bool
}

// AB is the normalized Stokes representation of a polarization stack.
type AB struct {
	A    *models.Frame
	B    *models.Frame
	IAbs *models.Frame
}

// Calculator converts polarization stacks into birefringence maps. The
// instrument matrix pseudo-inverses are computed once per scheme size.
type Calculator struct {
	params Params
	pinv   map[int]*mat.Dense
}

// NewCalculator builds the inverse instrument matrices for both schemes.
func NewCalculator(p Params) (*Calculator, error) {
	if p.Wavelength <= 0 {
		return nil, fmt.Errorf("wavelength must be positive, got %v", p.Wavelength)
	}
	c := &Calculator{params: p, pinv: map[int]*mat.Dense{}}
	for _, n := range []int{4, 5} {
		inv, err := pseudoInverse(InstrumentMatrix(n, p.Swing))
		if err != nil {
			return nil, fmt.Errorf("instrument matrix for %d frames at swing %v: %w", n, p.Swing, err)
		}
		c.pinv[n] = inv
	}
	return c, nil
}

// InstrumentMatrix maps a Stokes vector onto the intensities measured in
// each polarization state, rows in Stokes order. n must be 4 or 5.
func InstrumentMatrix(n int, swing float64) *mat.Dense {
	chi := 2 * math.Pi * swing
	sin, cos := math.Sin(chi), math.Cos(chi)

	if n == 5 {
		return mat.NewDense(5, 4, []float64{
			1, 0, 0, -1,
			1, sin, 0, -cos,
			1, 0, sin, -cos,
			1, -sin, 0, -cos,
			1, 0, -sin, -cos,
		})
	}
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, -1,
		1, sin, 0, -cos,
		1, -0.5 * sin, math.Sqrt(3) / 2 * sin, -cos,
		1, -0.5 * sin, -math.Sqrt(3) / 2 * sin, -cos,
	})
}

// pseudoInverse solves inst * X = I in the least-squares sense.
func pseudoInverse(inst *mat.Dense) (*mat.Dense, error) {
	r, _ := inst.Dims()
	id := mat.NewDiagDense(r, nil)
	for i := 0; i < r; i++ {
		id.SetDiag(i, 1)
	}
	var inv mat.Dense
	if err := inv.Solve(inst, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ComputeAB solves the Stokes vector per pixel and normalizes it.
func (c *Calculator) ComputeAB(pol []*models.Frame) (*AB, error) {
	inv, ok := c.pinv[len(pol)]
	if !ok {
		return nil, fmt.Errorf("%w: got %d", ErrSchemeSize, len(pol))
	}
	w, h := pol[0].Width, pol[0].Height
	for _, f := range pol[1:] {
		if !pol[0].SameShape(f) {
			return nil, fmt.Errorf("polarization frames differ in size")
		}
	}

	out := &AB{A: models.NewFrame(w, h), B: models.NewFrame(w, h), IAbs: models.NewFrame(w, h)}
	intensity := mat.NewVecDense(len(pol), nil)
	var stokes mat.VecDense
	for i := range out.A.Pix {
		for k, f := range pol {
			intensity.SetVec(k, float64(f.Pix[i]))
		}
		stokes.MulVec(inv, intensity)

		s0, s1, s2, s3 := stokes.AtVec(0), stokes.AtVec(1), stokes.AtVec(2), stokes.AtVec(3)
		out.IAbs.Pix[i] = float32(s0)
		if s3 == 0 {
			continue
		}
		out.A.Pix[i] = float32(s1 / s3)
		out.B.Pix[i] = float32(-s2 / s3)
	}
	return out, nil
}

// CorrectBackground subtracts the background terms from a sample in place.
func CorrectBackground(sample, bg *AB) error {
	if err := sample.A.Sub(bg.A); err != nil {
		return fmt.Errorf("background A: %w", err)
	}
	if err := sample.B.Sub(bg.B); err != nil {
		return fmt.Errorf("background B: %w", err)
	}
	return nil
}

// ComputeDeltaPhi returns the retardance in nm and the slow-axis
// orientation in radians within [0, pi].
func (c *Calculator) ComputeDeltaPhi(a, b *models.Frame) (retardance, orientation *models.Frame, err error) {
	if !a.SameShape(b) {
		return nil, nil, fmt.Errorf("A and B differ in size")
	}
	retardance = models.NewFrame(a.Width, a.Height)
	orientation = models.NewFrame(a.Width, a.Height)
	for i := range a.Pix {
		av, bv := float64(a.Pix[i]), float64(b.Pix[i])
		ret := math.Atan(math.Sqrt(av*av+bv*bv)) / (2 * math.Pi) * c.params.Wavelength
		retardance.Pix[i] = float32(ret)

		y := -av
		if c.params.FlipPol {
			y = av
		}
		orientation.Pix[i] = float32(0.5*math.Atan2(y, bv) + math.Pi/2)
	}
	return retardance, orientation, nil
}
