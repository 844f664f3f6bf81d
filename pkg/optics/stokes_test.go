package optics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"polrecon/internal/models"
)

// framesFor renders the intensities an ideal instrument measures for the
// Stokes vector s in every pixel.
func framesFor(n int, swing float64, s [4]float64) []*models.Frame {
	inst := InstrumentMatrix(n, swing)
	var intensity mat.VecDense
	intensity.MulVec(inst, mat.NewVecDense(4, s[:]))

	frames := make([]*models.Frame, n)
	for k := range frames {
		frames[k] = models.NewFilledFrame(3, 2, float32(intensity.AtVec(k)))
	}
	return frames
}

func TestComputeABRecoversStokes(t *testing.T) {
	calc, err := NewCalculator(Params{Swing: 0.03, Wavelength: 532})
	require.NoError(t, err)

	s := [4]float64{1, 0.1, -0.2, 0.9}
	for _, n := range []int{4, 5} {
		ab, err := calc.ComputeAB(framesFor(n, 0.03, s))
		require.NoError(t, err)
		assert.InDelta(t, s[1]/s[3], ab.A.Pix[0], 1e-4, "%d frames A", n)
		assert.InDelta(t, -s[2]/s[3], ab.B.Pix[5], 1e-4, "%d frames B", n)
		assert.InDelta(t, s[0], ab.IAbs.Pix[3], 1e-4, "%d frames IAbs", n)
	}
}

func TestComputeABSchemeSize(t *testing.T) {
	calc, err := NewCalculator(Params{Swing: 0.1, Wavelength: 532})
	require.NoError(t, err)

	_, err = calc.ComputeAB(make([]*models.Frame, 3))
	assert.ErrorIs(t, err, ErrSchemeSize)

	pol := framesFor(4, 0.1, [4]float64{1, 0, 0, 1})
	pol[2] = models.NewFrame(2, 2)
	_, err = calc.ComputeAB(pol)
	assert.Error(t, err)
}

func TestNewCalculatorRejectsDegenerateSettings(t *testing.T) {
	_, err := NewCalculator(Params{Swing: 0, Wavelength: 532})
	assert.Error(t, err, "zero swing makes the instrument matrix singular")

	_, err = NewCalculator(Params{Swing: 0.1})
	assert.Error(t, err)
}

func TestCorrectBackground(t *testing.T) {
	sample := &AB{A: models.NewFilledFrame(2, 2, 0.5), B: models.NewFilledFrame(2, 2, 0.25)}
	bg := &AB{A: models.NewFilledFrame(2, 2, 0.5), B: models.NewFilledFrame(2, 2, 0.5)}
	require.NoError(t, CorrectBackground(sample, bg))
	assert.Equal(t, float32(0), sample.A.Pix[0])
	assert.Equal(t, float32(-0.25), sample.B.Pix[3])

	assert.Error(t, CorrectBackground(sample, &AB{A: models.NewFrame(1, 1), B: models.NewFrame(1, 1)}))
}

func TestComputeDeltaPhi(t *testing.T) {
	calc, err := NewCalculator(Params{Swing: 0.1, Wavelength: 500})
	require.NoError(t, err)

	a := models.NewFrame(2, 1)
	b := models.NewFrame(2, 1)
	// pixel 1: A = 0, B = 1
	b.Pix[1] = 1

	ret, orient, err := calc.ComputeDeltaPhi(a, b)
	require.NoError(t, err)
	assert.Equal(t, float32(0), ret.Pix[0])
	assert.InDelta(t, math.Atan(1)/(2*math.Pi)*500, ret.Pix[1], 1e-3)
	assert.InDelta(t, math.Pi/2, orient.Pix[1], 1e-6)

	// A = 1, B = 0 lands on opposite sides depending on flip
	a.Pix[0], b.Pix[0] = 1, 0
	_, orient, err = calc.ComputeDeltaPhi(a, b)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/4, orient.Pix[0], 1e-6)

	flipped, err := NewCalculator(Params{Swing: 0.1, Wavelength: 500, FlipPol: true})
	require.NoError(t, err)
	_, orient, err = flipped.ComputeDeltaPhi(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 3*math.Pi/4, orient.Pix[0], 1e-6)
}

func TestBackgroundCancelsSampleOfItself(t *testing.T) {
	calc, err := NewCalculator(Params{Swing: 0.05, Wavelength: 532})
	require.NoError(t, err)

	pol := framesFor(4, 0.05, [4]float64{2, 0.3, 0.1, 1.5})
	sample, err := calc.ComputeAB(pol)
	require.NoError(t, err)
	bg, err := calc.ComputeAB(pol)
	require.NoError(t, err)

	require.NoError(t, CorrectBackground(sample, bg))
	ret, _, err := calc.ComputeDeltaPhi(sample.A, sample.B)
	require.NoError(t, err)
	for _, v := range ret.Pix {
		assert.InDelta(t, 0, v, 1e-5)
	}
}
