package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"polrecon/internal/models"
)

// Default contrast quantiles used when stretching a channel for display.
const (
	DefaultLowQuantile  = 0.01
	DefaultHighQuantile = 0.99
)

// Limits is the value range mapped onto [0, 1] for display.
type Limits struct {
	Low  float64
	High float64
}

// QuantileLimits returns the lo and hi empirical quantiles of f.
func QuantileLimits(f *models.Frame, lo, hi float64) Limits {
	values := f.Float64s()
	if len(values) == 0 {
		return Limits{}
	}
	sort.Float64s(values)
	return Limits{
		Low:  stat.Quantile(lo, stat.Empirical, values, nil),
		High: stat.Quantile(hi, stat.Empirical, values, nil),
	}
}

// Normalize maps v into [0, 1] using the limits, clipping outside values.
// A degenerate range maps positive values to 1.
func (l Limits) Normalize(v float64) float64 {
	span := l.High - l.Low
	if span <= 0 {
		if v > 0 {
			return 1
		}
		return 0
	}
	return math.Max(0, math.Min(1, (v-l.Low)/span))
}

// Viewer renders birefringence maps as colour overlays where hue encodes the
// slow-axis orientation.
type Viewer struct {
	// transmission is the brightfield intensity
	transmission *models.Frame

	// retardance is the retardance in nm
	retardance *models.Frame

	// orientation is the slow-axis angle in radians within [0, pi]
	orientation *models.Frame

	transLimits Limits
	retLimits   Limits
}

// NewViewer creates a viewer over one coordinate's maps. Contrast limits
// default to the 1st and 99th percentiles of each channel.
func NewViewer(transmission, retardance, orientation *models.Frame) (*Viewer, error) {
	if !retardance.SameShape(orientation) || !retardance.SameShape(transmission) {
		return nil, fmt.Errorf("overlay channels differ in size")
	}
	return &Viewer{
		transmission: transmission,
		retardance:   retardance,
		orientation:  orientation,
		transLimits:  QuantileLimits(transmission, DefaultLowQuantile, DefaultHighQuantile),
		retLimits:    QuantileLimits(retardance, DefaultLowQuantile, DefaultHighQuantile),
	}, nil
}

// SetLimits overrides the contrast limits.
func (v *Viewer) SetLimits(transmission, retardance Limits) {
	v.transLimits = transmission
	v.retLimits = retardance
}

// RetardanceOrientation renders hue = orientation, value = retardance.
func (v *Viewer) RetardanceOrientation() *image.RGBA {
	return v.render(func(i int) (float64, float64) {
		return 1, v.retLimits.Normalize(float64(v.retardance.Pix[i]))
	})
}

// TransmissionRetardanceOrientation renders hue = orientation,
// saturation = retardance, value = transmission.
func (v *Viewer) TransmissionRetardanceOrientation() *image.RGBA {
	return v.render(func(i int) (float64, float64) {
		return v.retLimits.Normalize(float64(v.retardance.Pix[i])),
			v.transLimits.Normalize(float64(v.transmission.Pix[i]))
	})
}

func (v *Viewer) render(satVal func(i int) (float64, float64)) *image.RGBA {
	w, h := v.orientation.Width, v.orientation.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			hue := float64(v.orientation.Pix[i]) / math.Pi
			s, val := satVal(i)
			img.SetRGBA(x, y, HSVToRGBA(hue, s, val))
		}
	}
	return img
}

// HSVToRGBA converts hue, saturation and value in [0, 1] to an opaque
// colour. Hue wraps, so 0 and 1 are both red.
func HSVToRGBA(h, s, v float64) color.RGBA {
	h = h - math.Floor(h)
	sector := h * 6
	i := math.Floor(sector)
	f := sector - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 255}
}

func to8(c float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, c)) * 255))
}

// SavePreview saves an overlay as a JPEG image
func SavePreview(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}
