// Package traversal walks an acquisition position by position, time by time
// and slice by slice, turning each coordinate's channel stack into
// birefringence outputs or background estimates.
package traversal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"polrecon/internal/models"
	"polrecon/pkg/acquisition"
	"polrecon/pkg/background"
	"polrecon/pkg/channels"
	"polrecon/pkg/logging"
	"polrecon/pkg/optics"
	"polrecon/pkg/visualization"
)

// Mode selects what a traversal does at each coordinate.
type Mode int

const (
	// SampleTraversal reconstructs and writes every selected coordinate
	SampleTraversal Mode = iota

	// BackgroundTraversal feeds slice 0 of every coordinate into the
	// fluorescence background accumulator
	BackgroundTraversal
)

func (m Mode) String() string {
	switch m {
	case SampleTraversal:
		return "sample"
	case BackgroundTraversal:
		return "background"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Output channel names.
const (
	ChannelTransmission                      = "Transmission"
	ChannelRetardance                        = "Retardance"
	ChannelOrientation                       = "Orientation"
	ChannelRetardanceOrientation             = "Retardance+Orientation"
	ChannelTransmissionRetardanceOrientation = "Transmission+Retardance+Orientation"
)

// DefaultOutputChannels returns every channel the sample traversal can
// produce, in the order they are recorded in the output metadata.
func DefaultOutputChannels() []string {
	out := []string{
		ChannelTransmission,
		ChannelRetardance,
		ChannelOrientation,
		ChannelRetardanceOrientation,
		ChannelTransmissionRetardanceOrientation,
	}
	return append(out, channels.BandNames[:]...)
}

var (
	// ErrUnknownOutputChannel is returned for output names no leaf produces.
	ErrUnknownOutputChannel = errors.New("unknown output channel")

	// ErrMissingBackground is returned when a sample traversal needs
	// background terms that were not provided.
	ErrMissingBackground = errors.New("background terms required")
)

// Config controls the sample leaf.
type Config struct {
	// BackgroundCorrection subtracts the background A and B terms
	BackgroundCorrection bool

	// FlatField divides the transmission channel by the background
	// intensity
	FlatField bool

	// OutputChannels are the channels written per coordinate; empty
	// selects DefaultOutputChannels
	OutputChannels []string

	// PreviewDir, when set, receives a JPEG of the retardance and
	// orientation overlay per coordinate
	PreviewDir string
}

// Background holds the terms the sample leaf corrects against.
type Background struct {
	// AB are the background polarization terms
	AB *optics.AB

	// IAbs is the flat field applied to the transmission channel
	IAbs *models.Frame

	// Fluor is the illumination profile per fluorescence band
	Fluor background.Bands
}

// State is the mutable progress of the running traversal.
type State struct {
	Mode Mode

	// Coord is the coordinate being processed
	Coord models.Coordinate

	// Positions counts the positions entered
	Positions int

	// Leaves counts the coordinates processed
	Leaves int

	// Written counts the image files written
	Written int

	// RetardanceMeans holds the mean retardance of every sample leaf
	RetardanceMeans []float64
}

// Engine runs traversals over one acquisition. It is not safe for
// concurrent use.
type Engine struct {
	ix         *acquisition.Index
	calc       *optics.Calculator
	blackLevel float32
	cfg        Config
	bg         *Background
	acc        *background.Accumulator
	log        *logging.Logger

	state State
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackground sets the terms used by the sample traversal.
func WithBackground(bg *Background) Option {
	return func(e *Engine) { e.bg = bg }
}

// WithAccumulator sets the accumulator fed by the background traversal.
func WithAccumulator(acc *background.Accumulator) Option {
	return func(e *Engine) { e.acc = acc }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine over ix. calc may be nil when only background
// traversals are run.
func NewEngine(ix *acquisition.Index, calc *optics.Calculator, blackLevel float32, cfg Config, opts ...Option) (*Engine, error) {
	if len(cfg.OutputChannels) == 0 {
		cfg.OutputChannels = DefaultOutputChannels()
	}
	known := map[string]bool{}
	for _, name := range DefaultOutputChannels() {
		known[name] = true
	}
	for _, name := range cfg.OutputChannels {
		if !known[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOutputChannel, name)
		}
	}

	e := &Engine{ix: ix, calc: calc, blackLevel: blackLevel, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	return e, nil
}

// State returns a snapshot of the traversal progress.
func (e *Engine) State() State {
	s := e.state
	s.RetardanceMeans = append([]float64(nil), e.state.RetardanceMeans...)
	return s
}

// Run visits every selected position, time point and slice. The first
// failing coordinate aborts the traversal.
func (e *Engine) Run(mode Mode) error {
	if err := e.check(mode); err != nil {
		return err
	}
	e.state = State{Mode: mode}

	positions := e.ix.PositionList()
	times := e.ix.TimeList()
	zs := e.ix.ZList()
	if mode == BackgroundTraversal {
		zs = []int{0}
	}
	e.log.Info("%s traversal of %s: %d positions, %d time points, %d slices",
		mode, e.ix.Name(), len(positions), len(times), len(zs))

	for p, label := range positions {
		e.state.Positions++
		e.log.Debug("position %d (%s)", p, label)
		for _, t := range times {
			for _, z := range zs {
				c := models.Coordinate{Position: p, Time: t, Z: z}
				e.state.Coord = c
				if err := e.leaf(mode, c); err != nil {
					return fmt.Errorf("%s traversal at %s (%s): %w", mode, c, label, err)
				}
				e.state.Leaves++
			}
		}
	}
	return nil
}

func (e *Engine) check(mode Mode) error {
	switch mode {
	case SampleTraversal:
		if e.calc == nil {
			return fmt.Errorf("sample traversal needs an optics calculator")
		}
		if e.cfg.BackgroundCorrection && (e.bg == nil || e.bg.AB == nil) {
			return fmt.Errorf("%w: background correction is on", ErrMissingBackground)
		}
		if e.cfg.FlatField && (e.bg == nil || e.bg.IAbs == nil) {
			return fmt.Errorf("%w: flat-field correction is on", ErrMissingBackground)
		}
	case BackgroundTraversal:
		if e.acc == nil {
			return fmt.Errorf("background traversal needs an accumulator")
		}
	default:
		return fmt.Errorf("unknown traversal mode %s", mode)
	}
	return nil
}

func (e *Engine) leaf(mode Mode, c models.Coordinate) error {
	stack, err := ReadStack(e.ix, c, e.blackLevel)
	if err != nil {
		return err
	}
	if mode == BackgroundTraversal {
		return e.acc.Add(stack.Fluor)
	}
	return e.sample(c, stack)
}

func (e *Engine) sample(c models.Coordinate, stack *channels.Stack) error {
	ab, err := e.calc.ComputeAB(stack.Pol)
	if err != nil {
		return err
	}
	if e.cfg.BackgroundCorrection {
		if err := optics.CorrectBackground(ab, e.bg.AB); err != nil {
			return err
		}
	}
	retardance, orientation, err := e.calc.ComputeDeltaPhi(ab.A, ab.B)
	if err != nil {
		return err
	}

	transmission := ab.IAbs
	if len(stack.BF) > 0 {
		transmission = stack.BF[0]
	}

	fluorBg := e.fluorBackground()
	for i, f := range stack.Fluor {
		if f.IsZero() {
			continue
		}
		if err := f.Div(fluorBg[i]); err != nil {
			return fmt.Errorf("band %s: %w", channels.BandNames[i], err)
		}
	}

	if e.cfg.FlatField {
		if err := transmission.Div(e.bg.IAbs); err != nil {
			return fmt.Errorf("flat field: %w", err)
		}
	}

	e.state.RetardanceMeans = append(e.state.RetardanceMeans, stat.Mean(retardance.Float64s(), nil))

	viewer, err := visualization.NewViewer(transmission, retardance, orientation)
	if err != nil {
		return err
	}
	return e.write(c, outputs{
		transmission: transmission,
		retardance:   retardance,
		orientation:  orientation,
		fluor:        stack.Fluor,
		viewer:       viewer,
	})
}

func (e *Engine) fluorBackground() background.Bands {
	if e.bg != nil && e.bg.Fluor[0] != nil {
		return e.bg.Fluor
	}
	return background.Uniform(e.ix.Width(), e.ix.Height())
}

type outputs struct {
	transmission *models.Frame
	retardance   *models.Frame
	orientation  *models.Frame
	fluor        [channels.NumBands]*models.Frame
	viewer       *visualization.Viewer
}

func (e *Engine) write(c models.Coordinate, out outputs) error {
	for _, name := range e.cfg.OutputChannels {
		var err error
		switch name {
		case ChannelTransmission:
			err = e.ix.WriteImage(c, name, out.transmission)
		case ChannelRetardance:
			err = e.ix.WriteImage(c, name, out.retardance)
		case ChannelOrientation:
			err = e.ix.WriteImage(c, name, out.orientation)
		case ChannelRetardanceOrientation:
			err = e.ix.WriteRGB(c, name, out.viewer.RetardanceOrientation())
		case ChannelTransmissionRetardanceOrientation:
			err = e.ix.WriteRGB(c, name, out.viewer.TransmissionRetardanceOrientation())
		default:
			band := bandIndex(name)
			if out.fluor[band].IsZero() {
				// band not acquired
				continue
			}
			err = e.ix.WriteImage(c, name, out.fluor[band])
		}
		if err != nil {
			return err
		}
		e.state.Written++
	}

	if e.cfg.PreviewDir != "" {
		if err := os.MkdirAll(e.cfg.PreviewDir, 0755); err != nil {
			return fmt.Errorf("failed to create preview directory: %w", err)
		}
		name := fmt.Sprintf("%s_t%03d_p%03d_z%03d.jpg", e.ix.Name(), c.Time, c.Position, c.Z)
		if err := visualization.SavePreview(out.viewer.RetardanceOrientation(), filepath.Join(e.cfg.PreviewDir, name)); err != nil {
			return fmt.Errorf("failed to save preview: %w", err)
		}
	}
	return nil
}

func bandIndex(name string) int {
	for i, b := range channels.BandNames {
		if b == name {
			return i
		}
	}
	return -1
}
