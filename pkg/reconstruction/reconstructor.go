// Package reconstruction runs the per-sample birefringence pipeline: find the
// background terms, optionally estimate the illumination profile, then
// reconstruct and write every selected coordinate.
package reconstruction

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"polrecon/internal/models"
	"polrecon/pkg/acquisition"
	"polrecon/pkg/background"
	"polrecon/pkg/config"
	"polrecon/pkg/logging"
	"polrecon/pkg/optics"
	"polrecon/pkg/traversal"
)

// RunIDKey is the summary key recording which run produced an output folder.
const RunIDKey = "ReconstructionRunID"

// ErrNoBackground is returned when neither the parameters nor the sample
// metadata name a background acquisition.
var ErrNoBackground = errors.New("no background acquisition")

// ErrNoPolSettings is returned when the background metadata lacks the
// PolAcquisition settings the optics need.
var ErrNoPolSettings = errors.New("background has no polarization settings")

// Params holds the reconstruction parameters.
type Params struct {
	// DataDir is the folder containing the sample and background
	// acquisitions.
	DataDir string

	// ProcessedDir receives one output folder per sample, named after the
	// sample.
	ProcessedDir string

	// Samples are the acquisition folder names to reconstruct.
	Samples []string

	// Background is the background acquisition folder name. When empty the
	// background recorded in each sample's metadata is used.
	Background string

	// Positions, Timepoints and ZSlices are per-sample selection tokens,
	// indexed like Samples. Missing entries select everything.
	Positions  [][]string
	Timepoints [][]string
	ZSlices    [][]string

	// OutputChannels are the channels written per coordinate. Empty selects
	// every channel.
	OutputChannels []string

	// BackgroundCorrection subtracts the background polarization terms.
	BackgroundCorrection bool

	// FlatField normalizes transmission and fluorescence by the
	// illumination profile.
	FlatField bool

	// FlatFieldMethod selects the fluorescence profile estimate.
	FlatFieldMethod background.Method

	// KernelSize is the diameter of the opening kernel in pixels.
	KernelSize int

	// FlipPol mirrors the orientation map. Backgrounds recorded with
	// mirroring on flip it as well.
	FlipPol bool

	// SavePreviews writes JPEG overlays into a "<sample>_previews" folder
	// beside the sample's output folder.
	SavePreviews bool
}

// ParamsFromConfig maps a validated configuration onto pipeline parameters.
func ParamsFromConfig(cfg *config.Config) (*Params, error) {
	method, err := background.ParseMethod(cfg.Processing.FlatFieldMethod)
	if err != nil {
		return nil, err
	}
	return &Params{
		DataDir:              cfg.Dataset.DataDir,
		ProcessedDir:         cfg.Dataset.ProcessedDir,
		Samples:              cfg.Dataset.Samples,
		Background:           cfg.Dataset.Background,
		Positions:            cfg.Dataset.Positions,
		Timepoints:           cfg.Dataset.Timepoints,
		ZSlices:              cfg.Dataset.ZSlices,
		OutputChannels:       cfg.Processing.OutputChannels,
		BackgroundCorrection: cfg.Processing.BackgroundCorrection,
		FlatField:            cfg.Processing.FlatFieldCorrection,
		FlatFieldMethod:      method,
		KernelSize:           cfg.Processing.KernelSize,
		FlipPol:              cfg.Processing.FlipPol,
		SavePreviews:         cfg.Processing.SavePreviews,
	}, nil
}

// SampleMetrics summarizes the reconstruction of one sample.
type SampleMetrics struct {
	// Sample is the acquisition folder name
	Sample string

	// OutputDir is where the sample's outputs were written
	OutputDir string

	// Positions, Leaves and Written count the positions visited, the
	// coordinates reconstructed and the image files written
	Positions int
	Leaves    int
	Written   int

	// MeanRetardance and StdRetardance describe the per-coordinate mean
	// retardance in nm across the sample
	MeanRetardance float64
	StdRetardance  float64

	// Duration is the wall time spent on the sample
	Duration time.Duration
}

// Reconstructor runs the pipeline over every configured sample.
//
// The process for each sample consists of:
// 1. Opening the sample and applying its selections
// 2. Reading the background acquisition and computing its polarization terms
// 3. Estimating the illumination profile when flat-field correction is on
// 4. Reconstructing every selected coordinate
// 5. Writing the output metadata and position table
type Reconstructor struct {
	// params stores the reconstruction configuration
	params *Params

	// runID identifies this run in every output folder
	runID string

	log *logging.Logger

	// metrics holds one entry per processed sample
	metrics []SampleMetrics
}

// NewReconstructor creates a new reconstructor instance with the provided
// parameters. A nil logger discards output.
func NewReconstructor(params *Params, log *logging.Logger) *Reconstructor {
	if log == nil {
		log = logging.Discard()
	}
	return &Reconstructor{
		params: params,
		runID:  uuid.NewString(),
		log:    log.Named("reconstruction"),
	}
}

// RunID returns the identifier written into every output metadata file.
func (r *Reconstructor) RunID() string { return r.runID }

// GetMetrics returns the metrics of the samples processed so far.
func (r *Reconstructor) GetMetrics() []SampleMetrics {
	return append([]SampleMetrics(nil), r.metrics...)
}

// Process runs the complete pipeline for every sample. Processing stops at
// the first failing sample.
func (r *Reconstructor) Process() error {
	r.log.Info("run %s: %d samples", r.runID, len(r.params.Samples))
	for i, sample := range r.params.Samples {
		m, err := r.processSample(i, sample)
		if err != nil {
			return fmt.Errorf("sample %s: %w", sample, err)
		}
		r.metrics = append(r.metrics, m)
	}
	return nil
}

func (r *Reconstructor) processSample(i int, sample string) (SampleMetrics, error) {
	start := time.Now()
	log := r.log.Named(sample)
	m := SampleMetrics{Sample: sample, OutputDir: filepath.Join(r.params.ProcessedDir, sample)}

	// Step 1: Open the sample and apply the selections
	log.Info("Step 1: Opening sample...")
	ix, err := acquisition.Open(filepath.Join(r.params.DataDir, sample),
		acquisition.WithOutputDir(m.OutputDir),
		acquisition.WithOutputChannels(r.outputChannels()),
		acquisition.WithLogger(log.Named("acquisition")))
	if err != nil {
		return m, err
	}
	if err := r.applySelections(ix, i); err != nil {
		return m, err
	}

	// Steps 2 and 3: Background terms and illumination profile
	log.Info("Step 2: Finding background...")
	bg, err := r.FindBackground(ix)
	if err != nil {
		return m, fmt.Errorf("failed to find background: %w", err)
	}

	// Step 4: Reconstruct every selected coordinate
	log.Info("Step 4: Reconstructing %d positions...", len(ix.PositionList()))
	cfg := traversal.Config{
		BackgroundCorrection: r.params.BackgroundCorrection,
		FlatField:            r.params.FlatField,
		OutputChannels:       r.params.OutputChannels,
	}
	if r.params.SavePreviews {
		cfg.PreviewDir = m.OutputDir + "_previews"
	}
	engine, err := traversal.NewEngine(ix, bg.Calc, bg.BlackLevel, cfg,
		traversal.WithBackground(bg.Terms), traversal.WithLogger(log.Named("traversal")))
	if err != nil {
		return m, err
	}
	if err := engine.Run(traversal.SampleTraversal); err != nil {
		return m, err
	}

	// Step 5: Metadata and position table
	log.Info("Step 5: Writing metadata...")
	if err := ix.WriteMetadata(map[string]any{RunIDKey: r.runID}); err != nil {
		return m, fmt.Errorf("failed to write metadata: %w", err)
	}

	state := engine.State()
	m.Positions, m.Leaves, m.Written = state.Positions, state.Leaves, state.Written
	switch means := state.RetardanceMeans; {
	case len(means) == 1:
		m.MeanRetardance = means[0]
	case len(means) > 1:
		m.MeanRetardance, m.StdRetardance = stat.MeanStdDev(means, nil)
	}
	m.Duration = time.Since(start)
	log.Info("done: %d coordinates, %d files, mean retardance %.3f nm", m.Leaves, m.Written, m.MeanRetardance)
	return m, nil
}

func (r *Reconstructor) outputChannels() []string {
	if len(r.params.OutputChannels) > 0 {
		return r.params.OutputChannels
	}
	return traversal.DefaultOutputChannels()
}

func (r *Reconstructor) applySelections(ix *acquisition.Index, i int) error {
	dataset := config.DatasetConfig{
		Positions:  r.params.Positions,
		Timepoints: r.params.Timepoints,
		ZSlices:    r.params.ZSlices,
	}
	positions, times, zs := dataset.Selection(i)
	if err := ix.SelectPositions(positions); err != nil {
		return err
	}
	if err := ix.SelectTimes(times); err != nil {
		return err
	}
	return ix.SelectZ(zs)
}

// BackgroundTerms carries everything the sample traversal needs from the
// background acquisition.
type BackgroundTerms struct {
	// Calc is built from the background's PolAcquisition settings
	Calc *optics.Calculator

	// BlackLevel is the camera offset removed from every frame
	BlackLevel float32

	// Terms are the polarization terms and illumination profiles
	Terms *traversal.Background
}

// FindBackground reads the background acquisition at its first coordinate,
// builds the optics from its PolAcquisition settings and computes the
// background terms. With flat-field correction on, the fluorescence profile
// is estimated from a background traversal over the sample itself;
// otherwise every profile is uniform.
func (r *Reconstructor) FindBackground(sample *acquisition.Index) (*BackgroundTerms, error) {
	name := r.params.Background
	if name == "" {
		name = sample.Summary().Pol.Background
	}
	if name == "" {
		return nil, ErrNoBackground
	}

	bgIx, err := acquisition.Open(filepath.Join(r.params.DataDir, name), acquisition.WithLogger(r.log.Named("background")))
	if err != nil {
		return nil, err
	}
	pol := bgIx.Summary().Pol
	if !pol.Present {
		return nil, fmt.Errorf("%w: %s", ErrNoPolSettings, name)
	}
	r.log.Debug("background %s: scheme %s, swing %v, wavelength %v nm, black level %v",
		name, pol.Scheme, pol.Swing, pol.WavelengthN, pol.BlackLevel)

	calc, err := optics.NewCalculator(optics.Params{
		Swing:      pol.Swing,
		Wavelength: pol.WavelengthN,
		FlipPol:    r.params.FlipPol || pol.Mirror == "Yes",
	})
	if err != nil {
		return nil, err
	}
	res := &BackgroundTerms{Calc: calc, BlackLevel: float32(pol.BlackLevel)}

	stack, err := traversal.ReadStack(bgIx, models.Coordinate{}, res.BlackLevel)
	if err != nil {
		return nil, err
	}
	ab, err := calc.ComputeAB(stack.Pol)
	if err != nil {
		return nil, err
	}
	res.Terms = &traversal.Background{AB: ab}

	w, h := sample.Width(), sample.Height()
	if !r.params.FlatField {
		res.Terms.IAbs = background.Ones(w, h)
		res.Terms.Fluor = background.Uniform(w, h)
		return res, nil
	}

	r.log.Info("Step 3: Estimating flat field (%s)...", r.params.FlatFieldMethod)
	res.Terms.IAbs = ab.IAbs.Clone()
	acc := background.NewAccumulator(w, h, r.params.KernelSize)
	defer acc.Close()
	engine, err := traversal.NewEngine(sample, nil, res.BlackLevel, traversal.Config{},
		traversal.WithAccumulator(acc), traversal.WithLogger(r.log.Named("traversal")))
	if err != nil {
		return nil, err
	}
	if err := engine.Run(traversal.BackgroundTraversal); err != nil {
		return nil, err
	}
	if res.Terms.Fluor, err = acc.Estimate(r.params.FlatFieldMethod); err != nil {
		return nil, err
	}
	return res, nil
}
