// Package acquisition provides the normalized view over one MicroManager
// acquisition folder: cardinalities, position/time/z selections, file name
// resolution and image input/output.
//
// An Index is not safe for concurrent use; each traversal owns its own.
package acquisition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"polrecon/internal/models"
	"polrecon/pkg/imageio"
	"polrecon/pkg/logging"
	"polrecon/pkg/metadata"
)

// DefaultPositionLabel is the folder MicroManager 2.0 uses for single
// position acquisitions.
const DefaultPositionLabel = "Default"

// Index is the normalized, addressable view over one acquisition folder.
type Index struct {
	// root is the acquisition folder (parent of the position folders)
	root string

	// posPath is the folder the metadata was read from
	posPath string

	summary *metadata.Summary
	scheme  NamingScheme

	metaPositions []string
	positions     []string
	times         []int
	zs            []int

	inputChannels  []string
	outputDir      string
	outputChannels []string

	listings map[string][]string

	log *logging.Logger
}

// Option configures an Index at Open time.
type Option func(*Index)

// WithOutputDir sets the folder written by WriteImage and WriteMetadata.
func WithOutputDir(dir string) Option {
	return func(ix *Index) { ix.outputDir = dir }
}

// WithOutputChannels sets the channel names recorded in the output metadata.
func WithOutputChannels(names []string) Option {
	return func(ix *Index) { ix.outputChannels = append([]string(nil), names...) }
}

// WithLogger attaches a logger.
func WithLogger(l *logging.Logger) Option {
	return func(ix *Index) { ix.log = l }
}

// Open resolves the image folder under root, parses its metadata and detects
// the file naming scheme.
func Open(root string, opts ...Option) (*Index, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingAcquisitionPath, root)
	}

	ix := &Index{root: root, posPath: root, listings: map[string][]string{}}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.log == nil {
		ix.log = logging.Discard()
	}

	subDirs, err := subDirNames(root)
	if err != nil {
		return nil, err
	}
	var synthesized []string
	if len(subDirs) > 0 {
		dir := pickPositionDir(subDirs)
		ix.posPath = filepath.Join(root, dir)
		if len(subDirs) == 1 && dir == DefaultPositionLabel {
			// single position data carries no position list in its metadata
			synthesized = []string{DefaultPositionLabel}
		}
	}
	ix.log.Debug("sample path = %s", ix.posPath)

	ix.summary, err = metadata.ReadSummaryFile(filepath.Join(ix.posPath, metadata.FileName))
	if err != nil {
		return nil, err
	}
	ix.log.Debug("MicroManager version = %s (%s)", ix.summary.Version, ix.summary.Format)

	ix.metaPositions = ix.summary.PositionList
	if synthesized != nil {
		ix.metaPositions = synthesized
	}
	ix.positions = append([]string(nil), ix.metaPositions...)
	ix.times = ix.summary.MetaTimeList()
	ix.zs = ix.summary.MetaZList()
	ix.inputChannels = append([]string(nil), ix.summary.ChannelNames...)

	names, err := ix.listing(ix.posPath)
	if err != nil {
		return nil, err
	}
	first := ""
	if len(names) > 0 {
		first = names[0]
	}
	if ix.scheme, err = DetectNamingScheme(ix.summary.Format, first); err != nil {
		return nil, err
	}
	ix.log.Debug("image name format = %s", ix.scheme)

	if ix.scheme == SchemeCanonical {
		// reconstructed folders index positions by the table, not the
		// metadata copied from their source
		labels, err := positionsFromTable(filepath.Join(ix.posPath, PositionTableName))
		if err != nil {
			return nil, err
		}
		if labels != nil {
			ix.metaPositions = labels
			ix.positions = append([]string(nil), labels...)
		}
	}

	return ix, nil
}

// pickPositionDir applies the folder precedence: a Pos# folder, then a lone
// Default folder, then whatever comes first.
func pickPositionDir(subDirs []string) string {
	for _, d := range subDirs {
		if strings.Contains(d, "Pos") {
			return d
		}
	}
	return subDirs[0]
}

func subDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// listing returns the sorted .tif names in dir. Listings are cached for the
// lifetime of the Index since input folders are not modified while read.
func (ix *Index) listing(dir string) ([]string, error) {
	if names, ok := ix.listings[dir]; ok {
		return names, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".tif") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	ix.listings[dir] = names
	return names, nil
}

// Summary returns the parsed acquisition summary.
func (ix *Index) Summary() *metadata.Summary { return ix.summary }

// Scheme returns the naming scheme detected at Open.
func (ix *Index) Scheme() NamingScheme { return ix.scheme }

// Name returns the acquisition prefix name.
func (ix *Index) Name() string { return ix.summary.Prefix }

// Width and Height are the image dimensions from the summary.
func (ix *Index) Width() int  { return ix.summary.Width }
func (ix *Index) Height() int { return ix.summary.Height }

// NumPositions, NumTimes, NumSlices and NumChannels are the metadata
// cardinalities, independent of any selection.
func (ix *Index) NumPositions() int { return ix.summary.Positions }
func (ix *Index) NumTimes() int     { return ix.summary.Frames }
func (ix *Index) NumSlices() int    { return ix.summary.Slices }
func (ix *Index) NumChannels() int  { return len(ix.summary.ChannelNames) }

// OutputDir returns the output folder.
func (ix *Index) OutputDir() string { return ix.outputDir }

// PositionDir returns the folder holding the images of the position at index
// p of the active position list. Acquisitions stored flat fall back to the
// folder the metadata was found in.
func (ix *Index) PositionDir(p int) (string, error) {
	if p < 0 || p >= len(ix.positions) {
		return "", fmt.Errorf("position index %d out of range [0,%d)", p, len(ix.positions))
	}
	candidate := filepath.Join(ix.root, ix.positions[p])
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	return ix.posPath, nil
}

// Listing returns the sorted .tif names of position p.
func (ix *Index) Listing(p int) ([]string, error) {
	dir, err := ix.PositionDir(p)
	if err != nil {
		return nil, err
	}
	return ix.listing(dir)
}

// ChannelName returns the name of input channel c.
func (ix *Index) ChannelName(c int) (string, error) {
	if c < 0 || c >= len(ix.inputChannels) {
		return "", fmt.Errorf("channel index %d out of range [0,%d)", c, len(ix.inputChannels))
	}
	return ix.inputChannels[c], nil
}

// Resolve maps a coordinate onto a file name under the active scheme.
func (ix *Index) Resolve(c models.Coordinate) (Resolution, error) {
	name, err := ix.ChannelName(c.Channel)
	if err != nil {
		return Resolution{}, err
	}
	req := NameRequest{Coord: c, ChannelName: name, ChannelIndex: indexOf(ix.summary.ChannelNames, name)}

	var listing []string
	if ix.scheme == SchemePositionSearch {
		if listing, err = ix.Listing(c.Position); err != nil {
			return Resolution{}, err
		}
	}

	res, err := ResolveName(ix.scheme, req, listing)
	if err != nil {
		return Resolution{}, err
	}
	switch {
	case res.Status == Guessed:
		ix.log.Warn("no file matches channel %q at %s, guessing file name = %s", name, c, res.Name)
	case ix.scheme == SchemePositionSearch && countMatches(req, listing) > 1:
		ix.log.Warn("several files match channel %q at %s, using %s", name, c, res.Name)
	}
	return res, nil
}

// ReadImage reads the plane at c as float32 without rescaling.
func (ix *Index) ReadImage(c models.Coordinate) (*models.Frame, Resolution, error) {
	res, err := ix.Resolve(c)
	if err != nil {
		return nil, res, err
	}
	f, err := ix.ReadFile(c.Position, res.Name)
	return f, res, err
}

// ReadFile reads a named image from the folder of position p.
func (ix *Index) ReadFile(p int, name string) (*models.Frame, error) {
	dir, err := ix.PositionDir(p)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)
	f, err := imageio.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

func indexOf(list []string, v string) int {
	for i, e := range list {
		if e == v {
			return i
		}
	}
	return -1
}
