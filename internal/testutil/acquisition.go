// Package testutil builds synthetic MicroManager acquisitions on disk for
// package tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"polrecon/internal/models"
	"polrecon/pkg/imageio"
	"polrecon/pkg/metadata"
)

// Layout describes the summary of a synthetic acquisition.
type Layout struct {
	Version   string
	Channels  []string
	Positions []string
	Frames    int
	Slices    int
	Width     int
	Height    int
	Prefix    string

	// Pol settings; BlackLevel, Swing and Wavelength are written only when
	// Scheme is set
	Scheme     string
	Background string
	BlackLevel float64
	Swing      float64
	Wavelength float64
}

// Summary renders the layout as a raw Summary object in the key layout of
// its version.
func (l Layout) Summary() map[string]any {
	chNames := make([]any, len(l.Channels))
	for i, c := range l.Channels {
		chNames[i] = c
	}
	var posList []any
	for _, p := range l.Positions {
		posList = append(posList, map[string]any{"Label": p})
	}

	s := map[string]any{
		"MicroManagerVersion": l.Version,
		"ChNames":             chNames,
		"Channels":            float64(len(l.Channels)),
		"Positions":           float64(max(len(l.Positions), 1)),
		"Frames":              float64(l.Frames),
		"Slices":              float64(l.Slices),
		"z-step_um":           1.0,
		"Prefix":              l.Prefix,
	}

	switch format, _ := metadata.DetectFormat(l.Version); format {
	case metadata.Format1_4_22:
		s["Width"] = float64(l.Width)
		s["Height"] = float64(l.Height)
		s["Time"] = "2019-06-12 14:10:02 -0700"
		if posList != nil {
			s["InitialPositionList"] = posList
		}
	default:
		leaf := "scalar"
		if format == metadata.Format2_0Beta {
			leaf = "PropVal"
		}
		s["UserData"] = map[string]any{
			"Width":  map[string]any{leaf: float64(l.Width)},
			"Height": map[string]any{leaf: float64(l.Height)},
		}
		s["StartTime"] = "2020-01-01 10:00:00.000 -0800"
		if posList != nil {
			s["StagePositions"] = posList
		}
	}

	if l.Scheme != "" {
		s["~ Acquired Using"] = l.Scheme
		s["~ Background"] = l.Background
		s["~ BlackLevel"] = l.BlackLevel
		s["~ Mirror"] = "No"
		s["~ Swing (fraction)"] = l.Swing
		s["~ Wavelength (nm)"] = l.Wavelength
	}
	return s
}

// WriteSummary writes metadata.txt for the layout into dir.
func WriteSummary(t *testing.T, dir string, l Layout) {
	t.Helper()
	MkdirAll(t, dir)
	doc := map[string]any{"Summary": l.Summary()}
	if err := metadata.WriteDocument(filepath.Join(dir, metadata.FileName), doc); err != nil {
		t.Fatalf("failed to write metadata: %v", err)
	}
}

// WriteConstImage writes a 16-bit image filled with value.
func WriteConstImage(t *testing.T, path string, w, h int, value float32) {
	t.Helper()
	WriteImage(t, path, models.NewFilledFrame(w, h, value))
}

// WriteImage writes f as a 16-bit image, creating parent folders.
func WriteImage(t *testing.T, path string, f *models.Frame) {
	t.Helper()
	MkdirAll(t, filepath.Dir(path))
	if err := imageio.WriteUint16(path, f); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// Touch creates an empty file, for tests that only look at names.
func Touch(t *testing.T, path string) {
	t.Helper()
	MkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

// MkdirAll creates dir and its parents.
func MkdirAll(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
}

// WriteLegacyAcquisition writes metadata and one constant 16-bit plane per
// channel for every position of l at time 0 and slice 0, named in the
// 1.4.22 layout. values holds one pixel value per channel.
func WriteLegacyAcquisition(t *testing.T, root string, l Layout, values []float32) {
	t.Helper()
	if len(values) != len(l.Channels) {
		t.Fatalf("%d values for %d channels", len(values), len(l.Channels))
	}
	for _, p := range l.Positions {
		dir := filepath.Join(root, p)
		WriteSummary(t, dir, l)
		for c, ch := range l.Channels {
			name := fmt.Sprintf("img_000000%03d_%s_%03d.tif", 0, ch, 0)
			WriteConstImage(t, filepath.Join(dir, name), l.Width, l.Height, values[c])
		}
	}
}
