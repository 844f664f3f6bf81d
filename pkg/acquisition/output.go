package acquisition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"polrecon/internal/models"
	"polrecon/pkg/imageio"
	"polrecon/pkg/metadata"
)

// PositionTableName is the file mapping output position indices to labels.
const PositionTableName = "pos_table.csv"

func (ix *Index) ensureOutputDir() error {
	if ix.outputDir == "" {
		return fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(ix.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// OutputPath returns where channel at c is written.
func (ix *Index) OutputPath(channel string, c models.Coordinate) string {
	return filepath.Join(ix.outputDir, CanonicalName(channel, c))
}

// WriteImage writes a single-plane result for channel at c, creating the
// output folder on first use.
func (ix *Index) WriteImage(c models.Coordinate, channel string, f *models.Frame) error {
	if err := ix.ensureOutputDir(); err != nil {
		return err
	}
	return imageio.Write(ix.OutputPath(channel, c), f)
}

// WriteRGB writes a colour result for channel at c in the codec's BGR order.
func (ix *Index) WriteRGB(c models.Coordinate, channel string, img *image.RGBA) error {
	if err := ix.ensureOutputDir(); err != nil {
		return err
	}
	return imageio.WriteRGBA(ix.OutputPath(channel, c), img)
}

// WriteMetadata writes metadata.txt and pos_table.csv into the output
// folder, replacing existing files. The channel list is replaced by the
// output channels; extra keys are merged into the Summary object.
func (ix *Index) WriteMetadata(extra map[string]any) error {
	if err := ix.ensureOutputDir(); err != nil {
		return err
	}

	channels := ix.outputChannels
	if len(channels) == 0 {
		channels = ix.inputChannels
	}
	doc := ix.summary.WithChannels(channels)
	if summary, ok := doc["Summary"].(map[string]any); ok {
		for k, v := range extra {
			summary[k] = v
		}
	}
	if err := metadata.WriteDocument(filepath.Join(ix.outputDir, metadata.FileName), doc); err != nil {
		return err
	}
	return ix.writePositionTable(filepath.Join(ix.outputDir, PositionTableName))
}

func (ix *Index) writePositionTable(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create position table: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	records := [][]string{{"pos idx", "pos dir"}}
	for i, label := range ix.positions {
		records = append(records, []string{strconv.Itoa(i), label})
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write position table: %w", err)
	}
	return file.Close()
}

// positionsFromTable returns the position labels of a table in index order,
// or nil when path does not exist.
func positionsFromTable(path string) ([]string, error) {
	table, err := ReadPositionTable(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(table))
	for i := range labels {
		label, ok := table[i]
		if !ok {
			return nil, fmt.Errorf("position table %s: missing index %d", path, i)
		}
		labels[i] = label
	}
	return labels, nil
}

// ReadPositionTable reads a pos_table.csv written by WriteMetadata.
func ReadPositionTable(path string) (map[int]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse position table: %w", err)
	}
	table := make(map[int]string, len(records))
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) != 2 {
			return nil, fmt.Errorf("position table row %d: expected 2 columns, got %d", i, len(rec))
		}
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("position table row %d: %w", i, err)
		}
		table[idx] = rec[1]
	}
	return table, nil
}
