// Package metadata reads MicroManager acquisition summaries (metadata.txt)
// and normalizes the three supported on-disk layouts into one Summary.
package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// FileName is the name of the per-folder metadata document.
const FileName = "metadata.txt"

// Summary is the immutable, normalized view of an acquisition's Summary
// record. All cardinalities used by the traversal come from here.
type Summary struct {
	// Version is the raw MicroManagerVersion string
	Version string

	// Format is the layout detected from Version
	Format Format

	// ChannelNames lists the acquired channels in acquisition order
	ChannelNames []string

	// Positions, Frames and Slices are the position, time and z counts
	Positions int
	Frames    int
	Slices    int

	// PixelSizeUm is the lateral pixel size in micrometers (0 when unknown)
	PixelSizeUm float64

	// ZStepUm is the z step in micrometers
	ZStepUm float64

	// Prefix is the acquisition folder prefix name
	Prefix string

	// Width and Height are the image dimensions in pixels
	Width  int
	Height int

	// PositionList is the metadata-derived position label list
	PositionList []string

	// TimeStamps are the recorded acquisition time stamps
	TimeStamps []string

	// Pol holds the PolAcquisition plugin settings, if present
	Pol PolSettings

	document map[string]any
}

// PolSettings are the "~ "-prefixed keys the PolAcquisition plugin writes
// into the summary.
type PolSettings struct {
	Present     bool
	Scheme      string
	Background  string
	BlackLevel  float64
	Mirror      string
	Swing       float64
	WavelengthN float64
}

// ReadSummaryFile loads and parses a metadata.txt document.
func ReadSummaryFile(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metadata file: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing metadata file %s: %w", path, err)
	}
	return ParseDocument(doc)
}

// ParseDocument builds a Summary from a decoded metadata document. The
// document is retained so it can be written back out.
func ParseDocument(doc map[string]any) (*Summary, error) {
	summary, ok := doc["Summary"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: no Summary object", ErrMalformedSummary)
	}

	version, _ := summary["MicroManagerVersion"].(string)
	format, err := DetectFormat(version)
	if err != nil {
		return nil, err
	}
	fields, err := parseFormatFields(summary, format)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Version:      version,
		Format:       format,
		ChannelNames: stringList(summary["ChNames"]),
		Prefix:       stringValue(summary["Prefix"]),
		Width:        fields.Width,
		Height:       fields.Height,
		PositionList: fields.Positions,
		TimeStamps:   fields.TimeStamps,
		document:     doc,
	}
	if s.Positions, err = requireInt(summary, "Positions"); err != nil {
		return nil, err
	}
	if s.Frames, err = requireInt(summary, "Frames"); err != nil {
		return nil, err
	}
	if s.Slices, err = requireInt(summary, "Slices"); err != nil {
		return nil, err
	}
	s.ZStepUm, _ = toFloat(summary["z-step_um"])
	s.PixelSizeUm, _ = toFloat(summary["PixelSize_um"])
	s.Pol = parsePolSettings(summary)

	if len(s.ChannelNames) == 0 {
		return nil, fmt.Errorf("%w: empty ChNames", ErrMalformedSummary)
	}
	return s, nil
}

func parsePolSettings(summary map[string]any) PolSettings {
	p := PolSettings{}
	if v, ok := summary["~ Acquired Using"]; ok {
		p.Present = true
		p.Scheme = stringValue(v)
	}
	p.Background = stringValue(summary["~ Background"])
	p.Mirror = stringValue(summary["~ Mirror"])
	p.BlackLevel, _ = toFloat(summary["~ BlackLevel"])
	p.Swing, _ = toFloat(summary["~ Swing (fraction)"])
	p.WavelengthN, _ = toFloat(summary["~ Wavelength (nm)"])
	return p
}

// Document returns a deep copy of the raw metadata document.
func (s *Summary) Document() map[string]any {
	return deepCopy(s.document).(map[string]any)
}

// WithChannels returns a copy of the raw document whose Summary lists
// names as its channels.
func (s *Summary) WithChannels(names []string) map[string]any {
	doc := s.Document()
	summary, ok := doc["Summary"].(map[string]any)
	if !ok {
		summary = map[string]any{}
		doc["Summary"] = summary
	}
	chNames := make([]any, len(names))
	for i, n := range names {
		chNames[i] = n
	}
	summary["ChNames"] = chNames
	summary["Channels"] = len(names)
	return doc
}

// MetaTimeList returns every time index recorded in the summary.
func (s *Summary) MetaTimeList() []int { return indexRange(s.Frames) }

// MetaZList returns every z index recorded in the summary.
func (s *Summary) MetaZList() []int { return indexRange(s.Slices) }

// WriteDocument serializes doc to path, replacing any existing file.
func WriteDocument(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing metadata file: %w", err)
	}
	return nil
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func requireInt(m map[string]any, key string) (int, error) {
	v, ok := toInt(m[key])
	if !ok {
		return 0, fmt.Errorf("%w: key %q is missing or not an integer", ErrMalformedSummary, key)
	}
	return v, nil
}

// toInt accepts JSON numbers and numeric strings, which MicroManager
// builds use interchangeably.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, stringValue(e))
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case nil:
		return nil
	default:
		return []string{stringValue(x)}
	}
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return x
	}
}
