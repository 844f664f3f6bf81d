package metadata

import (
	"fmt"
	"strings"
)

// Format identifies one of the MicroManager on-disk metadata layouts.
type Format int

const (
	FormatUnknown Format = iota
	Format1_4_22
	Format2_0Beta
	Format2_0Gamma
)

func (f Format) String() string {
	switch f {
	case Format1_4_22:
		return "1.4.22"
	case Format2_0Beta:
		return "2.0-beta"
	case Format2_0Gamma:
		return "2.0-gamma"
	default:
		return "unknown"
	}
}

// VersionFields are the summary values whose keys differ between formats.
type VersionFields struct {
	// Positions is the ordered list of position labels recorded in the summary
	Positions []string

	// Width and Height are the image dimensions in pixels
	Width  int
	Height int

	// TimeStamps are the acquisition time stamps as recorded
	TimeStamps []string
}

type fieldParser func(summary map[string]any) (VersionFields, error)

// formatTokens is checked in order; the first token contained in the
// version string decides the format.
var formatTokens = []struct {
	token  string
	format Format
}{
	{"1.4.22", Format1_4_22},
	{"beta", Format2_0Beta},
	{"gamma", Format2_0Gamma},
}

var fieldParsers = map[Format]fieldParser{
	Format1_4_22:   parseMM14Fields,
	Format2_0Beta:  parseMM20BetaFields,
	Format2_0Gamma: parseMM20GammaFields,
}

// SupportedFormats lists every format with a registered field parser.
func SupportedFormats() []Format {
	out := make([]Format, 0, len(formatTokens))
	for _, ft := range formatTokens {
		out = append(out, ft.format)
	}
	return out
}

// DetectFormat maps a MicroManager version string onto a Format.
func DetectFormat(version string) (Format, error) {
	for _, ft := range formatTokens {
		if strings.Contains(version, ft.token) {
			return ft.format, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q (supported: 1.4.22, 2.0-beta, 2.0-gamma)", ErrUnsupportedVersion, version)
}

// ParseVersionFields extracts the version-specific fields from a raw
// summary record.
func ParseVersionFields(summary map[string]any, version string) (VersionFields, error) {
	format, err := DetectFormat(version)
	if err != nil {
		return VersionFields{}, err
	}
	return parseFormatFields(summary, format)
}

func parseFormatFields(summary map[string]any, format Format) (VersionFields, error) {
	parse, ok := fieldParsers[format]
	if !ok {
		return VersionFields{}, fmt.Errorf("%w: no field layout for format %s", ErrUnsupportedVersion, format)
	}
	fields, err := parse(summary)
	if err != nil {
		return VersionFields{}, fmt.Errorf("parse %s summary: %w", format, err)
	}
	if fields.Width <= 0 || fields.Height <= 0 {
		return VersionFields{}, fmt.Errorf("%w: non-positive image size %dx%d", ErrMalformedSummary, fields.Width, fields.Height)
	}
	return fields, nil
}

func parseMM14Fields(summary map[string]any) (VersionFields, error) {
	fields := VersionFields{
		Positions:  positionLabels(summary, "InitialPositionList", "Pos0"),
		TimeStamps: stringList(summary["Time"]),
	}
	var err error
	if fields.Width, err = requireInt(summary, "Width"); err != nil {
		return fields, err
	}
	if fields.Height, err = requireInt(summary, "Height"); err != nil {
		return fields, err
	}
	return fields, nil
}

func parseMM20BetaFields(summary map[string]any) (VersionFields, error) {
	return parseMM20Fields(summary, "PropVal")
}

func parseMM20GammaFields(summary map[string]any) (VersionFields, error) {
	return parseMM20Fields(summary, "scalar")
}

// 2.0 builds keep the image size under UserData; beta and gamma differ only
// in the name of the leaf value key.
func parseMM20Fields(summary map[string]any, leaf string) (VersionFields, error) {
	fields := VersionFields{
		Positions:  positionLabels(summary, "StagePositions", "Default"),
		TimeStamps: stringList(summary["StartTime"]),
	}
	userData, ok := summary["UserData"].(map[string]any)
	if !ok {
		return fields, fmt.Errorf("%w: missing UserData", ErrMalformedSummary)
	}
	var err error
	if fields.Width, err = userDataInt(userData, "Width", leaf); err != nil {
		return fields, err
	}
	if fields.Height, err = userDataInt(userData, "Height", leaf); err != nil {
		return fields, err
	}
	return fields, nil
}

func userDataInt(userData map[string]any, key, leaf string) (int, error) {
	entry, ok := userData[key].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("%w: missing UserData.%s", ErrMalformedSummary, key)
	}
	v, ok := toInt(entry[leaf])
	if !ok {
		return 0, fmt.Errorf("%w: UserData.%s.%s is not an integer", ErrMalformedSummary, key, leaf)
	}
	return v, nil
}

// positionLabels reads the Label of every entry in a position list, falling
// back to a single default label when the list is absent or empty.
func positionLabels(summary map[string]any, key, fallback string) []string {
	entries, _ := summary[key].([]any)
	var labels []string
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if label, ok := m["Label"].(string); ok && label != "" {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return []string{fallback}
	}
	return labels
}
