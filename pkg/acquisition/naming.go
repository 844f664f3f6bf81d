package acquisition

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"polrecon/internal/models"
	"polrecon/pkg/metadata"
)

// NamingScheme is the file naming convention of an image folder. It is
// chosen once when an Index is opened.
type NamingScheme int

const (
	SchemeUnknown NamingScheme = iota
	// SchemeLegacy is MicroManager 1.4.22: img_000000TTT_<channel>_ZZZ.tif
	SchemeLegacy
	// SchemePositionSearch is MicroManager 2.0:
	// img_channelCCC_positionPPP_timeTTTTTTTTT_zZZZ.tif
	SchemePositionSearch
	// SchemeCanonical is this tool's own output: img_<channel>_tTTT_pPPP_zZZZ.tif
	SchemeCanonical
)

func (s NamingScheme) String() string {
	switch s {
	case SchemeLegacy:
		return "mm_1_4_22"
	case SchemePositionSearch:
		return "mm_2_0"
	case SchemeCanonical:
		return "recon_order"
	default:
		return "unknown"
	}
}

var canonicalNameRe = regexp.MustCompile(`^img_.+_t\d{3}_p\d{3}_z\d{3}\.tif$`)

var formatSchemes = map[metadata.Format]NamingScheme{
	metadata.Format1_4_22:   SchemeLegacy,
	metadata.Format2_0Beta:  SchemePositionSearch,
	metadata.Format2_0Gamma: SchemePositionSearch,
}

// DetectNamingScheme picks the naming scheme for a folder. A folder whose
// first image already follows the canonical output pattern is re-read as
// canonical output, whatever version its copied metadata carries; otherwise
// the format decides.
func DetectNamingScheme(format metadata.Format, firstName string) (NamingScheme, error) {
	if firstName != "" && canonicalNameRe.MatchString(firstName) {
		return SchemeCanonical, nil
	}
	if s, ok := formatSchemes[format]; ok {
		return s, nil
	}
	return SchemeUnknown, fmt.Errorf("%w: format %s, first file %q", ErrUnknownNamingScheme, format, firstName)
}

// ResolutionStatus tells how much a resolved name can be trusted.
type ResolutionStatus int

const (
	// Exact names are either deterministic or were found on disk.
	Exact ResolutionStatus = iota
	// Guessed names were constructed after a search found nothing and may
	// not exist.
	Guessed
)

func (s ResolutionStatus) String() string {
	if s == Guessed {
		return "guessed"
	}
	return "exact"
}

// Resolution is the outcome of mapping a coordinate onto a file name.
type Resolution struct {
	Name   string
	Status ResolutionStatus
}

// NameRequest carries everything a resolver needs about one image.
type NameRequest struct {
	Coord models.Coordinate

	// ChannelName is the name of the requested channel
	ChannelName string

	// ChannelIndex is the channel's position in the metadata channel list
	ChannelIndex int
}

type resolver func(req NameRequest, listing []string) Resolution

var resolvers = map[NamingScheme]resolver{
	SchemeLegacy:         resolveLegacy,
	SchemePositionSearch: resolvePositionSearch,
	SchemeCanonical:      resolveCanonical,
}

// ResolveName maps a request onto a file name under scheme. listing is the
// folder content and is only consulted by the position-search scheme.
func ResolveName(scheme NamingScheme, req NameRequest, listing []string) (Resolution, error) {
	r, ok := resolvers[scheme]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnknownNamingScheme, scheme)
	}
	return r(req, listing), nil
}

// LegacyName is the MicroManager 1.4.22 file name for (t, channel, z).
func LegacyName(t int, channel string, z int) string {
	return fmt.Sprintf("img_000000%03d_%s_%03d.tif", t, channel, z)
}

// CanonicalName is the output file name for a channel at a coordinate.
func CanonicalName(channel string, c models.Coordinate) string {
	return fmt.Sprintf("img_%s_t%03d_p%03d_z%03d.tif", channel, c.Time, c.Position, c.Z)
}

func positionSearchPattern(chanIdx, t, z int) string {
	return fmt.Sprintf("img_channel%03d_position*_time%09d_z%03d.tif", chanIdx, t, z)
}

func positionSearchName(chanIdx, pos, t, z int) string {
	return fmt.Sprintf("img_channel%03d_position%03d_time%09d_z%03d.tif", chanIdx, pos, t, z)
}

func resolveLegacy(req NameRequest, _ []string) Resolution {
	return Resolution{Name: LegacyName(req.Coord.Time, req.ChannelName, req.Coord.Z), Status: Exact}
}

func resolveCanonical(req NameRequest, _ []string) Resolution {
	return Resolution{Name: CanonicalName(req.ChannelName, req.Coord), Status: Exact}
}

// The position number MicroManager 2.0 embeds in names does not follow the
// position list, so any position value is accepted and the first match in
// sorted order wins. Without a match the name is built from the logical
// position index and flagged as a guess.
func resolvePositionSearch(req NameRequest, listing []string) Resolution {
	pattern := positionSearchPattern(req.ChannelIndex, req.Coord.Time, req.Coord.Z)
	names := append([]string(nil), listing...)
	sort.Strings(names)
	for _, name := range names {
		if ok, _ := filepath.Match(pattern, name); ok {
			return Resolution{Name: name, Status: Exact}
		}
	}
	return Resolution{
		Name:   positionSearchName(req.ChannelIndex, req.Coord.Position, req.Coord.Time, req.Coord.Z),
		Status: Guessed,
	}
}

// countMatches reports how many names in listing satisfy the position-search
// pattern for req.
func countMatches(req NameRequest, listing []string) int {
	pattern := positionSearchPattern(req.ChannelIndex, req.Coord.Time, req.Coord.Z)
	n := 0
	for _, name := range listing {
		if ok, _ := filepath.Match(pattern, name); ok {
			n++
		}
	}
	return n
}
