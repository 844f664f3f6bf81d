// Package channels classifies acquisition channel labels into their roles
// (polarization state, fluorescence band, brightfield, precomputed) and
// assembles the per-coordinate channel stack.
package channels

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Role is the semantic role of an acquired channel.
type Role int

const (
	RoleUnknown Role = iota
	RolePolState
	RoleProcessed
	RoleFluorescence
	RoleBrightfield
)

func (r Role) String() string {
	switch r {
	case RolePolState:
		return "pol-state"
	case RoleProcessed:
		return "processed"
	case RoleFluorescence:
		return "fluorescence"
	case RoleBrightfield:
		return "brightfield"
	default:
		return "unknown"
	}
}

// NumBands is the number of fluorescence band slots.
const NumBands = 4

// BandNames are the output channel names of the fluorescence bands.
var BandNames = [NumBands]string{"405", "488", "568", "640"}

// bandTokens holds, per band slot, the substrings identifying it.
var bandTokens = [NumBands][]string{
	{"DAPI", "405", "405nm"},
	{"GFP", "488", "488nm"},
	{"TxR", "TXR", "TX", "568", "561", "560"},
	{"Cy5", "IFP", "640", "637"},
}

var (
	polMarkers        = []string{"State", "state", "Pol"}
	processedMarkers  = []string{"Computed Image"}
	fluorMarkers      = []string{"Confocal40", "Confocal_40", "Widefield", "widefield", "Fluor"}
	brightfieldMarker = []string{"BF"}

	polStateRe = regexp.MustCompile(`(?i)(?:state|pol[a-z]*)\D*?(\d)`)
)

// Class is the result of classifying one label.
type Class struct {
	Role Role

	// Index is the polarization state (0..4) or the fluorescence band (0..3)
	Index int
}

type rule struct {
	role  Role
	match func(label string) (int, bool)
}

// rules are tried in order; the first match decides.
var rules = []rule{
	{RolePolState, matchPolState},
	{RoleProcessed, func(l string) (int, bool) { return 0, containsAny(l, processedMarkers) }},
	{RoleFluorescence, matchFluorescence},
	{RoleBrightfield, func(l string) (int, bool) { return 0, containsAny(l, brightfieldMarker) }},
}

// Classify maps a channel label (a channel name, or the channel part of a
// legacy file name) onto its role. Labels matching no rule are reported with
// ok == false and should be ignored.
func Classify(label string) (Class, bool) {
	for _, r := range rules {
		idx, ok := r.match(label)
		if !ok {
			continue
		}
		if idx < 0 {
			return Class{}, false
		}
		return Class{Role: r.role, Index: idx}, true
	}
	return Class{}, false
}

// A label with a polarization marker is always claimed here; without a valid
// state it is dropped rather than tried against the other rules.
func matchPolState(label string) (int, bool) {
	if !containsAny(label, polMarkers) {
		return 0, false
	}
	m := polStateRe.FindStringSubmatch(label)
	if m == nil {
		return -1, true
	}
	state, _ := strconv.Atoi(m[1])
	if state > 4 {
		return -1, true
	}
	return state, true
}

// A label with a fluorescence marker but no known band token is claimed by
// this rule and then dropped, so it never falls through to brightfield.
// Brightfield labels carrying a wavelength and no marker stay brightfield.
func matchFluorescence(label string) (int, bool) {
	if IsFluorescenceMarked(label) {
		return Band(label), true
	}
	if containsAny(label, brightfieldMarker) {
		return 0, false
	}
	band := Band(label)
	return band, band >= 0
}

// Band returns the fluorescence band slot whose token appears in label, or
// -1 when none does.
func Band(label string) int {
	for i, tokens := range bandTokens {
		if containsAny(label, tokens) {
			return i
		}
	}
	return -1
}

// IsFluorescenceMarked reports whether label carries an explicit
// fluorescence illumination marker.
func IsFluorescenceMarked(label string) bool {
	return containsAny(label, fluorMarkers)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// LegacyNames matches MicroManager 1.4.22 file names of a single time point
// and slice.
type LegacyNames struct {
	re *regexp.Regexp
}

// NewLegacyNames builds the matcher for time t and slice z.
func NewLegacyNames(t, z int) LegacyNames {
	return LegacyNames{re: regexp.MustCompile(fmt.Sprintf(`(?i)^img_000000%03d_(.*)_%03d\.tif$`, t, z))}
}

// Label extracts the channel label from name if it belongs to the matcher's
// time point and slice.
func (n LegacyNames) Label(name string) (string, bool) {
	m := n.re.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}
