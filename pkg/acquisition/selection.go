package acquisition

import (
	"fmt"
	"strconv"
	"strings"
)

// AllToken selects the full metadata-derived range.
const AllToken = "all"

// PositionList returns the active position labels.
func (ix *Index) PositionList() []string { return append([]string(nil), ix.positions...) }

// MetaPositionList returns the metadata-derived position labels.
func (ix *Index) MetaPositionList() []string { return append([]string(nil), ix.metaPositions...) }

// TimeList returns the active time indices.
func (ix *Index) TimeList() []int { return append([]int(nil), ix.times...) }

// ZList returns the active z indices.
func (ix *Index) ZList() []int { return append([]int(nil), ix.zs...) }

// InputChannels returns the active input channel names.
func (ix *Index) InputChannels() []string { return append([]string(nil), ix.inputChannels...) }

// SetPositionList restricts the positions to process. Every label must be
// part of the metadata position list.
func (ix *Index) SetPositionList(labels []string) error {
	if missing := missingStrings(labels, ix.metaPositions); len(missing) > 0 {
		return &SelectionError{Axis: "positions", Missing: missing}
	}
	ix.positions = append([]string(nil), labels...)
	return nil
}

// SetTimeList restricts the time points to process.
func (ix *Index) SetTimeList(ts []int) error {
	if missing := missingInts(ts, ix.summary.Frames); len(missing) > 0 {
		return &SelectionError{Axis: "timepoints", Missing: missing}
	}
	ix.times = append([]int(nil), ts...)
	return nil
}

// SetZList restricts the z slices to process.
func (ix *Index) SetZList(zs []int) error {
	if missing := missingInts(zs, ix.summary.Slices); len(missing) > 0 {
		return &SelectionError{Axis: "z slices", Missing: missing}
	}
	ix.zs = append([]int(nil), zs...)
	return nil
}

// SetInputChannels restricts the channels read by ReadImage.
func (ix *Index) SetInputChannels(names []string) error {
	if missing := missingStrings(names, ix.summary.ChannelNames); len(missing) > 0 {
		return &SelectionError{Axis: "channels", Missing: missing}
	}
	ix.inputChannels = append([]string(nil), names...)
	return nil
}

// SelectPositions applies a configured position selection: either the
// single token "all" or explicit labels.
func (ix *Index) SelectPositions(tokens []string) error {
	if isAll(tokens) {
		return ix.SetPositionList(ix.metaPositions)
	}
	return ix.SetPositionList(tokens)
}

// SelectTimes applies a configured time selection ("all" or indices).
func (ix *Index) SelectTimes(tokens []string) error {
	if isAll(tokens) {
		return ix.SetTimeList(ix.summary.MetaTimeList())
	}
	ts, err := parseIndices("timepoints", tokens)
	if err != nil {
		return err
	}
	return ix.SetTimeList(ts)
}

// SelectZ applies a configured z selection ("all" or indices).
func (ix *Index) SelectZ(tokens []string) error {
	if isAll(tokens) {
		return ix.SetZList(ix.summary.MetaZList())
	}
	zs, err := parseIndices("z slices", tokens)
	if err != nil {
		return err
	}
	return ix.SetZList(zs)
}

// An empty selection means everything, same as "all".
func isAll(tokens []string) bool {
	return len(tokens) == 0 || (len(tokens) == 1 && strings.EqualFold(strings.TrimSpace(tokens[0]), AllToken))
}

func parseIndices(axis string, tokens []string) ([]int, error) {
	out := make([]int, 0, len(tokens))
	var bad []string
	for _, tok := range tokens {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			bad = append(bad, tok)
			continue
		}
		out = append(out, v)
	}
	if len(bad) > 0 {
		return nil, &SelectionError{Axis: axis, Missing: bad}
	}
	return out, nil
}

func missingStrings(values, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	var missing []string
	for _, v := range values {
		if _, ok := set[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}

func missingInts(values []int, n int) []string {
	var missing []string
	for _, v := range values {
		if v < 0 || v >= n {
			missing = append(missing, fmt.Sprint(v))
		}
	}
	return missing
}
