package metadata

import "errors"

var (
	// ErrUnsupportedVersion is returned when the MicroManager version string
	// matches none of the known on-disk layouts. There is no fallback.
	ErrUnsupportedVersion = errors.New("metadata: unsupported MicroManager version")

	// ErrMalformedSummary is returned when a required summary key is missing
	// or has an unusable value.
	ErrMalformedSummary = errors.New("metadata: malformed summary")
)
