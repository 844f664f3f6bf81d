package acquisition

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAcquisitionPath is returned when the acquisition root does not exist.
	ErrMissingAcquisitionPath = errors.New("acquisition: path does not exist")

	// ErrUnknownNamingScheme is returned when no file naming rule applies.
	ErrUnknownNamingScheme = errors.New("acquisition: unknown image name format")

	// ErrInvalidSelection is returned when a position/time/z/channel selection
	// is not a subset of what the metadata describes.
	ErrInvalidSelection = errors.New("acquisition: invalid selection")

	// ErrImageNotFound is returned when the resolved image file is absent.
	ErrImageNotFound = errors.New("acquisition: image not found")
)

// SelectionError reports which requested values are missing from metadata.
type SelectionError struct {
	Axis    string
	Missing []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%v: some %s cannot be found in metadata: %v", ErrInvalidSelection, e.Axis, e.Missing)
}

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }
