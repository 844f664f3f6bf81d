package models

import "fmt"

// Coordinate addresses one image plane inside an acquisition.
// It is a plain value: resolvers and classifiers receive a copy and never
// mutate the caller's cursor.
type Coordinate struct {
	// Position is the index into the active position list
	Position int

	// Time is the time point index
	Time int

	// Z is the slice index along the optical axis
	Z int

	// Channel is the index into the active input channel list
	Channel int
}

// WithChannel returns a copy of c addressing channel ch
func (c Coordinate) WithChannel(ch int) Coordinate {
	c.Channel = ch
	return c
}

func (c Coordinate) String() string {
	return fmt.Sprintf("p=%d t=%d z=%d c=%d", c.Position, c.Time, c.Z, c.Channel)
}
