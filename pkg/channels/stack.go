package channels

import (
	"fmt"

	"polrecon/internal/models"
)

// Stack holds the classified frames of one (position, time, z) coordinate.
type Stack struct {
	// Pol holds 4 or 5 polarization frames in Stokes order once sorted
	Pol []*models.Frame

	// Processed holds frames computed by the acquisition software
	Processed []*models.Frame

	// Fluor holds one frame per band; absent bands are all zero
	Fluor [NumBands]*models.Frame

	// BF holds brightfield frames
	BF []*models.Frame
}

// Assembler collects classified frames into a Stack, removing the camera
// black level from each frame as it is added.
type Assembler struct {
	width, height int
	blackLevel    float32

	pol       []*models.Frame
	processed []*models.Frame
	fluor     [NumBands]*models.Frame
	bf        []*models.Frame
}

// NewAssembler prepares an empty stack of 4 polarization slots and 4
// zeroed fluorescence bands.
func NewAssembler(width, height int, blackLevel float32) *Assembler {
	a := &Assembler{width: width, height: height, blackLevel: blackLevel}
	a.pol = make([]*models.Frame, 4)
	for i := range a.pol {
		a.pol[i] = models.NewFrame(width, height)
	}
	for i := range a.fluor {
		a.fluor[i] = models.NewFrame(width, height)
	}
	return a
}

// Add places f according to class. f is modified in place.
func (a *Assembler) Add(class Class, f *models.Frame) error {
	if f.Width != a.width || f.Height != a.height {
		return fmt.Errorf("frame is %dx%d, acquisition is %dx%d", f.Width, f.Height, a.width, a.height)
	}
	f.SubScalar(a.blackLevel)

	switch class.Role {
	case RolePolState:
		if class.Index == 4 && len(a.pol) == 4 {
			// a fifth state switches the stack to the 5-frame scheme
			a.pol = append(a.pol, models.NewFrame(a.width, a.height))
		}
		if class.Index < 0 || class.Index >= len(a.pol) {
			return fmt.Errorf("polarization state %d out of range", class.Index)
		}
		a.pol[class.Index] = f
	case RoleProcessed:
		a.processed = append(a.processed, f)
	case RoleFluorescence:
		if class.Index < 0 || class.Index >= NumBands {
			return fmt.Errorf("fluorescence band %d out of range", class.Index)
		}
		a.fluor[class.Index] = f
	case RoleBrightfield:
		a.bf = append(a.bf, f)
	default:
		return fmt.Errorf("cannot place frame with role %s", class.Role)
	}
	return nil
}

// Stack returns the assembled stack with polarization frames sorted into
// Stokes order.
func (a *Assembler) Stack() *Stack {
	return &Stack{
		Pol:       SortPolChannels(a.pol),
		Processed: a.processed,
		Fluor:     a.fluor,
		BF:        a.bf,
	}
}

// SortPolChannels reorders polarization frames from acquisition order
// (I_ext, I_90, I_135, I_45[, I_0]) into Stokes order
// (I_ext[, I_0], I_45, I_90, I_135). Stacks of other lengths are returned
// unchanged.
func SortPolChannels[T any](raw []T) []T {
	var order []int
	switch len(raw) {
	case 4:
		order = []int{0, 3, 1, 2}
	case 5:
		order = []int{0, 4, 1, 2, 3}
	default:
		return raw
	}
	out := make([]T, len(order))
	for i, src := range order {
		out[i] = raw[src]
	}
	return out
}
