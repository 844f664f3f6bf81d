package traversal

import (
	"fmt"

	"polrecon/internal/models"
	"polrecon/pkg/acquisition"
	"polrecon/pkg/channels"
)

// ReadStack reads and classifies every input channel of coordinate c. Legacy
// acquisitions are matched against the folder listing by channel label; the
// other schemes resolve each input channel in turn. Channels that match no
// classification rule are never read, and a classified channel without a
// file fails with acquisition.ErrImageNotFound.
func ReadStack(ix *acquisition.Index, c models.Coordinate, blackLevel float32) (*channels.Stack, error) {
	if ix.Scheme() == acquisition.SchemeLegacy {
		return readLegacyStack(ix, c, blackLevel)
	}

	asm := channels.NewAssembler(ix.Width(), ix.Height(), blackLevel)
	for ch, label := range ix.InputChannels() {
		class, ok := channels.Classify(label)
		if !ok {
			continue
		}
		f, res, err := ix.ReadImage(c.WithChannel(ch))
		if err != nil {
			return nil, err
		}
		if err := asm.Add(class, f); err != nil {
			return nil, fmt.Errorf("%s: %w", res.Name, err)
		}
	}
	return asm.Stack(), nil
}

func readLegacyStack(ix *acquisition.Index, c models.Coordinate, blackLevel float32) (*channels.Stack, error) {
	names, err := ix.Listing(c.Position)
	if err != nil {
		return nil, err
	}
	legacy := channels.NewLegacyNames(c.Time, c.Z)
	files := make(map[string]string, len(names))
	for _, name := range names {
		if label, ok := legacy.Label(name); ok {
			files[label] = name
		}
	}

	asm := channels.NewAssembler(ix.Width(), ix.Height(), blackLevel)
	for _, label := range ix.InputChannels() {
		class, ok := channels.Classify(label)
		if !ok {
			continue
		}
		name, ok := files[label]
		if !ok {
			return nil, fmt.Errorf("%w: %s at %s", acquisition.ErrImageNotFound,
				acquisition.LegacyName(c.Time, label, c.Z), c)
		}
		f, err := ix.ReadFile(c.Position, name)
		if err != nil {
			return nil, err
		}
		if err := asm.Add(class, f); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return asm.Stack(), nil
}
