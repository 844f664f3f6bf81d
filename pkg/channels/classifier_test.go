package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polrecon/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  Class
		ok    bool
	}{
		{"State0", Class{RolePolState, 0}, true},
		{"Zyla_PolState3", Class{RolePolState, 3}, true},
		{"PolAcquisition4 - Acquired Image", Class{RolePolState, 4}, true},
		{"EMCCD_state2_Widefield", Class{RolePolState, 2}, true},
		{"Retardance - Computed Image", Class{RoleProcessed, 0}, true},
		{"Zyla_Widefield_DAPI", Class{RoleFluorescence, 0}, true},
		{"Zyla_Confocal40_GFP", Class{RoleFluorescence, 1}, true},
		{"Fluor_561", Class{RoleFluorescence, 2}, true},
		{"Cy5", Class{RoleFluorescence, 3}, true},
		{"Zyla_BF", Class{RoleBrightfield, 0}, true},
		{"Zyla_BF_560", Class{RoleBrightfield, 0}, true},
		{"BF_LED_405", Class{RoleBrightfield, 0}, true},
		{"Widefield_BF_405", Class{RoleFluorescence, 0}, true},
		{"405", Class{RoleFluorescence, 0}, true},
		{"GFP", Class{RoleFluorescence, 1}, true},
		{"State_GFP", Class{}, false},
		{"Widefield_unknown", Class{}, false},
		{"Exposure", Class{}, false},
		{"State7", Class{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := Classify(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLegacyNames(t *testing.T) {
	const name = "img_000000002_Zyla_PolState1_005.tif"
	label, ok := NewLegacyNames(2, 5).Label(name)
	require.True(t, ok)
	assert.Equal(t, "Zyla_PolState1", label)

	_, ok = NewLegacyNames(1, 5).Label(name)
	assert.False(t, ok, "other time point")
	_, ok = NewLegacyNames(2, 4).Label(name)
	assert.False(t, ok, "other slice")
	_, ok = NewLegacyNames(0, 0).Label("metadata.txt")
	assert.False(t, ok)
}

func TestSortPolChannels(t *testing.T) {
	assert.Equal(t, []string{"a", "d", "b", "c"}, SortPolChannels([]string{"a", "b", "c", "d"}))
	assert.Equal(t, []string{"a", "e", "b", "c", "d"}, SortPolChannels([]string{"a", "b", "c", "d", "e"}))
	assert.Equal(t, []string{"a", "b"}, SortPolChannels([]string{"a", "b"}))
}

func TestFluorescenceBandsFromFileNames(t *testing.T) {
	const w, h = 3, 2
	names := map[string]float32{
		"img_000000000_Widefield_405_000.tif": 10,
		"img_000000000_Widefield_GFP_000.tif": 20,
		"img_000000000_Widefield_568_000.tif": 30,
		"img_000000000_Widefield_640_000.tif": 40,
	}

	legacy := NewLegacyNames(0, 0)
	for name, value := range names {
		a := NewAssembler(w, h, 0)
		label, ok := legacy.Label(name)
		require.True(t, ok, name)
		class, ok := Classify(label)
		require.True(t, ok, name)
		require.Equal(t, RoleFluorescence, class.Role)
		require.NoError(t, a.Add(class, models.NewFilledFrame(w, h, value)))

		s := a.Stack()
		band := int(value/10) - 1
		for i, f := range s.Fluor {
			if i == band {
				assert.Equal(t, value, f.Pix[0], name)
			} else {
				assert.True(t, f.IsZero(), "%s: band %d should stay empty", name, i)
			}
		}
	}
}

func TestAssemblerFourFrame(t *testing.T) {
	a := NewAssembler(2, 2, 100)
	for state, v := range []float32{1100, 1200, 1300, 1400} {
		require.NoError(t, a.Add(Class{RolePolState, state}, models.NewFilledFrame(2, 2, v)))
	}
	require.NoError(t, a.Add(Class{Role: RoleBrightfield}, models.NewFilledFrame(2, 2, 600)))

	s := a.Stack()
	require.Len(t, s.Pol, 4)
	got := []float32{s.Pol[0].Pix[0], s.Pol[1].Pix[0], s.Pol[2].Pix[0], s.Pol[3].Pix[0]}
	assert.Equal(t, []float32{1000, 1300, 1100, 1200}, got)
	require.Len(t, s.BF, 1)
	assert.Equal(t, float32(500), s.BF[0].Pix[3])
}

func TestAssemblerFiveFrame(t *testing.T) {
	a := NewAssembler(1, 1, 0)
	// state 4 before the others still grows the stack
	for _, state := range []int{4, 0, 1, 2, 3} {
		require.NoError(t, a.Add(Class{RolePolState, state}, models.NewFilledFrame(1, 1, float32(state))))
	}
	s := a.Stack()
	require.Len(t, s.Pol, 5)
	var got []float32
	for _, f := range s.Pol {
		got = append(got, f.Pix[0])
	}
	assert.Equal(t, []float32{0, 4, 1, 2, 3}, got)
}

func TestAssemblerRejectsWrongShape(t *testing.T) {
	a := NewAssembler(2, 2, 0)
	assert.Error(t, a.Add(Class{RolePolState, 0}, models.NewFrame(3, 2)))
	assert.Error(t, a.Add(Class{}, models.NewFrame(2, 2)))
}
