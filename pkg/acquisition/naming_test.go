package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polrecon/internal/models"
	"polrecon/pkg/metadata"
)

func TestDetectNamingScheme(t *testing.T) {
	tests := []struct {
		name   string
		format metadata.Format
		first  string
		want   NamingScheme
	}{
		{"legacy", metadata.Format1_4_22, "img_000000000_State0_000.tif", SchemeLegacy},
		{"beta", metadata.Format2_0Beta, "img_channel000_position000_time000000000_z000.tif", SchemePositionSearch},
		{"gamma", metadata.Format2_0Gamma, "", SchemePositionSearch},
		{"own output", metadata.Format1_4_22, "img_Retardance_t000_p001_z002.tif", SchemeCanonical},
		{"own output unknown version", metadata.FormatUnknown, "img_405_t000_p000_z000.tif", SchemeCanonical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectNamingScheme(tt.format, tt.first)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectNamingScheme(metadata.FormatUnknown, "random.tif")
	assert.ErrorIs(t, err, ErrUnknownNamingScheme)
}

func TestEveryFormatHasScheme(t *testing.T) {
	for _, f := range metadata.SupportedFormats() {
		_, ok := formatSchemes[f]
		assert.True(t, ok, "format %s has no naming scheme", f)
	}
	for _, s := range []NamingScheme{SchemeLegacy, SchemePositionSearch, SchemeCanonical} {
		_, ok := resolvers[s]
		assert.True(t, ok, "scheme %s has no resolver", s)
	}
}

func TestResolveLegacy(t *testing.T) {
	req := NameRequest{Coord: models.Coordinate{Time: 3, Z: 12}, ChannelName: "State2"}
	res, err := ResolveName(SchemeLegacy, req, nil)
	require.NoError(t, err)
	assert.Equal(t, Resolution{Name: "img_000000003_State2_012.tif", Status: Exact}, res)
}

func TestResolveCanonical(t *testing.T) {
	c := models.Coordinate{Position: 7, Time: 1, Z: 4}
	res, err := ResolveName(SchemeCanonical, NameRequest{Coord: c, ChannelName: "Retardance"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "img_Retardance_t001_p007_z004.tif", res.Name)
	assert.Equal(t, Exact, res.Status)
	assert.Equal(t, CanonicalName("Retardance", c), res.Name)
}

func TestResolvePositionSearch(t *testing.T) {
	listing := []string{
		"img_channel001_position017_time000000000_z000.tif",
		"img_channel000_position021_time000000000_z000.tif",
		"img_channel000_position020_time000000000_z000.tif",
		"img_channel000_position020_time000000001_z000.tif",
	}
	req := NameRequest{Coord: models.Coordinate{Position: 1, Time: 0, Z: 0}, ChannelName: "State0", ChannelIndex: 0}

	res, err := ResolveName(SchemePositionSearch, req, listing)
	require.NoError(t, err)
	assert.Equal(t, Exact, res.Status)
	assert.Equal(t, "img_channel000_position020_time000000000_z000.tif", res.Name, "first lexicographic match wins")
	assert.Equal(t, 2, countMatches(req, listing))

	req.Coord.Z = 5
	res, err = ResolveName(SchemePositionSearch, req, listing)
	require.NoError(t, err)
	assert.Equal(t, Guessed, res.Status)
	assert.Equal(t, "img_channel000_position001_time000000000_z005.tif", res.Name)
}

func TestResolveUnknownScheme(t *testing.T) {
	_, err := ResolveName(SchemeUnknown, NameRequest{}, nil)
	assert.ErrorIs(t, err, ErrUnknownNamingScheme)
}
