package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		Config{
			Slug:           "serra",
			DisplayName:    "Serra ES",
			Destination:    Destination{ListID: "list-serra"},
			AllowedRegions: []string{"ES"},
			AllowedCitiesByRegion: map[string][]string{
				"ES": {"Vitória", "Serra"},
			},
			AnalyticsPixelID: "pixel-serra",
		},
		Config{
			Slug:        "vip",
			DisplayName: "VIP",
			Destination: Destination{ListID: "X", Credential: "Y"},
		},
		Config{
			Slug:        "tokenonly",
			Destination: Destination{Credential: "tenant-token"},
		},
	)
	require.NoError(t, err)
	return reg
}

func testDefault() Config {
	return Config{
		Slug:        "should-be-cleared",
		DisplayName: "ESC Crédito",
		Destination: Destination{ListID: "default-list", Credential: "default-token"},
		Variant:     "canonical",
	}
}

func TestSlugFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"//", ""},
		{"/serra", "serra"},
		{"/serra/", "serra"},
		{"serra", "serra"},
		{"/serra/obrigado", "serra"},
		{"/index", ""},
		{"/index.html", ""},
		{"/serra.html", ""},
		{"/Serra", "Serra"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, SlugFromPath(tt.path))
		})
	}
}

func TestResolveKnownTenantOverlaysDefault(t *testing.T) {
	reg := testRegistry(t)
	got := Resolve("/serra/", reg, testDefault())

	assert.Equal(t, "serra", got.Slug)
	assert.Equal(t, "Serra ES", got.DisplayName)
	assert.Equal(t, "list-serra", got.Destination.ListID)
	assert.Equal(t, "default-token", got.Destination.Credential, "credential falls back field by field")
	assert.Equal(t, []string{"ES"}, got.AllowedRegions)
	assert.Equal(t, "canonical", got.Variant, "unset tenant fields keep the default")
	assert.Equal(t, "pixel-serra", got.AnalyticsPixelID)
}

func TestResolveDestinationFieldsOverrideIndependently(t *testing.T) {
	reg := testRegistry(t)

	vip := Resolve("/vip", reg, testDefault())
	assert.Equal(t, Destination{ListID: "X", Credential: "Y"}, vip.Destination)

	tokenOnly := Resolve("/tokenonly", reg, testDefault())
	assert.Equal(t, Destination{ListID: "default-list", Credential: "tenant-token"}, tokenOnly.Destination)
}

func TestResolveUnknownOrMissingSlugReturnsDefault(t *testing.T) {
	reg := testRegistry(t)
	want := testDefault()
	want.Slug = ""

	for _, path := range []string{"", "/", "/unknown", "/index.html", "/index", "/SERRA", "/Serra", "/serr", "/serra-sul"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, want, Resolve(path, reg, testDefault()))
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	reg := testRegistry(t)
	for _, path := range []string{"", "/serra", "/vip/x", "/nope", "/a.b"} {
		first := Resolve(path, reg, testDefault())
		second := Resolve(path, reg, testDefault())
		assert.Equal(t, first, second, path)
	}
}

func TestResolveDoesNotLeakRegistryState(t *testing.T) {
	reg := testRegistry(t)
	got := Resolve("/serra", reg, testDefault())
	got.AllowedRegions[0] = "SP"
	got.AllowedCitiesByRegion["ES"][0] = "Changed"

	again := Resolve("/serra", reg, testDefault())
	assert.Equal(t, []string{"ES"}, again.AllowedRegions)
	assert.Equal(t, "Vitória", again.AllowedCitiesByRegion["ES"][0])
}

func TestResolveWithNilRegistry(t *testing.T) {
	got := Resolve("/serra", nil, testDefault())
	assert.Empty(t, got.Slug)
	assert.Equal(t, "default-list", got.Destination.ListID)
}
