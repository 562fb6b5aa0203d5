package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/esc-funnel/internal/tenant"
)

func TestRegionsCatalogue(t *testing.T) {
	all := Regions()
	require.Len(t, all, 27)
	assert.Equal(t, "AC", all[0].Code)
	assert.True(t, IsRegion("SP"))
	assert.False(t, IsRegion("sp"))
	assert.False(t, IsRegion("XX"))

	sp, ok := Lookup("SP")
	require.True(t, ok)
	assert.Equal(t, "São Paulo (SP)", sp.Label())

	all[0].Code = "ZZ"
	assert.Equal(t, "AC", Regions()[0].Code, "Regions returns a copy")
}

func TestRegionsFor(t *testing.T) {
	assert.Len(t, RegionsFor(tenant.Config{}), 27)

	got := RegionsFor(tenant.Config{AllowedRegions: []string{"SP", "ES"}})
	require.Len(t, got, 2)
	assert.Equal(t, "ES", got[0].Code, "display order, not config order")
	assert.Equal(t, "SP", got[1].Code)
}

func ibgeServer(t *testing.T, calls *int32, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/estados/ES/municipios", r.URL.Path)
		assert.Equal(t, "nome", r.URL.Query().Get("orderBy"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIBGEMunicipalities(t *testing.T) {
	var calls int32
	server := ibgeServer(t, &calls, http.StatusOK, `[{"id":3201308,"nome":"Cariacica"},{"id":3205002,"nome":"Serra"}]`)

	cities, err := NewIBGEClient(server.URL, time.Second).Municipalities(context.Background(), "ES")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cariacica", "Serra"}, cities)
}

func TestIBGEFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusInternalServerError, `oops`},
		"bad json":     {http.StatusOK, `{`},
		"empty list":   {http.StatusOK, `[]`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var calls int32
			server := ibgeServer(t, &calls, tc.status, tc.body)
			_, err := NewIBGEClient(server.URL, time.Second).Municipalities(context.Background(), "ES")
			assert.ErrorIs(t, err, ErrLookupFailed)
		})
	}
}

type failingLookup struct{}

func (failingLookup) Municipalities(context.Context, string) ([]string, error) {
	return nil, errors.New("boom")
}

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Hour), mr
}

func TestProviderPrefersTenantCities(t *testing.T) {
	p := NewProvider(failingLookup{}, nil, nil)
	cfg := tenant.Config{
		AllowedRegions:        []string{"ES"},
		AllowedCitiesByRegion: map[string][]string{"ES": {"Vitória", "Serra"}},
	}

	list, err := p.Cities(context.Background(), cfg, "ES")
	require.NoError(t, err)
	assert.Equal(t, SourceTenant, list.Source)
	assert.Equal(t, []string{"Serra", "Vitória"}, list.Cities)
}

func TestProviderRejectsRegions(t *testing.T) {
	p := NewProvider(failingLookup{}, nil, nil)

	_, err := p.Cities(context.Background(), tenant.Config{}, "XX")
	assert.ErrorIs(t, err, ErrUnknownRegion)

	_, err = p.Cities(context.Background(), tenant.Config{AllowedRegions: []string{"SP"}}, "ES")
	assert.ErrorIs(t, err, ErrRegionNotServed)
}

func TestProviderLooksUpAndCaches(t *testing.T) {
	var calls int32
	server := ibgeServer(t, &calls, http.StatusOK, `[{"nome":"Serra"}]`)
	cache, mr := newCache(t)
	p := NewProvider(NewIBGEClient(server.URL, time.Second), cache, nil)
	ctx := context.Background()

	first, err := p.Cities(ctx, tenant.Config{}, "ES")
	require.NoError(t, err)
	assert.Equal(t, SourceLookup, first.Source)
	assert.True(t, mr.Exists(cacheKey("ES")))

	second, err := p.Cities(ctx, tenant.Config{}, "ES")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Cities, second.Cities)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProviderLookupFailure(t *testing.T) {
	cache, _ := newCache(t)
	p := NewProvider(failingLookup{}, cache, nil)

	_, err := p.Cities(context.Background(), tenant.Config{}, "MG")
	assert.ErrorIs(t, err, ErrLookupFailed)

	_, err = cache.Get(context.Background(), "MG")
	assert.ErrorIs(t, err, ErrCacheMiss, "failures are not cached")
}
