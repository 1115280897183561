package apitool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
apis:
  - name: WeatherAPI
    endpoint: https://api.weatherapi.com/v1/current.json
    credential_env: WEATHER_API_KEY
    auth: Query-Key
    formatter: weather
    timeout: 5s
    params:
      q:
        type: string
        required: true
  - name: FredAPI
    endpoint: https://api.stlouisfed.org/fred/series/observations
    credential_env: FRED_KEY
    auth: Query-Param-api_key
    max_retries: 0
    retry_base: 250ms
    params:
      series_id:
        type: string
        required: true
      limit:
        type: integer
        default: 10
  - name: GDELTAPI
    endpoint: https://api.gdeltproject.org/api/v2/doc/doc
    auth: None
    rate_limit: 2
    burst: 4
`

func TestParseCatalog(t *testing.T) {
	descs, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, descs, 3)

	w := descs[0]
	assert.Equal(t, "WeatherAPI", w.Name)
	assert.Equal(t, AuthQueryKey, w.Auth)
	assert.Equal(t, 5*time.Second, w.Timeout)
	assert.True(t, w.Params["q"].Required)

	f := descs[1]
	assert.Equal(t, AuthQueryAPIKeyUnderscore, f.Auth)
	require.NotNil(t, f.MaxRetries)
	assert.Equal(t, 0, *f.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, f.RetryBase)
	assert.Equal(t, 10, f.Params["limit"].Default)

	g := descs[2]
	assert.Equal(t, AuthNone, g.Auth)
	assert.Nil(t, g.MaxRetries)
	assert.InDelta(t, 2.0, g.RateLimit, 0.0001)
	assert.Equal(t, 4, g.Burst)
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "apis: []\n", "no apis"},
		{"unknown field", "apis:\n  - name: x\n    endpont: https://x.example.com\n", "endpont"},
		{"unknown auth", "apis:\n  - name: x\n    endpoint: https://x.example.com\n    auth: telepathy\n", "telepathy"},
		{"not yaml", "apis: [", "parse tool catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	descs, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, descs, 3)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read tool catalog")
}

func TestBuildRegistry_DefaultCatalog(t *testing.T) {
	reg, err := BuildRegistry(DefaultCatalog(), WithLookupEnv(envWith(map[string]string{
		"WEATHER_API_KEY": "testkey",
	})))
	require.NoError(t, err)
	assert.Equal(t, 7, reg.Len())

	weather, err := reg.Get("WeatherAPI")
	require.NoError(t, err)
	assert.True(t, weather.HasCredential())

	news, err := reg.Get("newsapi")
	require.NoError(t, err)
	assert.False(t, news.HasCredential())

	gdelt, err := reg.Get("GDELTAPI")
	require.NoError(t, err)
	assert.True(t, gdelt.HasCredential())
}

func TestBuildRegistry_FailsOnFirstInvalid(t *testing.T) {
	descs := []Descriptor{
		{Name: "Good", Endpoint: "https://good.example.com"},
		{Name: "Broken", Endpoint: "not a url"},
		{Name: "", Endpoint: "https://x.example.com"},
	}
	_, err := BuildRegistry(descs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build tool Broken")

	_, err = BuildRegistry([]Descriptor{{Endpoint: "https://x.example.com"}})
	assert.ErrorContains(t, err, "build tool #0")

	_, err = BuildRegistry([]Descriptor{
		{Name: "Same", Endpoint: "https://a.example.com"},
		{Name: "Same", Endpoint: "https://b.example.com"},
	})
	assert.ErrorIs(t, err, ErrToolConflict)
}
