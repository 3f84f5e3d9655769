package tools

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/steve/internal/cache"
)

const forecastBody = `{
	"latitude": 14.625,
	"longitude": 121.125,
	"timezone": "Asia/Manila",
	"utc_offset_seconds": 28800,
	"hourly": {
		"time": ["2026-05-20T13:00", "2026-05-20T14:00", "2026-05-20T15:00"],
		"temperature_2m": [27.1, 27.8456, 28.9],
		"rain": [0, 0.1004, null]
	}
}`

type weatherBackend struct {
	srv     *httptest.Server
	search  atomic.Int32
	reverse atomic.Int32
	hits    string
}

func newWeatherBackend(t *testing.T) *weatherBackend {
	b := &weatherBackend{hits: `[{"lat":"14.5764","lon":"121.1180","display_name":"Cainta, Rizal"}]`}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		b.search.Add(1)
		assert.Equal(t, "Cainta, Rizal, ph", r.URL.Query().Get("q"))
		assert.Equal(t, "geo-key", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, b.hits)
	})
	mux.HandleFunc("/reverse", func(w http.ResponseWriter, r *http.Request) {
		b.reverse.Add(1)
		assert.Equal(t, "14.625", r.URL.Query().Get("lat"))
		assert.Equal(t, "121.125", r.URL.Query().Get("lon"))
		fmt.Fprint(w, `{"address":{"region":"Calabarzon","state":"Rizal"}}`)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "14.5764", q.Get("latitude"))
		assert.Equal(t, "temperature_2m,rain", q.Get("hourly"))
		assert.Equal(t, "auto", q.Get("timezone"))
		assert.Equal(t, "jma_seamless", q.Get("models"))
		fmt.Fprint(w, forecastBody)
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *weatherBackend) tool(t *testing.T, c cache.Cache, now time.Time) *Weather {
	w := NewWeather(testFetcher(t, c), WeatherConfig{
		GeocodeURL:    b.srv.URL + "/",
		GeocodeAPIKey: "geo-key",
		ForecastURL:   b.srv.URL + "/forecast",
		Model:         "jma_seamless",
	}, silentLog())
	w.now = func() time.Time { return now }
	return w
}

func TestWeather(t *testing.T) {
	b := newWeatherBackend(t)
	now := time.Date(2026, 5, 20, 6, 30, 0, 0, time.UTC) // 14:30 in Manila

	out, err := invoke(t, b.tool(t, nil, now), map[string]any{"city": "Cainta", "region": "Rizal"})
	require.NoError(t, err)
	assert.Equal(t, "city: Cainta\n"+
		"region: Rizal\n"+
		"country: ph\n"+
		"currentTime: 2026-05-20 14:00:00+08:00\n"+
		"currentTemperature: 27.846\n"+
		"currentRain: 0.1", out.String())
}

func TestWeatherBeforeForecastStart(t *testing.T) {
	b := newWeatherBackend(t)
	now := time.Date(2026, 5, 19, 0, 0, 0, 0, time.UTC)

	out, err := invoke(t, b.tool(t, nil, now), map[string]any{"city": "Cainta", "region": "Rizal"})
	require.NoError(t, err)
	at, _ := out.Record.Get("currentTime")
	assert.Equal(t, "2026-05-20 13:00:00+08:00", at)
}

func TestWeatherUsesCache(t *testing.T) {
	b := newWeatherBackend(t)
	mem := cache.NewMemory()
	defer mem.Close()
	w := b.tool(t, mem, time.Date(2026, 5, 20, 6, 30, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		_, err := invoke(t, w, map[string]any{"city": "Cainta", "region": "Rizal"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), b.search.Load())
	assert.Equal(t, int32(1), b.reverse.Load())
}

func TestWeatherUnknownPlace(t *testing.T) {
	b := newWeatherBackend(t)
	b.hits = `[]`
	_, err := invoke(t, b.tool(t, nil, time.Now()), map[string]any{"city": "Cainta", "region": "Rizal"})
	assert.ErrorContains(t, err, "no matching location")
}

func TestWeatherRequiresRegion(t *testing.T) {
	b := newWeatherBackend(t)
	_, err := invoke(t, b.tool(t, nil, time.Now()), map[string]any{"city": "Cainta"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "region", verr.Param)
}

func TestForecastCurrentMissingData(t *testing.T) {
	var fc forecastResponse
	_, err := fc.current(time.Now())
	assert.ErrorIs(t, err, errNoHourly)
}

func TestRound3(t *testing.T) {
	v := 1.23456
	assert.Equal(t, 1.235, round3(&v))
	assert.Equal(t, 0.0, round3(nil))
}
