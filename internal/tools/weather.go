package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/logging"
)

const (
	openMeteoTimeLayout = "2006-01-02T15:04"
	currentTimeLayout   = "2006-01-02 15:04:05-07:00"
)

// WeatherConfig holds the weather tool endpoints.
type WeatherConfig struct {
	GeocodeURL    string
	GeocodeAPIKey string
	ForecastURL   string
	Model         string
}

// Weather reports the current temperature and rain for a city.
type Weather struct {
	fetcher *Fetcher
	cfg     WeatherConfig
	now     func() time.Time
	log     *logging.Logger
}

// NewWeather creates the weather tool.
func NewWeather(f *Fetcher, cfg WeatherConfig, log *logging.Logger) *Weather {
	cfg.GeocodeURL = strings.TrimRight(cfg.GeocodeURL, "/")
	return &Weather{fetcher: f, cfg: cfg, now: time.Now, log: log.Sub("tools.weather")}
}

func (w *Weather) Spec() Spec {
	return Spec{
		Name:        "weather-data",
		Description: "Get the current weather data for a specified city and province.",
		Params: []Param{
			{Name: "city", Type: TypeString, Description: "The name of the city or town to get the weather for.", Required: true},
			{Name: "region", Type: TypeString, Description: "The name of the province or region of the city to get the weather for.", Required: true},
			{Name: "country", Type: TypeString, Description: "The two letter country code to get the weather for.", Default: "ph"},
		},
		Route: RouteTerminate,
	}
}

func (w *Weather) Invoke(ctx context.Context, args Args) (domain.Output, error) {
	city, region, country := args.String("city"), args.String("region"), args.String("country")

	lat, lon, err := w.coordinates(ctx, fmt.Sprintf("%s, %s, %s", city, region, country))
	if err != nil {
		return domain.Output{}, err
	}
	fc, err := w.forecast(ctx, lat, lon)
	if err != nil {
		return domain.Output{}, err
	}
	cur, err := fc.current(w.now())
	if err != nil {
		return domain.Output{}, err
	}
	state, err := w.region(ctx, fc.Latitude, fc.Longitude)
	if err != nil {
		return domain.Output{}, err
	}

	w.log.Debug().Str("city", city).Str("timezone", fc.Timezone).Msg("weather fetched")
	return domain.RecordOutput(domain.Record{
		{Key: "city", Value: city},
		{Key: "region", Value: state},
		{Key: "country", Value: country},
		{Key: "currentTime", Value: cur.at.Format(currentTimeLayout)},
		{Key: "currentTemperature", Value: cur.temperature},
		{Key: "currentRain", Value: cur.rain},
	}), nil
}

type geocodeHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (w *Weather) coordinates(ctx context.Context, q string) (float64, float64, error) {
	v := url.Values{}
	v.Set("q", q)
	v.Set("api_key", w.cfg.GeocodeAPIKey)

	var hits []geocodeHit
	if err := w.fetcher.GetJSON(ctx, w.cfg.GeocodeURL+"/search?"+v.Encode(), &hits); err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", q, err)
	}
	if len(hits) == 0 {
		return 0, 0, fmt.Errorf("geocode %q: no matching location", q)
	}
	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: bad latitude %q", q, hits[0].Lat)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: bad longitude %q", q, hits[0].Lon)
	}
	return lat, lon, nil
}

type reverseGeocode struct {
	Address struct {
		State  string `json:"state"`
		Region string `json:"region"`
	} `json:"address"`
}

func (w *Weather) region(ctx context.Context, lat, lon float64) (string, error) {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	v.Set("api_key", w.cfg.GeocodeAPIKey)

	var rev reverseGeocode
	if err := w.fetcher.GetJSON(ctx, w.cfg.GeocodeURL+"/reverse?"+v.Encode(), &rev); err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if rev.Address.State != "" {
		return rev.Address.State, nil
	}
	return rev.Address.Region, nil
}

type forecastResponse struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`
	Hourly           struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		Rain        []*float64 `json:"rain"`
	} `json:"hourly"`
}

func (w *Weather) forecast(ctx context.Context, lat, lon float64) (*forecastResponse, error) {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	v.Set("hourly", "temperature_2m,rain")
	v.Set("timezone", "auto")
	if w.cfg.Model != "" {
		v.Set("models", w.cfg.Model)
	}

	var fc forecastResponse
	if err := w.fetcher.GetJSON(ctx, w.cfg.ForecastURL+"?"+v.Encode(), &fc); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return &fc, nil
}

type reading struct {
	at          time.Time
	temperature float64
	rain        float64
}

var errNoHourly = errors.New("forecast: missing hourly temperature or rain data")

// current picks the latest hourly entry at or before now, or the first entry
// when the whole forecast lies in the future.
func (fc *forecastResponse) current(now time.Time) (reading, error) {
	h := fc.Hourly
	if len(h.Time) == 0 || len(h.Temperature) == 0 || len(h.Rain) == 0 {
		return reading{}, errNoHourly
	}
	n := min(len(h.Time), len(h.Temperature), len(h.Rain))
	loc := time.FixedZone(fc.Timezone, fc.UTCOffsetSeconds)

	pick := -1
	var pickAt time.Time
	for i := 0; i < n; i++ {
		at, err := time.ParseInLocation(openMeteoTimeLayout, h.Time[i], loc)
		if err != nil {
			return reading{}, fmt.Errorf("forecast: bad time %q: %w", h.Time[i], err)
		}
		if i == 0 {
			pickAt = at
		}
		if at.After(now) {
			break
		}
		pick, pickAt = i, at
	}
	if pick < 0 {
		pick = 0
	}
	return reading{
		at:          pickAt,
		temperature: round3(h.Temperature[pick]),
		rain:        round3(h.Rain[pick]),
	}, nil
}

// round3 rounds to three decimals; a null reading counts as zero.
func round3(v *float64) float64 {
	if v == nil {
		return 0
	}
	return math.Round(*v*1000) / 1000
}
