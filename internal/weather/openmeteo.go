// Package weather fetches a seven-day regional forecast from Open-Meteo and
// caches it per region.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joelkehle/agrichain-advisor/internal/agri"
)

const (
	DefaultBaseURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultTTL      = 30 * time.Minute
	DefaultTimezone = "Asia/Kolkata"
	ForecastDays    = 7
)

type Coordinates struct {
	Lat float64
	Lon float64
}

// DefaultCoordinates is the centre of India, used for unknown regions.
var DefaultCoordinates = Coordinates{Lat: 20.5937, Lon: 78.9629}

// RegionCoordinates are keyed by lower-cased, trimmed region name. Only an
// exact match counts.
var RegionCoordinates = map[string]Coordinates{
	"maharashtra":    {19.7515, 75.7139},
	"nagpur":         {21.1458, 79.0882},
	"mumbai":         {19.0760, 72.8777},
	"pune":           {18.5204, 73.8567},
	"delhi":          {28.7041, 77.1025},
	"gujarat":        {22.2587, 71.1924},
	"karnataka":      {15.3173, 75.7139},
	"tamil nadu":     {11.1271, 78.6569},
	"west bengal":    {22.9868, 87.8550},
	"uttar pradesh":  {27.2046, 77.4977},
	"madhya pradesh": {23.4733, 80.4420},
	"rajasthan":      {27.0238, 74.2179},
	"haryana":        {29.238, 76.4319},
	"punjab":         {31.1471, 75.3413},
	"kerala":         {10.8505, 76.2711},
	"andhra pradesh": {15.9129, 79.7400},
	"telangana":      {18.1124, 79.0193},
}

func CoordinatesFor(region string) Coordinates {
	if c, ok := RegionCoordinates[strings.ToLower(strings.TrimSpace(region))]; ok {
		return c
	}
	return DefaultCoordinates
}

type Config struct {
	BaseURL    string
	TTL        time.Duration
	HTTPClient *http.Client
	Clock      func() time.Time
	Logger     *log.Logger
}

type entry struct {
	days      []agri.WeatherDay
	expiresAt time.Time
}

// Provider caches successful forecasts for TTL. Failures are not cached.
type Provider struct {
	baseURL string
	ttl     time.Duration
	http    *http.Client
	clock   func() time.Time
	logger  *log.Logger

	mu    sync.Mutex
	cache map[string]entry
	group singleflight.Group
}

func NewProvider(cfg Config) *Provider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		ttl:     cfg.TTL,
		http:    cfg.HTTPClient,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		cache:   map[string]entry{},
	}
}

// Forecast returns up to seven days for region, today first.
func (p *Provider) Forecast(ctx context.Context, region string) ([]agri.WeatherDay, error) {
	if strings.TrimSpace(region) == "" {
		return nil, errors.New("region is required")
	}
	key := "weather:" + region
	if days, ok := p.cached(key); ok {
		return days, nil
	}
	v, err, _ := p.group.Do(key, func() (any, error) {
		if days, ok := p.cached(key); ok {
			return days, nil
		}
		days, err := p.fetch(ctx, region)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cache[key] = entry{days: days, expiresAt: p.clock().Add(p.ttl)}
		p.mu.Unlock()
		return days, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]agri.WeatherDay)), nil
}

func (p *Provider) cached(key string) ([]agri.WeatherDay, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cache[key]
	if !ok || !e.expiresAt.After(p.clock()) {
		return nil, false
	}
	return clone(e.days), true
}

func clone(days []agri.WeatherDay) []agri.WeatherDay {
	return append([]agri.WeatherDay(nil), days...)
}

func (p *Provider) fetch(ctx context.Context, region string) ([]agri.WeatherDay, error) {
	c := CoordinatesFor(region)
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", c.Lon))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,relative_humidity_2m_max")
	q.Set("timezone", DefaultTimezone)
	q.Set("forecast_days", fmt.Sprint(ForecastDays))
	endpoint := p.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	p.logger.Printf("fetching forecast for %s (%.4f, %.4f)", region, c.Lat, c.Lon)
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("GET %s failed status=%d body=%s", p.baseURL, resp.StatusCode, string(blob))
	}
	var raw forecastResponse
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	return raw.days(), nil
}

type forecastResponse struct {
	Daily *struct {
		Time        []string   `json:"time"`
		TempMax     []*float64 `json:"temperature_2m_max"`
		TempMin     []*float64 `json:"temperature_2m_min"`
		Rainfall    []*float64 `json:"precipitation_sum"`
		HumidityMax []*float64 `json:"relative_humidity_2m_max"`
	} `json:"daily"`
}

// days uses the daily maximum temperature, then the minimum, then 0. Missing
// rainfall and humidity read as 0.
func (r forecastResponse) days() []agri.WeatherDay {
	if r.Daily == nil {
		return []agri.WeatherDay{}
	}
	d := r.Daily
	out := make([]agri.WeatherDay, 0, len(d.Time))
	for i := range d.Time {
		temp := at(d.TempMax, i)
		if temp == nil {
			temp = at(d.TempMin, i)
		}
		out = append(out, agri.WeatherDay{
			Temperature: agri.Float(agri.Or(temp, 0)),
			Humidity:    agri.Float(agri.Or(at(d.HumidityMax, i), 0)),
			Rainfall:    agri.Float(agri.Or(at(d.Rainfall, i), 0)),
		})
	}
	return out
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
