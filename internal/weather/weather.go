// Package weather supplies cloud-cover data used to attenuate shadow
// opacity. Weather is strictly best-effort: every failure degrades to a
// clear-sky sunlight factor of 1 and never blocks a shadow computation.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Conditions describes sky state at a place and time. CloudCover is nil
// when the provider had no data; SunlightFactor is always usable and falls
// in [0, 1].
type Conditions struct {
	CloudCover     *float64 `json:"cloudCover,omitempty"` // 0..1
	SunlightFactor float64  `json:"sunlightFactor"`       // 0..1, 1 = clear sky
}

// Clear is the fallback when no weather data is available.
var Clear = Conditions{SunlightFactor: 1}

// Provider answers current-weather queries.
type Provider interface {
	CurrentWeather(ctx context.Context, lat, lon float64, at time.Time) (Conditions, error)
}

const defaultOpenMeteoEndpoint = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoProvider fetches cloud cover from the Open-Meteo API.
type OpenMeteoProvider struct {
	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger
}

func NewOpenMeteoProvider(endpoint string, timeout time.Duration, logger *zap.SugaredLogger) *OpenMeteoProvider {
	if endpoint == "" {
		endpoint = defaultOpenMeteoEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenMeteoProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type openMeteoResponse struct {
	Current struct {
		CloudCover float64 `json:"cloud_cover"` // percent
	} `json:"current"`
}

// CurrentWeather queries cloud cover for the location. A fully overcast sky
// still passes 25% of sunlight, so the factor bottoms out at 0.25.
func (p *OpenMeteoProvider) CurrentWeather(ctx context.Context, lat, lon float64, _ time.Time) (Conditions, error) {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	v.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	v.Set("current", "cloud_cover")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+v.Encode(), nil)
	if err != nil {
		return Clear, fmt.Errorf("creating weather request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Clear, fmt.Errorf("querying weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Clear, fmt.Errorf("weather API returned %s", resp.Status)
	}

	var decoded openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Clear, fmt.Errorf("decoding weather response: %w", err)
	}

	cover := decoded.Current.CloudCover / 100
	if cover < 0 {
		cover = 0
	} else if cover > 1 {
		cover = 1
	}
	return Conditions{
		CloudCover:     &cover,
		SunlightFactor: 1 - 0.75*cover,
	}, nil
}
