// Package weather fetches current conditions and a short forecast from
// weatherapi.com.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/agritool/internal/domain"
)

const (
	// DefaultBaseURL is the weatherapi.com v1 endpoint.
	DefaultBaseURL = "https://api.weatherapi.com/v1"

	// DefaultForecastDays is the number of forecast days requested.
	DefaultForecastDays = 3

	// errCodeNoLocation is weatherapi.com's "No matching location found".
	errCodeNoLocation = 1006
)

// ErrLocationNotFound is returned when the provider does not know the location.
var ErrLocationNotFound = fmt.Errorf("%w: location not found", domain.ErrValidation)

// Conditions are the current observations.
type Conditions struct {
	TempC     float64 `json:"temp_c"`
	Condition string  `json:"condition"`
	Humidity  int     `json:"humidity"`
	WindKPH   float64 `json:"wind_kph"`
	PrecipMM  float64 `json:"precip_mm"`
}

// Day is one forecast day.
type Day struct {
	Date         string  `json:"date"`
	MinTempC     float64 `json:"min_temp_c"`
	MaxTempC     float64 `json:"max_temp_c"`
	ChanceOfRain int     `json:"chance_of_rain"`
	PrecipMM     float64 `json:"precip_mm"`
	Condition    string  `json:"condition"`
}

// Report is the weather for one location.
type Report struct {
	Location string     `json:"location"`
	Region   string     `json:"region,omitempty"`
	Country  string     `json:"country,omitempty"`
	Current  Conditions `json:"current"`
	Days     []Day      `json:"days"`
}

// Provider provides weather reports.
// This interface enables mocking the weather collaborator in handler tests.
type Provider interface {
	Forecast(ctx context.Context, location string) (*Report, error)
}

// Client is the weatherapi.com Provider.
type Client struct {
	baseURL    string
	apiKey     string
	days       int
	httpClient *http.Client
}

// NewClient creates a weatherapi.com client.
func NewClient(apiKey, baseURL string, days int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if days <= 0 {
		days = DefaultForecastDays
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		days:       days,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiCondition struct {
	Text string `json:"text"`
}

type apiResponse struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC     float64      `json:"temp_c"`
		Condition apiCondition `json:"condition"`
		Humidity  int          `json:"humidity"`
		WindKPH   float64      `json:"wind_kph"`
		PrecipMM  float64      `json:"precip_mm"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC          float64      `json:"maxtemp_c"`
				MinTempC          float64      `json:"mintemp_c"`
				TotalPrecipMM     float64      `json:"totalprecip_mm"`
				DailyChanceOfRain int          `json:"daily_chance_of_rain"`
				Condition         apiCondition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Forecast fetches current conditions and the forecast for location.
func (c *Client) Forecast(ctx context.Context, location string) (*Report, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("Forecast: %w: location is required", domain.ErrValidation)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", location)
	q.Set("days", strconv.Itoa(c.days))
	q.Set("aqi", "no")
	q.Set("alerts", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("Forecast: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Forecast: %w: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("Forecast: read body: %w: %v", domain.ErrExternalService, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
			if apiErr.Error.Code == errCodeNoLocation {
				return nil, fmt.Errorf("Forecast: %q: %w", location, ErrLocationNotFound)
			}
			return nil, fmt.Errorf("Forecast: %w: code %d: %s", domain.ErrExternalService, apiErr.Error.Code, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Forecast: %w: status %d", domain.ErrExternalService, resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("Forecast: decode: %w: %v", domain.ErrExternalService, err)
	}
	return toReport(parsed), nil
}

func toReport(r apiResponse) *Report {
	report := &Report{
		Location: r.Location.Name,
		Region:   r.Location.Region,
		Country:  r.Location.Country,
		Current: Conditions{
			TempC:     r.Current.TempC,
			Condition: r.Current.Condition.Text,
			Humidity:  r.Current.Humidity,
			WindKPH:   r.Current.WindKPH,
			PrecipMM:  r.Current.PrecipMM,
		},
		Days: make([]Day, 0, len(r.Forecast.ForecastDay)),
	}
	for _, fd := range r.Forecast.ForecastDay {
		report.Days = append(report.Days, Day{
			Date:         fd.Date,
			MinTempC:     fd.Day.MinTempC,
			MaxTempC:     fd.Day.MaxTempC,
			ChanceOfRain: fd.Day.DailyChanceOfRain,
			PrecipMM:     fd.Day.TotalPrecipMM,
			Condition:    fd.Day.Condition.Text,
		})
	}
	return report
}

var _ Provider = (*Client)(nil)
