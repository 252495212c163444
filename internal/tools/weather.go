package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const WeatherToolName = "get_weather"

// WeatherTool looks up current conditions through OpenWeatherMap geocoding
// followed by the current weather endpoint.
type WeatherTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWeatherTool creates the tool
func NewWeatherTool(baseURL, apiKey string, client *http.Client) *WeatherTool {
	return &WeatherTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  defaultClient(client),
	}
}

func (t *WeatherTool) Spec() mcp.Tool {
	return mcp.NewTool(WeatherToolName,
		mcp.WithDescription("Get the current weather for a city or place"),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("City or place name, e.g. London or Paris, FR"),
		),
	)
}

type geoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

type currentWeather struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

// Execute takes the location as its first parameter
func (t *WeatherTool) Execute(ctx context.Context, params []string) (string, error) {
	location := ""
	if len(params) > 0 {
		location = normalizeLocation(params[0])
	}
	if location == "" {
		return "Error: Location parameter is missing", nil
	}
	if t.apiKey == "" {
		return "", errors.New("weather API key is not configured")
	}

	var places []geoResult
	geoURL := fmt.Sprintf("%s/geo/1.0/direct?q=%s&limit=1&appid=%s",
		t.baseURL, url.QueryEscape(location), url.QueryEscape(t.apiKey))
	if err := getJSON(ctx, t.client, geoURL, &places); err != nil {
		return "", fmt.Errorf("geocoding %q: %w", location, err)
	}
	if len(places) == 0 {
		return fmt.Sprintf("Error: Location '%s' not found", location), nil
	}
	place := places[0]

	var w currentWeather
	weatherURL := fmt.Sprintf("%s/data/2.5/weather?lat=%g&lon=%g&units=metric&appid=%s",
		t.baseURL, place.Lat, place.Lon, url.QueryEscape(t.apiKey))
	if err := getJSON(ctx, t.client, weatherURL, &w); err != nil {
		return "", fmt.Errorf("fetching weather for %q: %w", location, err)
	}

	return formatWeather(place, w), nil
}

// normalizeLocation strips a "location=" prefix and surrounding quotes
func normalizeLocation(raw string) string {
	loc := strings.TrimSpace(raw)
	loc = strings.TrimPrefix(loc, "location=")
	return strings.TrimSpace(strings.Trim(loc, `"'`))
}

func formatWeather(place geoResult, w currentWeather) string {
	city := w.Name
	if city == "" {
		city = place.Name
	}
	country := w.Sys.Country
	if country == "" {
		country = place.Country
	}
	description := "unknown conditions"
	if len(w.Weather) > 0 && w.Weather[0].Description != "" {
		description = w.Weather[0].Description
	}

	return fmt.Sprintf("Current weather in %s, %s: %.1f°C (feels like %.1f°C), %s. Humidity: %d%%, Wind speed: %g m/s.",
		city, country, w.Main.Temp, w.Main.FeelsLike, description, w.Main.Humidity, w.Wind.Speed)
}
