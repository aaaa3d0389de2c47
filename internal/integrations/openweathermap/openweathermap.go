// Package openweathermap implements the OpenWeatherMap integrations: the
// 3-hour forecast, the daily forecast and air pollution.
package openweathermap

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dbcv/platform/internal/integrations"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"

	provider      = "openweathermap"
	strategy      = "api_key"
	providerLabel = "OpenWeatherMap"
	category      = "weather"
	iconS3Key     = "icons/integrations/openweathermap.svg"
	color         = "#f1603d"
	version       = "1.0.0"
	libraryName   = "go-resty/resty"
	apiKeyParam   = "appid"
)

// Options configure every OpenWeatherMap integration.
type Options struct {
	Client  *resty.Client
	BaseURL string
	Timeout time.Duration
}

func (o Options) baseURL() string {
	if o.BaseURL == "" {
		return DefaultBaseURL
	}
	return o.BaseURL
}

// All returns the OpenWeatherMap integrations in registration order.
func All(opts Options) []integrations.Integration {
	return []integrations.Integration{
		NewForecast(opts),
		NewDailyForecast(opts),
		NewAirPollution(opts),
	}
}

func newMetadata(id, name, description string, fields []integrations.Field, examples []integrations.Example) *integrations.Metadata {
	return &integrations.Metadata{
		ID:                  id,
		Version:             version,
		Name:                name,
		Description:         description,
		Category:            category,
		IconS3Key:           iconS3Key,
		Color:               color,
		Schema:              integrations.Schema{Fields: fields},
		CredentialsProvider: provider,
		CredentialsStrategy: strategy,
		LibraryName:         libraryName,
		Examples:            examples,
		ProviderLabel:       providerLabel,
	}
}

func newEngine(opts Options, meta *integrations.Metadata, path string) *integrations.HTTPIntegration {
	return &integrations.HTTPIntegration{
		Meta:        meta,
		Client:      opts.Client,
		BaseURL:     opts.baseURL(),
		Path:        path,
		APIKeyParam: apiKeyParam,
		Timeout:     opts.Timeout,
	}
}

// Location is a parsed "location" config value: either coordinates or a
// place name to hand to the upstream as-is.
type Location struct {
	Raw      string
	IsCoords bool
	Lat      float64
	Lon      float64
	// LatRaw and LonRaw are the trimmed input halves, sent upstream verbatim.
	LatRaw string
	LonRaw string
}

// ParseLocation treats s as coordinates only when it holds exactly one comma,
// both trimmed halves parse as floats and they fall inside the latitude and
// longitude ranges. Everything else is a place name.
func ParseLocation(s string) Location {
	loc := Location{Raw: s}

	if strings.Count(s, ",") != 1 {
		return loc
	}
	latRaw, lonRaw, _ := strings.Cut(s, ",")
	latRaw = strings.TrimSpace(latRaw)
	lonRaw = strings.TrimSpace(lonRaw)

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return loc
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return loc
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return loc
	}

	loc.IsCoords = true
	loc.Lat, loc.Lon = lat, lon
	loc.LatRaw, loc.LonRaw = latRaw, lonRaw
	return loc
}

// apply sets either lat/lon or q on params.
func (l Location) apply(params url.Values) {
	if l.IsCoords {
		params.Set("lat", l.LatRaw)
		params.Set("lon", l.LonRaw)
		return
	}
	params.Set("q", l.Raw)
}

// upstreamUnits maps the config units to the API's vocabulary, where kelvin
// is called "standard".
func upstreamUnits(units string) string {
	if units == "kelvin" {
		return "standard"
	}
	return units
}

func locationField(description string) integrations.Field {
	return integrations.Field{
		Name:        "location",
		Kind:        integrations.FieldString,
		Title:       "Location",
		Description: description,
		Required:    true,
	}
}

func unitsField() integrations.Field {
	return integrations.Field{
		Name:        "units",
		Kind:        integrations.FieldEnum,
		Title:       "Units",
		Description: "Единицы измерения температуры (metric - Цельсий, imperial - Фаренгейт, kelvin - Кельвин)",
		Enum:        []string{"metric", "imperial", "kelvin"},
		Default:     "metric",
	}
}

func langField() integrations.Field {
	return integrations.Field{
		Name:        "lang",
		Kind:        integrations.FieldString,
		Title:       "Language",
		Description: "Язык ответа (ru, en, и т.д.)",
		Default:     "ru",
	}
}

func notFound(config map[string]any) string {
	location, _ := config["location"].(string)
	return "City not found: " + location
}

// pick copies the allow-listed keys of src; missing keys become null.
func pick(src map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = src[k]
	}
	return out
}

func objectOr(v any, fallback map[string]any) any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return fallback
}

func listOr(v any) any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}

func projectForecast(body map[string]any, cityKeys []string) map[string]any {
	city, _ := body["city"].(map[string]any)
	projectedCity := pick(city, cityKeys...)
	projectedCity["coord"] = objectOr(city["coord"], map[string]any{})

	message, ok := body["message"]
	if !ok {
		message = 0
	}

	return map[string]any{
		"city":    projectedCity,
		"cnt":     body["cnt"],
		"cod":     body["cod"],
		"message": message,
		"list":    listOr(body["list"]),
	}
}

func forecastParams(config map[string]any) url.Values {
	params := url.Values{}
	ParseLocation(config["location"].(string)).apply(params)
	params.Set("units", upstreamUnits(config["units"].(string)))
	params.Set("lang", config["lang"].(string))
	if cnt, ok := config["cnt"].(int64); ok {
		params.Set("cnt", strconv.FormatInt(cnt, 10))
	}
	return params
}
