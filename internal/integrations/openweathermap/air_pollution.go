package openweathermap

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dbcv/platform/internal/integrations"
)

const AirPollutionID = "openweathermap_get_air_pollution"

var errEndRequired = errors.New("end is required when start is specified")

const usedCoordKey = "coord"

// NewAirPollution returns the air pollution integration. Place names are
// resolved to coordinates through the geocoding API first.
func NewAirPollution(opts Options) *integrations.HTTPIntegration {
	meta := newMetadata(
		AirPollutionID,
		"OpenWeatherMap Get Air Pollution",
		"Получение данных о текущем и прогнозируемом загрязнении воздуха через OpenWeatherMap Air Pollution API",
		[]integrations.Field{
			locationField("Координаты 'lat,lon' (например: '55.7558,37.6173') или название города для получения координат"),
			{
				Name:        "start",
				Kind:        integrations.FieldInteger,
				Title:       "Start",
				Description: "Unix timestamp начала периода (опционально, для прогноза)",
			},
			{
				Name:        "end",
				Kind:        integrations.FieldInteger,
				Title:       "End",
				Description: "Unix timestamp конца периода (опционально, для прогноза). Если указан start, то end обязателен",
			},
		},
		[]integrations.Example{
			{Title: "Текущее загрязнение воздуха в Москве", Config: map[string]any{"location": "55.7558,37.6173"}},
			{Title: "Прогноз загрязнения воздуха", Config: map[string]any{"location": "55.7558,37.6173", "start": 1609459200, "end": 1609545600}},
			{Title: "Загрязнение по названию города", Config: map[string]any{"location": "Moscow,ru"}},
		},
	)

	engine := newEngine(opts, meta, "/data/2.5/air_pollution")
	engine.Validate = func(config map[string]any) error {
		_, hasStart := config["start"]
		_, hasEnd := config["end"]
		if hasStart && !hasEnd {
			return errEndRequired
		}
		return nil
	}
	engine.BuildParams = func(ctx context.Context, call *integrations.Call, config map[string]any) (url.Values, *integrations.Error) {
		location := config["location"].(string)

		lat, lon, ierr := resolveCoordinates(ctx, call, location)
		if ierr != nil {
			return nil, ierr
		}
		call.Set(usedCoordKey, map[string]any{"lat": lat, "lon": lon})

		params := url.Values{}
		params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

		start, hasStart := config["start"].(int64)
		end, hasEnd := config["end"].(int64)
		if hasStart && hasEnd {
			params.Set("start", strconv.FormatInt(start, 10))
			params.Set("end", strconv.FormatInt(end, 10))
		}
		return params, nil
	}
	engine.Project = func(body map[string]any, call *integrations.Call) map[string]any {
		used, _ := call.Value(usedCoordKey).(map[string]any)
		return map[string]any{
			"coord": objectOr(body["coord"], used),
			"list":  listOr(body["list"]),
		}
	}
	return engine
}

type geocodeMatch struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func resolveCoordinates(ctx context.Context, call *integrations.Call, location string) (float64, float64, *integrations.Error) {
	if loc := ParseLocation(location); loc.IsCoords {
		return loc.Lat, loc.Lon, nil
	}

	resp, err := call.Get(ctx, "/geo/1.0/direct", url.Values{
		"q":     {location},
		"limit": {"1"},
	})
	if err != nil {
		return 0, 0, integrations.ClassifyTransportError(err, "Geocoding error")
	}
	if resp.Status != http.StatusOK {
		return 0, 0, integrations.NewErrUpstream(resp.Status, "Failed to get coordinates for city")
	}

	var matches []geocodeMatch
	if err := resp.DecodeJSON(&matches); err != nil {
		return 0, 0, integrations.NewErrTransport("Geocoding error", err)
	}
	if len(matches) == 0 {
		return 0, 0, integrations.NewErrLocationNotFound(location)
	}
	if matches[0].Lat == nil || matches[0].Lon == nil {
		return 0, 0, &integrations.Error{
			Kind:        integrations.ErrorInvalidConfig,
			Code:        http.StatusBadRequest,
			Description: "Failed to determine coordinates",
		}
	}
	return *matches[0].Lat, *matches[0].Lon, nil
}
