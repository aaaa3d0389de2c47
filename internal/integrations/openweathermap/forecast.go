package openweathermap

import (
	"context"
	"net/url"

	"github.com/dbcv/platform/internal/integrations"
	"github.com/samber/lo"
)

const ForecastID = "openweathermap_get_forecast"

var forecastCityKeys = []string{"id", "name", "country", "population", "timezone", "sunrise", "sunset"}

// NewForecast returns the 5 day / 3 hour forecast integration.
func NewForecast(opts Options) *integrations.HTTPIntegration {
	meta := newMetadata(
		ForecastID,
		"OpenWeatherMap Get Forecast",
		"Получение прогноза погоды на 5 дней с шагом 3 часа через OpenWeatherMap Forecast API",
		[]integrations.Field{
			locationField("Название города (например: 'Moscow' или 'Moscow,ru') или координаты 'lat,lon'"),
			unitsField(),
			langField(),
			{
				Name:        "cnt",
				Kind:        integrations.FieldInteger,
				Title:       "Count",
				Description: "Количество временных меток в ответе (от 1 до 40)",
				Minimum:     lo.ToPtr[int64](1),
				Maximum:     lo.ToPtr[int64](40),
				Clamp:       true,
			},
		},
		[]integrations.Example{
			{Title: "Прогноз для Москвы", Config: map[string]any{"location": "Moscow,ru", "units": "metric", "lang": "ru"}},
			{Title: "Прогноз по координатам", Config: map[string]any{"location": "55.7558,37.6173", "cnt": 8}},
		},
	)

	engine := newEngine(opts, meta, "/data/2.5/forecast")
	engine.BuildParams = func(_ context.Context, _ *integrations.Call, config map[string]any) (url.Values, *integrations.Error) {
		return forecastParams(config), nil
	}
	engine.Project = func(body map[string]any, _ *integrations.Call) map[string]any {
		return projectForecast(body, forecastCityKeys)
	}
	engine.NotFound = notFound
	return engine
}
