package openweathermap

import (
	"context"
	"net/url"

	"github.com/dbcv/platform/internal/integrations"
	"github.com/samber/lo"
)

const DailyForecastID = "openweathermap_get_daily_forecast"

var dailyForecastCityKeys = []string{"id", "name", "country", "population", "timezone"}

// NewDailyForecast returns the 7 day daily forecast integration.
func NewDailyForecast(opts Options) *integrations.HTTPIntegration {
	meta := newMetadata(
		DailyForecastID,
		"OpenWeatherMap Get Daily Forecast",
		"Получение ежедневного прогноза погоды на 7 дней через OpenWeatherMap Daily Forecast API",
		[]integrations.Field{
			locationField("Название города (например: 'Moscow' или 'Moscow,ru') или координаты 'lat,lon'"),
			unitsField(),
			langField(),
			{
				Name:        "cnt",
				Kind:        integrations.FieldInteger,
				Title:       "Count",
				Description: "Количество дней прогноза (максимум 7, по умолчанию 7)",
				Default:     int64(7),
				Minimum:     lo.ToPtr[int64](1),
				Maximum:     lo.ToPtr[int64](7),
				Clamp:       true,
			},
		},
		[]integrations.Example{
			{Title: "Ежедневный прогноз для Москвы", Config: map[string]any{"location": "55.7558,37.6173", "units": "metric", "lang": "ru"}},
			{Title: "Ежедневный прогноз на английском", Config: map[string]any{"location": "51.5074,-0.1278", "units": "imperial", "lang": "en"}},
		},
	)

	engine := newEngine(opts, meta, "/data/2.5/forecast/daily")
	engine.BuildParams = func(_ context.Context, _ *integrations.Call, config map[string]any) (url.Values, *integrations.Error) {
		return forecastParams(config), nil
	}
	engine.Project = func(body map[string]any, _ *integrations.Call) map[string]any {
		return projectForecast(body, dailyForecastCityKeys)
	}
	engine.NotFound = notFound
	return engine
}
