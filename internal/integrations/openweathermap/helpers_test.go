package openweathermap_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/integrations"
	"github.com/dbcv/platform/internal/integrations/integrationstest"
	"github.com/dbcv/platform/internal/integrations/openweathermap"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const testAPIKey = "test_api_key_12345"

var testBotID = uuid.MustParse("12345678-1234-5678-1234-567812345678")

func testOptions(upstream *integrationstest.Upstream) openweathermap.Options {
	return openweathermap.Options{
		Client:  resty.New(),
		BaseURL: upstream.URL,
		Timeout: 2 * time.Second,
	}
}

func apiKeyResolver() credentials.Resolver {
	resolver := credentials.NewStaticResolver()
	resolver.Set(testBotID, "openweathermap", "api_key", credentials.Credentials{
		"payload": map[string]any{"api_key": testAPIKey},
	})
	return resolver
}

func run(integration integrations.Integration, config map[string]any, resolver credentials.Resolver) (integrations.Envelope, *integrationstest.RecordingLogger) {
	logger := integrationstest.NewRecordingLogger()
	return integration.Execute(context.Background(), config, resolver, testBotID, logger), logger
}

func newUpstream(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *integrationstest.Upstream {
	return integrationstest.NewUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := routes[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		integrationstest.WriteJSON(w, http.StatusNotFound, `{"cod":"404","message":"unexpected path"}`)
	})
}

func jsonHandler(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		integrationstest.WriteJSON(w, status, body)
	}
}
