package apirouter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dbcv/platform/internal/apirouter"
	"github.com/dbcv/platform/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	policy := apirouter.NewCORSPolicy([]string{"http://localhost:5173"})

	router := gin.New()
	router.Use(apirouter.RecoveryMiddleware(logging.FromZap(zap.New(core)), policy))
	router.GET("/panic", func(c *gin.Context) {
		panic(errBoom)
	})

	t.Run("allowed origin gets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"detail":"Internal Server Error"}`, w.Body.String())
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.NotContains(t, w.Body.String(), "boom")
	})

	t.Run("other origin gets none", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	entries := logs.FilterMessage("unhandled error").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Contains(t, fields["stack"], "panic")
}
