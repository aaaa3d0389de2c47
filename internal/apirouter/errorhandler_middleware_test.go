package apirouter_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dbcv/platform/internal/apirouter"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveWithErrorHandler(t *testing.T, handler gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(apirouter.ErrorHandlerMiddleware())
	r.POST("/", handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestErrorResponse_Parse(t *testing.T) {
	t.Parallel()

	type executeInput struct {
		Tool  string `validate:"required"`
		Units string `validate:"oneof=metric imperial"`
	}
	validationErr := validator.New().Struct(executeInput{Units: "kelvins"})
	require.Error(t, validationErr)

	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "error response passes through",
			err:     apirouter.NewErrNotFound("integration"),
			code:    http.StatusNotFound,
			message: "integration not found",
		},
		{
			name:    "wrapped error response",
			err:     errors.Join(errors.New("context"), apirouter.NewErrBadRequest(errors.New("invalid bot_id"))),
			code:    http.StatusBadRequest,
			message: "invalid bot_id",
		},
		{
			name:    "validation errors",
			err:     validationErr,
			code:    http.StatusUnprocessableEntity,
			message: "validation error",
		},
		{
			name:    "syntax error",
			err:     json.Unmarshal([]byte(`{"config":`), &map[string]any{}),
			code:    http.StatusBadRequest,
			message: "invalid JSON",
		},
		{
			name:    "plain error has no code",
			err:     errors.New("boom"),
			code:    0,
			message: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response apirouter.ErrorResponse
			response.Parse(tt.err)
			assert.Equal(t, tt.code, response.Code)
			assert.Equal(t, tt.message, response.Message)
		})
	}
}

func TestErrorResponse_ValidationMessages(t *testing.T) {
	t.Parallel()

	type executeInput struct {
		Tool  string `validate:"required"`
		Units string `validate:"oneof=metric imperial"`
		Count int    `validate:"max=40"`
	}
	err := validator.New().Struct(executeInput{Units: "kelvins", Count: 41})

	var response apirouter.ErrorResponse
	response.Parse(err)
	assert.Equal(t, []string{
		"Tool is required",
		"Units must be one of: metric imperial",
		"Count must be less than or equal to 40",
	}, response.Data)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		code, body := serveWithErrorHandler(t, func(c *gin.Context) {
			apirouter.AbortWithError(c, http.StatusNotFound, apirouter.NewErrNotFound("integration"))
		})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, float64(http.StatusNotFound), body["status"])
		assert.Equal(t, "integration not found", body["message"])
		assert.NotContains(t, body, "data")
	})

	t.Run("internal error hides the cause", func(t *testing.T) {
		code, body := serveWithErrorHandler(t, func(c *gin.Context) {
			apirouter.AbortWithError(c, http.StatusInternalServerError, apirouter.NewErrInternalServer(errors.New("pq: relation does not exist")))
		})
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "internal server error", body["message"])
	})

	t.Run("plain error keeps the writer status", func(t *testing.T) {
		code, body := serveWithErrorHandler(t, func(c *gin.Context) {
			apirouter.AbortWithError(c, http.StatusConflict, errors.New("already exists"))
		})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, float64(http.StatusConflict), body["status"])
		assert.Equal(t, "already exists", body["message"])
	})

	t.Run("plain error without status is 500", func(t *testing.T) {
		code, _ := serveWithErrorHandler(t, func(c *gin.Context) {
			_ = c.Error(errors.New("unexpected"))
		})
		assert.Equal(t, http.StatusInternalServerError, code)
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		code, body := serveWithErrorHandler(t, func(c *gin.Context) {
			var req struct {
				Config map[string]any `json:"config"`
			}
			if err := json.Unmarshal([]byte(`{"config":[`), &req); err != nil {
				apirouter.AbortWithValidationError(c, err)
			}
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "invalid JSON", body["message"])
	})
}
