package apirouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
)

// ErrorHandlerMiddleware renders the last error recorded with c.Error as a
// JSON ErrorResponse. Handlers abort with AbortWithError and never write
// error bodies themselves.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var response ErrorResponse
		response.Parse(last.Err)
		handleErrorResponse(c, response)
	}
}

// ErrorResponse is the body of every non-envelope API error. Code selects
// the HTTP status and is mirrored in Status.
type ErrorResponse struct {
	Err     error       `json:"-"`
	Code    int         `json:"-"`
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e ErrorResponse) Error() string {
	return e.Message
}

func (e ErrorResponse) Unwrap() error {
	return e.Err
}

// Parse classifies err: an ErrorResponse is taken as is, binding validation
// failures become 422 with one message per field, malformed bodies become
// 400 "invalid JSON", anything else keeps its message and no code.
func (e *ErrorResponse) Parse(err error) {
	var response ErrorResponse
	if errors.As(err, &response) {
		*e = response
		return
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fe := range validationErrors {
			messages = append(messages, formatValidationError(fe.Field(), fe.Tag(), fe.Param()))
		}
		*e = ErrorResponse{
			Err:     err,
			Code:    http.StatusUnprocessableEntity,
			Message: "validation error",
			Data:    messages,
		}
		return
	}

	if isInvalidJSON(err) {
		*e = ErrorResponse{Err: err, Code: http.StatusBadRequest, Message: "invalid JSON"}
		return
	}

	*e = ErrorResponse{Err: err, Message: err.Error()}
}

// formatValidationError renders one field failure. Field names come from
// json tags, see NewRouter.
func formatValidationError(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "max", "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	}
	if param != "" {
		return fmt.Sprintf("%s failed %s=%s validation", field, tag, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}

func isInvalidJSON(err error) bool {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &syntaxError) ||
		errors.As(err, &unmarshalTypeError)
}

// handleErrorResponse writes response. Without a code it falls back to the
// status already set on the writer, then to 500.
func handleErrorResponse(c *gin.Context, response ErrorResponse) {
	if response.Code == 0 {
		response.Code = http.StatusInternalServerError
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			response.Code = status
		}
	}
	response.Status = response.Code
	c.JSON(response.Code, response)
}

func AbortWithError(c *gin.Context, code int, err error) {
	c.Status(code)
	_ = c.Error(err)
	c.Abort()
}

func AbortWithValidationError(c *gin.Context, err error) {
	var response ErrorResponse
	response.Parse(err)
	if response.Code == 0 {
		response.Code = http.StatusBadRequest
	}
	AbortWithError(c, response.Code, response)
}

func NewErrInternalServer(err error) ErrorResponse {
	return ErrorResponse{
		Err:     pkgerrors.WithStack(err),
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
	}
}

func NewErrBadRequest(err error) ErrorResponse {
	return ErrorResponse{
		Err:     err,
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	}
}

func NewErrNotFound(resource string) ErrorResponse {
	return ErrorResponse{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}
