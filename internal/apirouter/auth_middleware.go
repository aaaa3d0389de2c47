package apirouter

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	ErrMissingAuthHeader  = errors.New("missing authorization header")
	ErrInvalidBearerToken = errors.New("invalid bearer token format")
)

// subjectKey holds the authenticated token subject in the gin context.
const subjectKey = "subject"

// AuthMiddleware requires a bearer access token signed with secret.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := validateAuthHeader(c)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: err.Error(),
			})
			return
		}

		claims, err := JWT.Extract(secret, token)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "could not validate credentials",
				Err:     err,
			})
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// validateAuthHeader checks the Authorization header and returns the token if valid
func validateAuthHeader(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrInvalidBearerToken
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", ErrInvalidBearerToken
	}
	return token, nil
}

func subjectFromContext(c *gin.Context) string {
	return c.GetString(subjectKey)
}
