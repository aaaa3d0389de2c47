package apirouter_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/dbcv/platform/internal/apirouter"
)

func TestJWT(t *testing.T) {
	t.Parallel()

	const issuer = "dbcv"
	const jwtKey = "supersecret"
	const subject = "user-1"
	var signingMethod = jwt.SigningMethodHS256

	t.Run("should generate a new jwt token", func(t *testing.T) {
		t.Parallel()
		token, err := apirouter.JWT.New(jwtKey, apirouter.JWTClaims{Subject: subject}, time.Hour)
		assert.Nil(t, err)
		assert.NotEqual(t, "", token)
	})

	t.Run("should extract claims from valid token", func(t *testing.T) {
		t.Parallel()
		token, err := apirouter.JWT.New(jwtKey, apirouter.JWTClaims{Subject: subject}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		claims, err := apirouter.JWT.Extract(jwtKey, token)
		assert.Nil(t, err)
		assert.Equal(t, subject, claims.Subject)
	})

	t.Run("should fail to extract claims from invalid token", func(t *testing.T) {
		t.Parallel()
		_, err := apirouter.JWT.Extract(jwtKey, "invalid_token")
		assert.ErrorIs(t, err, apirouter.ErrInvalidToken)
	})

	t.Run("should reject a token signed with another key", func(t *testing.T) {
		t.Parallel()
		token, err := apirouter.JWT.New("other", apirouter.JWTClaims{Subject: subject}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		_, err = apirouter.JWT.Extract(jwtKey, token)
		assert.ErrorIs(t, err, apirouter.ErrInvalidToken)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		t.Parallel()
		token, err := apirouter.JWT.New(jwtKey, apirouter.JWTClaims{Subject: subject}, -time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		_, err = apirouter.JWT.Extract(jwtKey, token)
		assert.ErrorIs(t, err, apirouter.ErrInvalidToken)
	})

	t.Run("should fail to extract claims from token with invalid issuer", func(t *testing.T) {
		t.Parallel()
		now := time.Now()
		jwtToken := jwt.NewWithClaims(signingMethod, jwt.MapClaims{
			"iss": "not-" + issuer,
			"sub": subject,
			"iat": now.Unix(),
			"exp": now.Add(24 * time.Hour).Unix(),
		})
		token, err := jwtToken.SignedString([]byte(jwtKey))
		if err != nil {
			t.Fatal(err)
		}
		_, err = apirouter.JWT.Extract(jwtKey, token)
		assert.ErrorIs(t, err, apirouter.ErrInvalidToken)
	})

	t.Run("should reject a token without expiry", func(t *testing.T) {
		t.Parallel()
		jwtToken := jwt.NewWithClaims(signingMethod, jwt.MapClaims{
			"iss": issuer,
			"sub": subject,
		})
		token, err := jwtToken.SignedString([]byte(jwtKey))
		if err != nil {
			t.Fatal(err)
		}
		_, err = apirouter.JWT.Extract(jwtKey, token)
		assert.ErrorIs(t, err, apirouter.ErrInvalidToken)
	})
}
