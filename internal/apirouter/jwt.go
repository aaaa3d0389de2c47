package apirouter

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "dbcv"

var signingMethod = jwt.SigningMethodHS256

type jsonwebtoken struct{}

var JWT = jsonwebtoken{}

var (
	ErrInvalidToken = errors.New("invalid token")
)

// JWTClaims contains the custom claims for access tokens
type JWTClaims struct {
	Subject string
}

func (_ jsonwebtoken) New(secret string, claims JWTClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(signingMethod, jwt.MapClaims{
		"iss": issuer,
		"sub": claims.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func (_ jsonwebtoken) Extract(secret string, tokenString string) (JWTClaims, error) {
	token, err := jwt.Parse(
		tokenString,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return JWTClaims{}, ErrInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return JWTClaims{}, ErrInvalidToken
	}

	return JWTClaims{Subject: subject}, nil
}
