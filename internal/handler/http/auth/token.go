package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer creates and validates HS256 session tokens.
// A successful login exchanges the shared credential for a short-lived token
// so subsequent requests do not have to carry the password itself.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an issuer with an explicit secret. Used in tests.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// NewIssuerFromEnv creates an issuer from the JWT_SECRET environment variable.
func NewIssuerFromEnv(ttl time.Duration) (*Issuer, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue generates a signed session token carrying the caller's role.
func (i *Issuer) Issue(role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "sync",
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	})
	return token.SignedString(i.secret)
}

// Validate parses a session token and returns the embedded role.
func (i *Issuer) Validate(tokenString string) (string, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return "", errors.New("token expired")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("invalid role claim")
	}
	return role, nil
}
