package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenEmpty         = errors.New("token is empty")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenInvalidClaims = errors.New("token has invalid claims")
)

// Verifier checks tokens issued by the external auth layer and extracts the
// authenticated user id. The live engine never issues tokens itself.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) UserID(token string) (string, error) {
	if token == "" {
		return "", ErrTokenEmpty
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !parsed.Valid {
		return "", ErrTokenInvalid
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		// Some issuers use the standard subject claim instead.
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
		return "", ErrTokenInvalidClaims
	}

	return userID, nil
}
