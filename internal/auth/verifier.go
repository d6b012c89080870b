// Package auth verifies bearer tokens and yields the opaque user identity
// the core trusts unvalidated.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/jeanfsantos/cloud-capstone-project/internal/domain"
)

type userClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256-signed bearer tokens.
type Verifier struct {
	secret []byte
	clock  clockwork.Clock
}

func NewVerifier(secret string, clock clockwork.Clock) *Verifier {
	return &Verifier{secret: []byte(secret), clock: clock}
}

// Verify parses and validates a bearer token and returns the user identity
// it carries. The subject claim is the user id.
func (v *Verifier) Verify(tokenString string) (domain.User, error) {
	var claims userClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return domain.User{}, fmt.Errorf("token has no subject")
	}

	return domain.User{ID: claims.Subject, Name: claims.Name}, nil
}
