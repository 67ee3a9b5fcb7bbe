// Package token issues and verifies the bearer tokens handed out after a
// successful login. A token is a self-contained assertion: the HTTP layer can
// authorize later requests from the signature and expiry alone, without
// touching storage.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the fixed validity window of an access token.
const DefaultTTL = 2 * time.Hour

var ErrMissingSecret = errors.New("token: signing secret is empty")

type Claims struct {
	Role string `json:"role"` // e.g. "Admin", "User"
	jwt.RegisteredClaims
}

// Issuer signs HS256 tokens with a symmetric key fixed at process start.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// New returns an Issuer or ErrMissingSecret when the key is absent; callers
// treat that as fatal at boot.
func New(secret []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue signs a token with subject = username and the resolved role claim.
func (i *Issuer) Issue(username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies signature, algorithm, issuer and expiry and returns the
// embedded claims.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithLeeway(60*time.Second))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}
