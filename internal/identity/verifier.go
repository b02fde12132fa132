// Package identity turns a bearer credential into a verified actor. Tokens
// are issued elsewhere; this package only checks them.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims the service relies on: sub is the actor id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, now: time.Now}
}

// ResolveActor verifies an HS256 token and returns who is calling. Every
// failure is reported as Unauthenticated.
func (v *Verifier) ResolveActor(credential string) (domain.Actor, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Actor{}, domain.Unauthenticated("missing credential")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, domain.Unauthenticated("token expired")
		}
		return domain.Actor{}, domain.Wrap(domain.CodeUnauthenticated, "invalid token", err)
	}
	if !tok.Valid {
		return domain.Actor{}, domain.Unauthenticated("invalid token")
	}

	if claims.Subject == "" {
		return domain.Actor{}, domain.Unauthenticated("token has no subject")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, domain.Wrap(domain.CodeUnauthenticated, "token has no valid role", err)
	}
	return domain.Actor{ID: claims.Subject, Role: role}, nil
}

// Issue signs a token for actor. The service never hands tokens out; this
// exists for local tooling and tests.
func (v *Verifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
