package service

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Token roles.
const (
	RoleDevice = "device"
	RoleAdmin  = "admin"
)

// Claims is the payload of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	MAC  string `json:"mac,omitempty"`
}

// ErrBadToken is returned for any token that fails verification.
var ErrBadToken = errors.New("invalid token")

// Principal is the verified caller identity extracted from a token.
type Principal struct {
	ID   uuid.UUID
	Role string
	MAC  string
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func issueAccessToken(signKey []byte, ttl time.Duration, sub uuid.UUID, role, mac string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
		MAC:  mac,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(signKey)
	return signed, exp, err
}

// ParseAccessToken verifies an HS256 token and returns its principal.
func ParseAccessToken(signKey []byte, token string) (Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Principal{}, ErrBadToken
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return Principal{}, ErrBadToken
	}
	switch claims.Role {
	case RoleDevice, RoleAdmin:
	default:
		return Principal{}, ErrBadToken
	}
	return Principal{ID: id, Role: claims.Role, MAC: claims.MAC}, nil
}
