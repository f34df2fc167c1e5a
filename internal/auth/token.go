// README: Bearer-token verification. The engine only needs "who is this
// and are they a client or a worker"; token issuance lives in the
// account service.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"usta/internal/types"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the resolved actor behind a bearer credential.
type Identity struct {
	UserID types.ID
	Role   string
}

// TokenVerifier resolves a raw bearer token to an actor identity.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens carrying a user id subject and a
// role claim, the shape the account service issues.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	if c.Role != types.RoleClient && c.Role != types.RoleWorker {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: types.ID(c.Subject), Role: c.Role}, nil
}

// Sign issues a token for the given identity. The API server itself
// never issues tokens; this exists for tests and local tooling.
func Sign(secret string, id Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: string(id.UserID),
		},
	})
	return token.SignedString([]byte(secret))
}
