// README: HS256 JWT verifier and issuer for local and service-to-service tokens.
package infra

import (
	"context"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"reposition/internal/types"
)

type Claims struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(_ context.Context, tokenStr string) (types.Actor, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return types.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return types.Actor{}, ErrInvalidToken
	}
	return actorFromClaims(map[string]any{"org_id": c.OrgID, "role": c.Role})
}

// IssueToken signs an HS256 access token carrying actor.
func IssueToken(secret string, actor types.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OrgID: string(actor.OrgID),
		Role:  string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor.OrgID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
