// README: Bearer token verification contract shared by the Firebase and HS256 JWT verifiers.
package infra

import (
	"context"
	"errors"
	"fmt"

	"reposition/internal/types"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier resolves a raw bearer token to the acting organization and role.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (types.Actor, error)
}

// actorFromClaims reads the org_id and role claims both verifiers carry.
func actorFromClaims(claims map[string]any) (types.Actor, error) {
	org, _ := claims["org_id"].(string)
	if org == "" {
		return types.Actor{}, fmt.Errorf("%w: missing org_id claim", ErrInvalidToken)
	}
	raw, _ := claims["role"].(string)
	role, ok := types.ParseRole(raw)
	if !ok {
		return types.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, raw)
	}
	return types.Actor{OrgID: types.ID(org), Role: role}, nil
}
