// README: Shared value types used across modules (IDs, money, acting principal).
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Money amounts are kept in minor units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

type Role string

const (
	RoleDispatcher   Role = "DISPATCHER"
	RoleCarrierAdmin Role = "CARRIER_ADMIN"
	// RoleSystem is used by external collaborators (payment, depot, cron).
	RoleSystem Role = "SYSTEM"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleDispatcher, RoleCarrierAdmin, RoleSystem:
		return Role(raw), true
	default:
		return "", false
	}
}

// Actor is the acting organization and role, supplied by the identity provider.
type Actor struct {
	OrgID ID
	Role  Role
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

var SystemActor = Actor{OrgID: "system", Role: RoleSystem}
