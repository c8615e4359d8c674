// Package chat contains the room, message and reaction model of the support chat together
// with the rules deciding who may act on a message and when.
// No runtime, network, or UI logic should be added here.
package chat

import (
	"strings"

	"support-chat/errors"
)

type Role string

const (
	RoleSeller Role = "SELLER"
	RoleBuyer  Role = "BUYER"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSeller, RoleBuyer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Counterpart reports whether the role can be the non-admin party of a room.
func (r Role) Counterpart() bool {
	return r == RoleSeller || r == RoleBuyer
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", errors.ErrInvalidRole
	}
	return r, nil
}

// Actor is the identity every permission check and projection is evaluated against.
type Actor struct {
	ID   string `json:"id" validate:"required"`
	Role Role   `json:"role" validate:"required,oneof=SELLER BUYER ADMIN"`
}
