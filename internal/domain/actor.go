package domain

import "fmt"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAgent    Role = "AGENT"
	RoleAdmin    Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

// Actor is a verified caller identity handed over by the identity provider.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Is(role Role) bool {
	return a.ID != "" && a.Role == role
}
