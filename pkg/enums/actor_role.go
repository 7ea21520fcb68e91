package enums

import "fmt"

// ActorRole identifies who drove an order transition.
type ActorRole string

const (
	ActorRoleRetailer   ActorRole = "retailer"
	ActorRoleWholesaler ActorRole = "wholesaler"
	ActorRoleAdmin      ActorRole = "admin"
	ActorRoleSystem     ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleRetailer,
	ActorRoleWholesaler,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
