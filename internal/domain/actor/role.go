package actor

import "fmt"

// Role is the closed set of roles a user can hold
type Role string

const (
	RoleUser     Role = "user"
	RoleMerchant Role = "merchant"
	RoleSupport  Role = "support"
	RoleAdmin    Role = "admin"
)

// Capability is one permission the core checks
type Capability string

const (
	CapTransfer Capability = "transfer"
	CapReceive  Capability = "receive"
	CapViewAny  Capability = "view_any"
	CapTopUp    Capability = "top_up"
)

// Capabilities is a resolved capability set
type Capabilities map[Capability]struct{}

var roleCapabilities = map[Role][]Capability{
	RoleUser:     {CapTransfer, CapReceive},
	RoleMerchant: {CapTransfer, CapReceive},
	RoleSupport:  {CapReceive, CapViewAny},
	RoleAdmin:    {CapReceive, CapViewAny, CapTopUp},
}

// ParseRole maps a stored role string onto the closed enum
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := roleCapabilities[r]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

// CapabilitiesOf returns the capability set of a role; unknown roles get none
func CapabilitiesOf(r Role) Capabilities {
	set := make(Capabilities, len(roleCapabilities[r]))
	for _, c := range roleCapabilities[r] {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set
func (c Capabilities) Has(capability Capability) bool {
	_, ok := c[capability]
	return ok
}
