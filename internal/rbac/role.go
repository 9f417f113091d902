package rbac

import "strings"

// Role is a closed set of identities an actor can hold. Anonymous is an
// explicit variant rather than an inferred default, so an absent or
// malformed role can never silently pass for a real one.
type Role int

const (
	Anonymous Role = iota
	RoleUser
	RoleModerator
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// ParseRole maps a stored role name to its variant. Unknown names report
// ok=false and resolve to Anonymous.
func ParseRole(name string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user":
		return RoleUser, true
	case "moderator":
		return RoleModerator, true
	case "admin":
		return RoleAdmin, true
	default:
		return Anonymous, false
	}
}

// Actor is an authenticated identity performing an action. The zero value
// is the anonymous actor.
type Actor struct {
	ID     string
	Role   Role
	Active bool
}

// IsAnonymous reports whether the actor carries no authenticated identity.
func (a Actor) IsAnonymous() bool {
	return a.Role == Anonymous || a.ID == ""
}
