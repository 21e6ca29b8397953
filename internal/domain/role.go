package domain

import "fmt"

// Role is a user's standing on a single project.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleMember   Role = "Member"
	RoleObserver Role = "Observer"
)

// ParseRole decodes a stored role string. Callers gating writes should
// treat an error as "no role" rather than guessing.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleMember, RoleObserver:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Operation is a gated action on a project. Creating a project is not
// listed: there is no membership yet, so it is always allowed.
type Operation int

const (
	OpEditProject Operation = iota
	OpViewProject
	OpSaveProjectTime
	OpDeleteOwnEntries
)

var rolePolicy = map[Operation]map[Role]bool{
	OpEditProject:      {RoleAdmin: true},
	OpViewProject:      {RoleAdmin: true, RoleMember: true, RoleObserver: true},
	OpSaveProjectTime:  {RoleAdmin: true, RoleMember: true},
	OpDeleteOwnEntries: {RoleAdmin: true, RoleMember: true},
}

// Can reports whether the role may perform op.
func (r Role) Can(op Operation) bool {
	return rolePolicy[op][r]
}
