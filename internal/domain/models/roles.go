// internal/domain/models/roles.go
package models

// Role is a member's tier inside a shared group.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
	RoleMedium       Role = "medium"
	RoleObserver     Role = "observer"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleCollaborator, RoleMedium, RoleObserver:
		return true
	}
	return false
}
