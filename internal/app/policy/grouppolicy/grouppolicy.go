// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import "github.com/dalemusser/taskgroups/internal/domain/models"

// Operation names something a member may try to do to a shared group.
type Operation string

const (
	OpView              Operation = "view"
	OpExit              Operation = "exit"
	OpAddTask           Operation = "add_task"
	OpEditOwnTask       Operation = "edit_own_task"
	OpCompleteTask      Operation = "complete_task"
	OpEditAnyTask       Operation = "edit_any_task"
	OpReorderTasks      Operation = "reorder_tasks"
	OpDeleteTask        Operation = "delete_task"
	OpViewLog           Operation = "view_log"
	OpDeleteGroup       Operation = "delete_group"
	OpManageMembers     Operation = "manage_members"
	OpChangeRoles       Operation = "change_roles"
	OpResolveRequests   Operation = "resolve_requests"
	OpTransferOwnership Operation = "transfer_ownership"
	OpUpdateSettings    Operation = "update_settings"
	OpViewAudit         Operation = "view_audit"
)

// minimumRole is the single source of truth for who may do what.
var minimumRole = map[Operation]models.Role{
	OpView:              models.RoleObserver,
	OpExit:              models.RoleObserver,
	OpAddTask:           models.RoleMedium,
	OpEditOwnTask:       models.RoleMedium,
	OpCompleteTask:      models.RoleMedium,
	OpEditAnyTask:       models.RoleCollaborator,
	OpReorderTasks:      models.RoleCollaborator,
	OpDeleteTask:        models.RoleCollaborator,
	OpViewLog:           models.RoleCollaborator,
	OpDeleteGroup:       models.RoleCollaborator,
	OpManageMembers:     models.RoleOwner,
	OpChangeRoles:       models.RoleOwner,
	OpResolveRequests:   models.RoleOwner,
	OpTransferOwnership: models.RoleOwner,
	OpUpdateSettings:    models.RoleOwner,
	OpViewAudit:         models.RoleOwner,
}

// Rank orders roles from least to most privileged. Unknown roles rank 0.
func Rank(r models.Role) int {
	switch r {
	case models.RoleObserver:
		return 1
	case models.RoleMedium:
		return 2
	case models.RoleCollaborator:
		return 3
	case models.RoleOwner:
		return 4
	}
	return 0
}

// AtLeast reports whether r is min or more privileged.
func AtLeast(r, min models.Role) bool {
	return Rank(r) > 0 && Rank(r) >= Rank(min)
}

// MinimumRole returns the least privileged role allowed to perform op.
func MinimumRole(op Operation) (models.Role, bool) {
	r, ok := minimumRole[op]
	return r, ok
}

// Authorize reports whether member may perform op. A nil member is a
// non-member and is denied everything; unknown operations are denied.
func Authorize(member *models.GroupMember, op Operation) bool {
	if member == nil {
		return false
	}
	min, ok := minimumRole[op]
	if !ok {
		return false
	}
	return AtLeast(member.Role, min)
}

// CanEditTask is the task-ownership override: collaborators and owners may
// edit any task, a medium member only the tasks it created.
func CanEditTask(member *models.GroupMember, task *models.GroupTask) bool {
	if Authorize(member, OpEditAnyTask) {
		return true
	}
	return task != nil && Authorize(member, OpEditOwnTask) && task.CreatedBy == member.UserID
}

// ValidUpgradeTarget reports whether r may be requested through the
// role-change flow. Observer and owner never are.
func ValidUpgradeTarget(r models.Role) bool {
	return r == models.RoleMedium || r == models.RoleCollaborator
}

// ValidJoinRole reports whether r may be asked for when joining.
func ValidJoinRole(r models.Role) bool {
	return r == models.RoleObserver || ValidUpgradeTarget(r)
}

// AssignableRole reports whether the owner may set r directly on a member.
// Ownership moves only through a transfer.
func AssignableRole(r models.Role) bool {
	return r == models.RoleObserver || r == models.RoleMedium || r == models.RoleCollaborator
}
