// internal/domain/models/changelog.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Change-log actions.
const (
	ActionCreated              = "created"
	ActionJoined               = "joined"
	ActionRequestedJoin        = "requested_join"
	ActionRequestedRoleUpgrade = "requested_role_upgrade"
	ActionApprovedRoleUpgrade  = "approved_role_upgrade"
	ActionRejectedRoleUpgrade  = "rejected_role_upgrade"
	ActionAddedTask            = "added_task"
	ActionEditedTask           = "edited_task"
	ActionCompletedTask        = "completed_task"
	ActionDeletedTask          = "deleted_task"
	ActionReorderedTasks       = "reordered_tasks"
	ActionTransferredOwnership = "transferred_ownership"
	ActionUpdatedMemberRole    = "updated_member_role"
	ActionRemovedMember        = "removed_member"
	ActionLeftGroup            = "left_group"
	ActionUpdatedSettings      = "updated_settings"
)

// ChangeLogEntry is one append-only record of a group mutation.
// Seq starts at 1 and equals the group's TotalChanges after the append.
type ChangeLogEntry struct {
	GroupID       primitive.ObjectID `bson:"group_id" json:"-"`
	Seq           int64              `bson:"seq" json:"seq"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	UserName      string             `bson:"user_name" json:"user_name"`
	Action        string             `bson:"action" json:"action"`
	CommitMessage string             `bson:"commit_message" json:"commit_message"`
	Timestamp     time.Time          `bson:"timestamp" json:"timestamp"`
}
