// internal/domain/models/joinrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JoinRequestKind tags which flow a request belongs to.
type JoinRequestKind string

const (
	// KindJoin is an application for new membership.
	KindJoin JoinRequestKind = "join"
	// KindRoleChange is an existing member asking for a different role.
	KindRoleChange JoinRequestKind = "role_change"
)

// JoinRequestStatus is the resolution state of a request.
type JoinRequestStatus string

const (
	StatusPending  JoinRequestStatus = "pending"
	StatusApproved JoinRequestStatus = "approved"
	StatusRejected JoinRequestStatus = "rejected"
)

// JoinRequest is a pending or resolved application filed against a group.
// Both kinds share one approve/reject transition.
//
// Dismissed is requester-only UI state: it hides the notification and never
// changes Status.
type JoinRequest struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	GroupID       primitive.ObjectID `bson:"group_id" json:"group_id"`
	Kind          JoinRequestKind    `bson:"kind" json:"kind"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	DisplayName   string             `bson:"display_name" json:"display_name"`
	RequestedRole Role               `bson:"requested_role" json:"requested_role"`
	Message       string             `bson:"message" json:"message"`

	Status     JoinRequestStatus   `bson:"status" json:"status"`
	ResolvedAt *time.Time          `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ResolvedBy *primitive.ObjectID `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	// SupersededBy is set when a newer role-change request replaced this one
	// after the cooldown elapsed.
	SupersededBy *primitive.ObjectID `bson:"superseded_by,omitempty" json:"superseded_by,omitempty"`

	Dismissed   bool       `bson:"dismissed" json:"dismissed"`
	DismissedAt *time.Time `bson:"dismissed_at,omitempty" json:"dismissed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// IsPending reports whether the request still awaits the owner.
func (r JoinRequest) IsPending() bool { return r.Status == StatusPending }
