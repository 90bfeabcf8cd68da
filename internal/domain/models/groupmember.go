// internal/domain/models/groupmember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupMember is the authoritative join between users and shared groups.
// Exactly one document per (group_id, user_id); exactly one owner per group.
type GroupMember struct {
	GroupID     primitive.ObjectID `bson:"group_id" json:"-"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	DisplayName string             `bson:"display_name" json:"display_name"`
	Role        Role               `bson:"role" json:"role"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joined_at"`
}
