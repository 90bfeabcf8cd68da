// internal/domain/models/sharedgroup.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SharedGroup is a named task list jointly owned by its members.
//
// NOTE:
//   - Members, tasks, join requests and change-log entries are not embedded.
//     Each lives in its own collection keyed by group_id and is loaded
//     together as a GroupAggregate.
//   - AccessKey is present only on private groups and must never be shown
//     to anyone but the owner (see GroupAggregate.RedactFor).
//   - Version is bumped on every successful save and is the compare-and-swap
//     token for the whole aggregate.
type SharedGroup struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`

	OwnerID   primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	OwnerName string             `bson:"owner_name" json:"owner_name"`

	IsPublic  bool   `bson:"is_public" json:"is_public"`
	AccessKey string `bson:"access_key,omitempty" json:"access_key,omitempty"`

	TotalChanges int64 `bson:"total_changes" json:"total_changes"`
	Version      int64 `bson:"version" json:"version"`

	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"`
}
