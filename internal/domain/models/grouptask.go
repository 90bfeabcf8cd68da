// internal/domain/models/grouptask.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupTask is one entry on a shared group's task list.
//
// Tasks are never physically removed; Deleted marks a soft delete so the
// change log and the order of surviving tasks stay stable.
type GroupTask struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	GroupID       primitive.ObjectID `bson:"group_id" json:"-"`
	Text          string             `bson:"text" json:"text"`
	DueAt         *time.Time         `bson:"due_at,omitempty" json:"due_at,omitempty"`
	CreatedBy     primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedByName string             `bson:"created_by_name" json:"created_by_name"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`

	Completed   bool                `bson:"completed" json:"completed"`
	CompletedAt *time.Time          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CompletedBy *primitive.ObjectID `bson:"completed_by,omitempty" json:"completed_by,omitempty"`

	Order int `bson:"order" json:"order"`

	Deleted   bool                `bson:"deleted" json:"-"`
	DeletedAt *time.Time          `bson:"deleted_at,omitempty" json:"-"`
	DeletedBy *primitive.ObjectID `bson:"deleted_by,omitempty" json:"-"`
}
