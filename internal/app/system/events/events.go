// Package events announces group changes to other processes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActionGroupDeleted is the event action published when a group is removed.
const ActionGroupDeleted = "group_deleted"

// GroupChanged is published after a group mutation has been saved.
type GroupChanged struct {
	EventID      string    `json:"event_id"`
	GroupID      string    `json:"group_id"`
	Action       string    `json:"action"`
	ActorID      string    `json:"actor_id"`
	TotalChanges int64     `json:"total_changes"`
	At           time.Time `json:"at"`
}

// NewGroupChanged builds an event with a fresh id.
func NewGroupChanged(groupID, actorID primitive.ObjectID, action string, totalChanges int64, at time.Time) GroupChanged {
	return GroupChanged{
		EventID:      uuid.NewString(),
		GroupID:      groupID.Hex(),
		Action:       action,
		ActorID:      actorID.Hex(),
		TotalChanges: totalChanges,
		At:           at,
	}
}

// Publisher delivers change events.
type Publisher interface {
	Publish(ctx context.Context, ev GroupChanged) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, GroupChanged) error { return nil }

// Redis publishes events as JSON on a pub/sub channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis returns a publisher for channel.
func NewRedis(rdb *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = "taskgroups:events"
	}
	return &Redis{rdb: rdb, channel: channel}
}

// Publish implements Publisher.
func (r *Redis) Publish(ctx context.Context, ev GroupChanged) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string { return r.channel }
