// internal/domain/models/aggregate.go
package models

import (
	"encoding/json"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupAggregate is one shared group with everything that belongs to it.
// It is the unit that is loaded, mutated and saved as a whole.
//
// The change log itself is not loaded (it only grows); Changes holds the
// entries appended since the aggregate was loaded and is flushed by the
// store on save.
type GroupAggregate struct {
	Group        SharedGroup      `json:"group"`
	Members      []GroupMember    `json:"members"`
	Tasks        []GroupTask      `json:"tasks"`
	JoinRequests []JoinRequest    `json:"join_requests"`
	Changes      []ChangeLogEntry `json:"-"`
}

// Member returns the membership for userID, or nil.
func (a *GroupAggregate) Member(userID primitive.ObjectID) *GroupMember {
	for i := range a.Members {
		if a.Members[i].UserID == userID {
			return &a.Members[i]
		}
	}
	return nil
}

// RemoveMember drops userID from the member list. It reports whether a
// member was removed.
func (a *GroupAggregate) RemoveMember(userID primitive.ObjectID) bool {
	for i := range a.Members {
		if a.Members[i].UserID == userID {
			a.Members = append(a.Members[:i], a.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Task returns the task with the given id, including soft-deleted ones.
func (a *GroupAggregate) Task(id primitive.ObjectID) *GroupTask {
	for i := range a.Tasks {
		if a.Tasks[i].ID == id {
			return &a.Tasks[i]
		}
	}
	return nil
}

// LiveTasks returns the non-deleted tasks sorted by their persisted order.
func (a *GroupAggregate) LiveTasks() []GroupTask {
	out := make([]GroupTask, 0, len(a.Tasks))
	for _, t := range a.Tasks {
		if !t.Deleted {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ActiveTasks returns the open, non-deleted tasks in order.
func (a *GroupAggregate) ActiveTasks() []GroupTask {
	out := []GroupTask{}
	for _, t := range a.LiveTasks() {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// CompletedTasks returns the completed, non-deleted tasks in order.
func (a *GroupAggregate) CompletedTasks() []GroupTask {
	out := []GroupTask{}
	for _, t := range a.LiveTasks() {
		if t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// MarshalJSON writes the aggregate with the active and completed task
// views next to the full task list.
func (a GroupAggregate) MarshalJSON() ([]byte, error) {
	type plain GroupAggregate
	return json.Marshal(struct {
		plain
		ActiveTasks    []GroupTask `json:"active_tasks"`
		CompletedTasks []GroupTask `json:"completed_tasks"`
	}{plain(a), a.ActiveTasks(), a.CompletedTasks()})
}

// MaxOrder returns the highest order among non-deleted tasks and false when
// there are none.
func (a *GroupAggregate) MaxOrder() (int, bool) {
	max, found := 0, false
	for _, t := range a.Tasks {
		if t.Deleted {
			continue
		}
		if !found || t.Order > max {
			max, found = t.Order, true
		}
	}
	return max, found
}

// JoinRequest returns the request with the given id, or nil.
func (a *GroupAggregate) JoinRequest(id primitive.ObjectID) *JoinRequest {
	for i := range a.JoinRequests {
		if a.JoinRequests[i].ID == id {
			return &a.JoinRequests[i]
		}
	}
	return nil
}

// PendingRequestFor returns userID's pending request of any kind, or nil.
func (a *GroupAggregate) PendingRequestFor(userID primitive.ObjectID) *JoinRequest {
	for i := range a.JoinRequests {
		r := &a.JoinRequests[i]
		if r.UserID == userID && r.IsPending() {
			return r
		}
	}
	return nil
}

// LatestRequestFor returns userID's most recently created request, or nil.
func (a *GroupAggregate) LatestRequestFor(userID primitive.ObjectID) *JoinRequest {
	var latest *JoinRequest
	for i := range a.JoinRequests {
		r := &a.JoinRequests[i]
		if r.UserID != userID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest
}

// Clone returns a deep copy so callers can mutate it without aliasing the
// original's slices or pointer fields.
func (a *GroupAggregate) Clone() *GroupAggregate {
	if a == nil {
		return nil
	}
	c := &GroupAggregate{Group: a.Group}
	c.Members = append([]GroupMember(nil), a.Members...)
	c.JoinRequests = make([]JoinRequest, len(a.JoinRequests))
	for i, r := range a.JoinRequests {
		r.ResolvedAt = clonePtr(r.ResolvedAt)
		r.ResolvedBy = clonePtr(r.ResolvedBy)
		r.SupersededBy = clonePtr(r.SupersededBy)
		r.DismissedAt = clonePtr(r.DismissedAt)
		c.JoinRequests[i] = r
	}
	c.Tasks = make([]GroupTask, len(a.Tasks))
	for i, t := range a.Tasks {
		t.DueAt = clonePtr(t.DueAt)
		t.CompletedAt = clonePtr(t.CompletedAt)
		t.CompletedBy = clonePtr(t.CompletedBy)
		t.DeletedAt = clonePtr(t.DeletedAt)
		t.DeletedBy = clonePtr(t.DeletedBy)
		c.Tasks[i] = t
	}
	c.Changes = append([]ChangeLogEntry(nil), a.Changes...)
	return c
}

// RedactFor returns a copy safe to hand to viewerID: the access key is kept
// only when the viewer is the owner, non-owners see only their own join
// requests, soft-deleted tasks are dropped and the remaining tasks are in
// persisted order.
func (a *GroupAggregate) RedactFor(viewerID primitive.ObjectID) *GroupAggregate {
	c := a.Clone()
	if c.Group.OwnerID != viewerID {
		c.Group.AccessKey = ""
		own := c.JoinRequests[:0]
		for _, r := range c.JoinRequests {
			if r.UserID == viewerID {
				own = append(own, r)
			}
		}
		c.JoinRequests = own
	}
	c.Tasks = c.LiveTasks()
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
