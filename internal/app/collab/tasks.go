package collab

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/taskgroups/internal/app/policy/grouppolicy"
	"github.com/dalemusser/taskgroups/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxTaskTextLen = 500

func cleanTaskText(raw string) (string, error) {
	text := htmlsanitize.PlainText(raw)
	if text == "" {
		return "", invalid("task text is required")
	}
	if utf8.RuneCountInString(text) > maxTaskTextLen {
		return "", invalid("task text must be at most %d characters", maxTaskTextLen)
	}
	return text, nil
}

// liveTask returns the non-deleted task with id or NotFound.
func liveTask(agg *models.GroupAggregate, id primitive.ObjectID) (*models.GroupTask, error) {
	t := agg.Task(id)
	if t == nil || t.Deleted {
		return nil, notFound("task not found")
	}
	return t, nil
}

// AddTask appends a task after the current last one.
func (s *Service) AddTask(ctx context.Context, actor Actor, groupID primitive.ObjectID, text string, dueAt *time.Time) (*models.GroupAggregate, error) {
	clean, err := cleanTaskText(text)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, groupID, grouppolicy.OpAddTask, func(m *mutation) (change, error) {
		order := 0
		if max, ok := m.agg.MaxOrder(); ok {
			order = max + 1
		}
		var due *time.Time
		if dueAt != nil {
			d := dueAt.UTC()
			due = &d
		}
		m.agg.Tasks = append(m.agg.Tasks, models.GroupTask{
			ID:            primitive.NewObjectID(),
			GroupID:       m.agg.Group.ID,
			Text:          clean,
			DueAt:         due,
			CreatedBy:     m.actor.ID,
			CreatedByName: m.actor.displayName(),
			CreatedAt:     m.now,
			Order:         order,
		})
		return change{
			action:  models.ActionAddedTask,
			message: fmt.Sprintf("added task %q", clean),
		}, nil
	})
}

// EditTaskInput is a partial task update. Nil fields are left unchanged;
// ClearDueAt removes the due date.
type EditTaskInput struct {
	Text       *string
	DueAt      *time.Time
	ClearDueAt bool
}

func (in EditTaskInput) empty() bool {
	return in.Text == nil && in.DueAt == nil && !in.ClearDueAt
}

// EditTask updates text or due date. Collaborators and the owner may edit
// any task; mediums only the tasks they created.
func (s *Service) EditTask(ctx context.Context, actor Actor, groupID, taskID primitive.ObjectID, in EditTaskInput) (*models.GroupAggregate, error) {
	if in.empty() {
		return nil, invalid("nothing to update")
	}
	if in.DueAt != nil && in.ClearDueAt {
		return nil, invalid("give a due date or clear it, not both")
	}
	var text string
	if in.Text != nil {
		t, err := cleanTaskText(*in.Text)
		if err != nil {
			return nil, err
		}
		text = t
	}

	return s.mutate(ctx, actor, groupID, "", func(m *mutation) (change, error) {
		if m.member == nil {
			return change{}, forbidden("not a member of this group")
		}
		task, err := liveTask(m.agg, taskID)
		if err != nil {
			return change{}, err
		}
		if !grouppolicy.CanEditTask(m.member, task) {
			return change{}, forbidden("you can only edit tasks you created")
		}

		if in.Text != nil {
			task.Text = text
		}
		switch {
		case in.ClearDueAt:
			task.DueAt = nil
		case in.DueAt != nil:
			d := in.DueAt.UTC()
			task.DueAt = &d
		}
		return change{
			action:  models.ActionEditedTask,
			message: fmt.Sprintf("edited task %q", task.Text),
		}, nil
	})
}

// CompleteTask marks a task done.
func (s *Service) CompleteTask(ctx context.Context, actor Actor, groupID, taskID primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpCompleteTask, func(m *mutation) (change, error) {
		task, err := liveTask(m.agg, taskID)
		if err != nil {
			return change{}, err
		}
		if task.Completed {
			return change{}, conflict("task is already completed")
		}
		at := m.now
		by := m.actor.ID
		task.Completed = true
		task.CompletedAt = &at
		task.CompletedBy = &by
		return change{
			action:  models.ActionCompletedTask,
			message: fmt.Sprintf("completed task %q", task.Text),
		}, nil
	})
}

// DeleteTask soft-deletes a task. The record stays for history but drops
// out of every task view.
func (s *Service) DeleteTask(ctx context.Context, actor Actor, groupID, taskID primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpDeleteTask, func(m *mutation) (change, error) {
		task, err := liveTask(m.agg, taskID)
		if err != nil {
			return change{}, err
		}
		at := m.now
		by := m.actor.ID
		task.Deleted = true
		task.DeletedAt = &at
		task.DeletedBy = &by
		return change{
			action:  models.ActionDeletedTask,
			message: fmt.Sprintf("deleted task %q", task.Text),
		}, nil
	})
}

// ReorderTasks sets the order of the non-deleted tasks. orderedIDs must
// name each of them exactly once; a task's order becomes its index.
func (s *Service) ReorderTasks(ctx context.Context, actor Actor, groupID primitive.ObjectID, orderedIDs []primitive.ObjectID) (*models.GroupAggregate, error) {
	return s.mutate(ctx, actor, groupID, grouppolicy.OpReorderTasks, func(m *mutation) (change, error) {
		live := m.agg.LiveTasks()
		if len(orderedIDs) != len(live) {
			return change{}, invalid("ordering must list all %d tasks, got %d", len(live), len(orderedIDs))
		}
		want := make(map[primitive.ObjectID]bool, len(live))
		for _, t := range live {
			want[t.ID] = true
		}
		seen := make(map[primitive.ObjectID]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if !want[id] {
				return change{}, invalid("task %s is not in this group", id.Hex())
			}
			if seen[id] {
				return change{}, invalid("task %s is listed more than once", id.Hex())
			}
			seen[id] = true
		}

		for i, id := range orderedIDs {
			m.agg.Task(id).Order = i
		}
		return change{
			action:  models.ActionReorderedTasks,
			message: fmt.Sprintf("reordered %d tasks", len(orderedIDs)),
		}, nil
	})
}
