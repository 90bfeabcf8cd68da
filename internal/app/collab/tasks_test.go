package collab_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAddTask(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	medium := f.addMember(t, owner, g.Group.ID, "Mo", models.RoleMedium)
	obs := f.addMember(t, owner, g.Group.ID, "Ollie", models.RoleObserver)

	due := time.Date(2026, 3, 9, 17, 0, 0, 0, time.FixedZone("EST", -5*3600))
	agg, err := f.svc.AddTask(f.ctx, medium, g.Group.ID, " <b>Buy</b> milk ", &due)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if len(agg.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(agg.Tasks))
	}
	task := agg.Tasks[0]
	if task.Text != "Buy milk" {
		t.Errorf("Text = %q, want sanitized Buy milk", task.Text)
	}
	if task.Order != 0 {
		t.Errorf("first task order = %d, want 0", task.Order)
	}
	if task.CreatedBy != medium.ID || task.CreatedByName != "Mo" {
		t.Errorf("creator not recorded: %+v", task)
	}
	if task.DueAt == nil || !task.DueAt.Equal(due) || task.DueAt.Location() != time.UTC {
		t.Errorf("DueAt = %v, want %v in UTC", task.DueAt, due)
	}

	agg, err = f.svc.AddTask(f.ctx, owner, g.Group.ID, "Take out trash", nil)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if agg.Tasks[1].Order != 1 {
		t.Errorf("second task order = %d, want 1", agg.Tasks[1].Order)
	}

	_, err = f.svc.AddTask(f.ctx, obs, g.Group.ID, "Sneaky", nil)
	wantKind(t, err, collab.KindForbidden)

	_, err = f.svc.AddTask(f.ctx, owner, g.Group.ID, "<script></script>", nil)
	wantKind(t, err, collab.KindValidation)

	f.assertLogConsistent(t, g.Group.ID)
}

func TestAddTask_OrderAfterDelete(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B", "C")

	if _, err := f.svc.DeleteTask(f.ctx, owner, g.Group.ID, tasks[2].ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	agg, err := f.svc.AddTask(f.ctx, owner, g.Group.ID, "D", nil)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if got := taskTexts(agg.Tasks); !reflect.DeepEqual(got, []string{"A", "B", "D"}) {
		t.Errorf("tasks = %v, want [A B D]", got)
	}
	if agg.Tasks[2].Order != 2 {
		t.Errorf("D order = %d, want 2", agg.Tasks[2].Order)
	}
}

func TestEditTask_OwnershipOverride(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	medium := f.addMember(t, owner, g.Group.ID, "Mo", models.RoleMedium)
	collaborator := f.addMember(t, owner, g.Group.ID, "Cole", models.RoleCollaborator)
	obs := f.addMember(t, owner, g.Group.ID, "Ollie", models.RoleObserver)

	mine := f.addTasks(t, medium, g.Group.ID, "Mine")[0]
	theirs := f.addTasks(t, owner, g.Group.ID, "Theirs")[1]

	text := "Mine, edited"
	agg, err := f.svc.EditTask(f.ctx, medium, g.Group.ID, mine.ID, collab.EditTaskInput{Text: &text})
	if err != nil {
		t.Fatalf("medium editing own task: %v", err)
	}
	if agg.Task(mine.ID).Text != text {
		t.Errorf("Text = %q", agg.Task(mine.ID).Text)
	}

	other := "Hijack"
	_, err = f.svc.EditTask(f.ctx, medium, g.Group.ID, theirs.ID, collab.EditTaskInput{Text: &other})
	wantKind(t, err, collab.KindForbidden)

	_, err = f.svc.EditTask(f.ctx, obs, g.Group.ID, mine.ID, collab.EditTaskInput{Text: &other})
	wantKind(t, err, collab.KindForbidden)

	_, err = f.svc.EditTask(f.ctx, newActor("Stranger"), g.Group.ID, mine.ID, collab.EditTaskInput{Text: &other})
	wantKind(t, err, collab.KindForbidden)

	due := epoch.Add(48 * time.Hour)
	agg, err = f.svc.EditTask(f.ctx, collaborator, g.Group.ID, theirs.ID, collab.EditTaskInput{DueAt: &due})
	if err != nil {
		t.Fatalf("collaborator editing any task: %v", err)
	}
	if d := agg.Task(theirs.ID).DueAt; d == nil || !d.Equal(due) {
		t.Errorf("DueAt = %v, want %v", d, due)
	}
	if agg.Task(theirs.ID).Text != "Theirs" {
		t.Error("partial update overwrote text")
	}

	agg, err = f.svc.EditTask(f.ctx, collaborator, g.Group.ID, theirs.ID, collab.EditTaskInput{ClearDueAt: true})
	if err != nil {
		t.Fatalf("clear due date: %v", err)
	}
	if agg.Task(theirs.ID).DueAt != nil {
		t.Error("due date not cleared")
	}
}

func TestEditTask_Errors(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	task := f.addTasks(t, owner, g.Group.ID, "A")[0]
	text := "B"
	blank := "   "
	due := epoch

	tests := []struct {
		name string
		id   primitive.ObjectID
		in   collab.EditTaskInput
		kind collab.Kind
	}{
		{"empty patch", task.ID, collab.EditTaskInput{}, collab.KindValidation},
		{"blank text", task.ID, collab.EditTaskInput{Text: &blank}, collab.KindValidation},
		{"due and clear", task.ID, collab.EditTaskInput{DueAt: &due, ClearDueAt: true}, collab.KindValidation},
		{"missing task", primitive.NewObjectID(), collab.EditTaskInput{Text: &text}, collab.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.EditTask(f.ctx, owner, g.Group.ID, tt.id, tt.in)
			wantKind(t, err, tt.kind)
		})
	}

	if _, err := f.svc.DeleteTask(f.ctx, owner, g.Group.ID, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	_, err := f.svc.EditTask(f.ctx, owner, g.Group.ID, task.ID, collab.EditTaskInput{Text: &text})
	wantKind(t, err, collab.KindNotFound)
}

func TestCompleteTask(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	medium := f.addMember(t, owner, g.Group.ID, "Mo", models.RoleMedium)
	obs := f.addMember(t, owner, g.Group.ID, "Ollie", models.RoleObserver)
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B")

	_, err := f.svc.CompleteTask(f.ctx, obs, g.Group.ID, tasks[0].ID)
	wantKind(t, err, collab.KindForbidden)

	agg, err := f.svc.CompleteTask(f.ctx, medium, g.Group.ID, tasks[0].ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	done := agg.Task(tasks[0].ID)
	if !done.Completed || done.CompletedAt == nil || done.CompletedBy == nil || *done.CompletedBy != medium.ID {
		t.Errorf("completion not recorded: %+v", done)
	}
	if got := taskTexts(agg.CompletedTasks()); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("completed = %v", got)
	}
	if got := taskTexts(agg.ActiveTasks()); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("active = %v", got)
	}

	_, err = f.svc.CompleteTask(f.ctx, medium, g.Group.ID, tasks[0].ID)
	wantKind(t, err, collab.KindConflict)
}

func TestCompleteTask_SoftDeleted(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	task := f.addTasks(t, owner, g.Group.ID, "A")[0]

	if _, err := f.svc.DeleteTask(f.ctx, owner, g.Group.ID, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	_, err := f.svc.CompleteTask(f.ctx, owner, g.Group.ID, task.ID)
	wantKind(t, err, collab.KindNotFound)
}

func TestDeleteTask_Soft(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	medium := f.addMember(t, owner, g.Group.ID, "Mo", models.RoleMedium)
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B", "C")

	_, err := f.svc.DeleteTask(f.ctx, medium, g.Group.ID, tasks[1].ID)
	wantKind(t, err, collab.KindForbidden)

	agg, err := f.svc.DeleteTask(f.ctx, owner, g.Group.ID, tasks[1].ID)
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if got := taskTexts(agg.Tasks); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("visible tasks = %v, want [A C]", got)
	}

	stored := f.load(t, g.Group.ID)
	kept := stored.Task(tasks[1].ID)
	if kept == nil || !kept.Deleted || kept.DeletedBy == nil || *kept.DeletedBy != owner.ID {
		t.Errorf("soft-deleted record not retained: %+v", kept)
	}
	if got := taskTexts(stored.ActiveTasks()); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("active = %v", got)
	}

	_, err = f.svc.DeleteTask(f.ctx, owner, g.Group.ID, tasks[1].ID)
	wantKind(t, err, collab.KindNotFound)
}

func TestReorderTasks_Scenario(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B", "C")
	a, b, c := tasks[0], tasks[1], tasks[2]

	agg, err := f.svc.ReorderTasks(f.ctx, owner, g.Group.ID, ids(c, a, b))
	if err != nil {
		t.Fatalf("ReorderTasks: %v", err)
	}
	if agg.Task(c.ID).Order != 0 || agg.Task(a.ID).Order != 1 || agg.Task(b.ID).Order != 2 {
		t.Errorf("orders C=%d A=%d B=%d, want 0 1 2", agg.Task(c.ID).Order, agg.Task(a.ID).Order, agg.Task(b.ID).Order)
	}

	read, err := f.svc.GetByID(f.ctx, owner, g.Group.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got := taskTexts(read.Tasks); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Errorf("read order = %v, want [C A B]", got)
	}
}

func TestReorderTasks_SecondCallWins(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B", "C", "D")
	a, b, c, d := tasks[0], tasks[1], tasks[2], tasks[3]

	final := ids(b, d, a, c)
	firsts := [][]primitive.ObjectID{ids(d, c, b, a), ids(a, b, c, d), ids(c, a, d, b)}
	for _, first := range firsts {
		if _, err := f.svc.ReorderTasks(f.ctx, owner, g.Group.ID, first); err != nil {
			t.Fatalf("first reorder: %v", err)
		}
		agg, err := f.svc.ReorderTasks(f.ctx, owner, g.Group.ID, final)
		if err != nil {
			t.Fatalf("second reorder: %v", err)
		}
		if got := taskTexts(agg.Tasks); !reflect.DeepEqual(got, []string{"B", "D", "A", "C"}) {
			t.Errorf("after first=%v, order = %v, want [B D A C]", first, got)
		}
	}
}

func TestReorderTasks_Validation(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	medium := f.addMember(t, owner, g.Group.ID, "Mo", models.RoleMedium)
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B", "C")
	a, b, c := tasks[0], tasks[1], tasks[2]

	deleted := f.addTasks(t, owner, g.Group.ID, "D")[3]
	if _, err := f.svc.DeleteTask(f.ctx, owner, g.Group.ID, deleted.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	tests := []struct {
		name string
		ids  []primitive.ObjectID
	}{
		{"missing one", ids(a, b)},
		{"extra unknown", append(ids(a, b, c), primitive.NewObjectID())},
		{"duplicate", ids(a, a, b)},
		{"includes deleted", ids(a, b, deleted)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReorderTasks(f.ctx, owner, g.Group.ID, tt.ids)
			wantKind(t, err, collab.KindValidation)
		})
	}

	_, err := f.svc.ReorderTasks(f.ctx, medium, g.Group.ID, ids(c, b, a))
	wantKind(t, err, collab.KindForbidden)

	stored := f.load(t, g.Group.ID)
	if got := taskTexts(stored.LiveTasks()); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("failed reorders changed order: %v", got)
	}
}

func TestMutationsLogOnceEach(t *testing.T) {
	f := newFixture(t)
	owner := newActor("Uma")
	g := f.createPublic(t, owner, "Chores")
	tasks := f.addTasks(t, owner, g.Group.ID, "A", "B")
	text := "A2"

	ops := []func() error{
		func() error {
			_, err := f.svc.EditTask(f.ctx, owner, g.Group.ID, tasks[0].ID, collab.EditTaskInput{Text: &text})
			return err
		},
		func() error { _, err := f.svc.CompleteTask(f.ctx, owner, g.Group.ID, tasks[0].ID); return err },
		func() error {
			_, err := f.svc.ReorderTasks(f.ctx, owner, g.Group.ID, ids(tasks[1], tasks[0]))
			return err
		},
		func() error { _, err := f.svc.DeleteTask(f.ctx, owner, g.Group.ID, tasks[1].ID); return err },
	}
	for i, op := range ops {
		before := f.load(t, g.Group.ID)
		f.clock.Advance(time.Minute)
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
		after := f.load(t, g.Group.ID)
		if after.Group.TotalChanges != before.Group.TotalChanges+1 {
			t.Errorf("op %d: total %d -> %d, want +1", i, before.Group.TotalChanges, after.Group.TotalChanges)
		}
		if !after.Group.LastActivityAt.Equal(f.clock.Now()) {
			t.Errorf("op %d: last activity %v, want %v", i, after.Group.LastActivityAt, f.clock.Now())
		}
	}
	f.assertLogConsistent(t, g.Group.ID)

	page, err := f.svc.ViewLog(f.ctx, owner, g.Group.ID, 4, 0)
	if err != nil {
		t.Fatalf("ViewLog: %v", err)
	}
	want := []string{models.ActionDeletedTask, models.ActionReorderedTasks, models.ActionCompletedTask, models.ActionEditedTask}
	for i, e := range page.Entries {
		if e.Action != want[i] {
			t.Errorf("entry %d action = %q, want %q", i, e.Action, want[i])
		}
	}
}
