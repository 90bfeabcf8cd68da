package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/store/audit"
	"github.com/dalemusser/taskgroups/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	actorID := primitive.NewObjectID()
	err := store.Log(ctx, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: "added_task",
		GroupID:   &groupID,
		ActorID:   &actorID,
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{GroupID: groupID, Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestStore_Query_ScopedToGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	chores := primitive.NewObjectID()
	other := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		ev := audit.Event{
			Category:  audit.CategoryGroup,
			EventType: "added_task",
			GroupID:   &chores,
			ActorID:   &actor,
			Success:   true,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Details:   map[string]string{"n": string(rune('a' + i))},
		}
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryGroup, EventType: "added_task", GroupID: &other, Success: true}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{GroupID: chores, Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events for the group, got %d", len(events))
	}
	if events[0].Details["n"] != "c" {
		t.Errorf("expected newest first, got %q", events[0].Details["n"])
	}

	page, err := store.Query(ctx, audit.QueryFilter{GroupID: chores, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page) != 1 || page[0].Details["n"] != "a" {
		t.Errorf("expected the oldest event on the second page, got %+v", page)
	}
}

func TestStore_Query_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events, err := store.Query(ctx, audit.QueryFilter{GroupID: primitive.NewObjectID(), Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestStore_Query_ByCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	if err := store.Log(ctx, audit.Event{Category: audit.CategorySecurity, EventType: audit.EventPermissionDenied, GroupID: &groupID, ActorID: &actor, FailureReason: "reorder_tasks"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryGroup, EventType: "added_task", GroupID: &groupID, ActorID: &actor, Success: true}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	denials, err := store.Query(ctx, audit.QueryFilter{GroupID: groupID, Category: audit.CategorySecurity})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(denials) != 1 {
		t.Fatalf("expected 1 denial, got %d", len(denials))
	}
	if denials[0].FailureReason != "reorder_tasks" {
		t.Errorf("FailureReason = %q, want reorder_tasks", denials[0].FailureReason)
	}

	all, err := store.Query(ctx, audit.QueryFilter{GroupID: groupID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 events for the group, got %d", len(all))
	}
}
