package auditlog_test

import (
	"testing"

	"github.com/dalemusser/taskgroups/internal/app/store/audit"
	"github.com/dalemusser/taskgroups/internal/app/system/auditlog"
	"github.com/dalemusser/taskgroups/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.GroupChanged(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "added_task", nil)
	logger.PermissionDenied(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "reorder_tasks", "role below collaborator")
}

func TestLogger_LogOnly(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Group: "log", Security: "log"})
	groupID := primitive.NewObjectID()
	actorID := primitive.NewObjectID()

	logger.GroupChanged(ctx, groupID, actorID, "added_task", map[string]string{"task": "Buy milk"})
	logger.PermissionDenied(ctx, groupID, actorID, "reorder_tasks", "role below collaborator")

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit log lines, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("mutation level = %v, want info", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("denial level = %v, want warn", entries[1].Level)
	}
	fields := entries[0].ContextMap()
	if fields["group_id"] != groupID.Hex() {
		t.Errorf("group_id = %v, want %s", fields["group_id"], groupID.Hex())
	}
	if fields["detail_task"] != "Buy milk" {
		t.Errorf("detail_task = %v, want Buy milk", fields["detail_task"])
	}
}

func TestLogger_CategoryFilteredByConfig(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Group: "off", Security: "log"})
	logger.GroupChanged(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "added_task", nil)
	logger.PermissionDenied(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "delete_task", "non-member")

	if got := logs.FilterMessage("audit event").Len(); got != 1 {
		t.Errorf("expected only the security event, got %d lines", got)
	}
}

func TestLogger_Log_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Group: "db", Security: "db"})

	groupID := primitive.NewObjectID()
	actorID := primitive.NewObjectID()
	logger.GroupChanged(ctx, groupID, actorID, "completed_task", nil)

	events, err := logger.GroupTrail(ctx, groupID, "", 10, 0)
	if err != nil {
		t.Fatalf("GroupTrail failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "completed_task" {
		t.Errorf("EventType = %q, want completed_task", events[0].EventType)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no zap output in db mode, got %d lines", logs.Len())
	}
}

func TestLogger_Log_ConfigAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := auditlog.New(store, zap.New(core), auditlog.Config{Group: "all", Security: "all"})

	groupID := primitive.NewObjectID()
	actorID := primitive.NewObjectID()
	logger.GroupDeleted(ctx, groupID, actorID, "Groceries")

	events, err := logger.GroupTrail(ctx, groupID, audit.CategoryGroup, 10, 0)
	if err != nil {
		t.Fatalf("GroupTrail failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Details["group_name"] != "Groceries" {
		t.Errorf("group_name detail = %q, want Groceries", events[0].Details["group_name"])
	}
	if logs.Len() != 1 {
		t.Errorf("expected 1 zap line, got %d", logs.Len())
	}
}

func TestLogger_GroupTrail_NoStore(t *testing.T) {
	logger := auditlog.New(nil, zap.NewNop(), auditlog.Config{Group: "all", Security: "all"})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events, err := logger.GroupTrail(ctx, primitive.NewObjectID(), "", 10, 0)
	if err != nil {
		t.Fatalf("GroupTrail failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Fatalf("expected an empty non-nil trail, got %v", events)
	}
}
