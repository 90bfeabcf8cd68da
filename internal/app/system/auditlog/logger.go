// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"

	"github.com/dalemusser/taskgroups/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Group controls logging for successful group mutations.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Group string
	// Security controls logging for authorization denials.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Security string
}

// Logger provides convenience methods for logging audit events.
// It logs to MongoDB (via audit.Store) and structured logs (via zap).
// A nil store disables the MongoDB destination (memory backend).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.GroupID != nil {
		fields = append(fields, zap.String("group_id", event.GroupID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryGroup:
		setting = l.config.Group
	case audit.CategorySecurity:
		setting = l.config.Security
	default:
		setting = "all"
	}

	if setting == "off" || setting == "" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// GroupChanged logs a successful group mutation. action is the change-log
// action recorded for it.
func (l *Logger) GroupChanged(ctx context.Context, groupID, actorID primitive.ObjectID, action string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: action,
		GroupID:   &groupID,
		ActorID:   &actorID,
		Success:   true,
		Details:   details,
	})
}

// GroupDeleted logs removal of a whole group.
func (l *Logger) GroupDeleted(ctx context.Context, groupID, actorID primitive.ObjectID, groupName string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryGroup,
		EventType: audit.EventGroupDeleted,
		GroupID:   &groupID,
		ActorID:   &actorID,
		Success:   true,
		Details:   map[string]string{"group_name": groupName},
	})
}

// PermissionDenied logs an operation rejected by the role policy.
func (l *Logger) PermissionDenied(ctx context.Context, groupID, actorID primitive.ObjectID, operation, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventPermissionDenied,
		GroupID:       &groupID,
		ActorID:       &actorID,
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"operation": operation},
	})
}

// GroupTrail returns the stored events for groupID, newest first,
// optionally narrowed to one category. With no database destination the
// trail is empty.
func (l *Logger) GroupTrail(ctx context.Context, groupID primitive.ObjectID, category string, limit, offset int64) ([]audit.Event, error) {
	if l == nil || l.store == nil {
		return []audit.Event{}, nil
	}
	events, err := l.store.Query(ctx, audit.QueryFilter{
		GroupID:  groupID,
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}
