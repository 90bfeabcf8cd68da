package collab

import (
	"context"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/policy/grouppolicy"
	"github.com/dalemusser/taskgroups/internal/app/store/audit"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLogLimit is the page size for ViewLog when none is given.
const DefaultLogLimit = 100

// DefaultAuditLimit bounds ViewAudit when no limit is given.
const DefaultAuditLimit = 50

// record appends one change-log entry. seq equals the new total_changes, so
// the log length and the counter never drift apart.
func (s *Service) record(agg *models.GroupAggregate, actor Actor, action, message string, now time.Time) {
	agg.Group.TotalChanges++
	agg.Group.LastActivityAt = now
	agg.Changes = append(agg.Changes, models.ChangeLogEntry{
		GroupID:       agg.Group.ID,
		Seq:           agg.Group.TotalChanges,
		UserID:        actor.ID,
		UserName:      actor.displayName(),
		Action:        action,
		CommitMessage: message,
		Timestamp:     now,
	})
}

// LogPage is one page of a group's change log, newest first.
type LogPage struct {
	Entries []models.ChangeLogEntry `json:"entries"`
	Total   int64                   `json:"total"`
	Limit   int64                   `json:"limit"`
	Offset  int64                   `json:"offset"`
}

// ViewLog returns change-log entries newest first. Collaborator or higher.
func (s *Service) ViewLog(ctx context.Context, actor Actor, groupID primitive.ObjectID, limit, offset int64) (LogPage, error) {
	if err := actor.validate(); err != nil {
		return LogPage{}, err
	}
	agg, err := s.load(ctx, groupID)
	if err != nil {
		return LogPage{}, err
	}
	member := agg.Member(actor.ID)
	if !grouppolicy.Authorize(member, grouppolicy.OpViewLog) {
		return LogPage{}, s.deny(ctx, groupID, actor, member, grouppolicy.OpViewLog)
	}
	if offset < 0 {
		return LogPage{}, invalid("offset must not be negative")
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}

	var (
		entries []models.ChangeLogEntry
		stored  int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.repo.ListChangeLog(gctx, groupID, limit, offset)
		return err
	})
	g.Go(func() error {
		var err error
		stored, err = s.repo.CountChangeLog(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return LogPage{}, fromStore(err)
	}
	if stored != agg.Group.TotalChanges {
		s.log.Warn("change log length differs from total_changes",
			zap.String("group_id", groupID.Hex()),
			zap.Int64("total_changes", agg.Group.TotalChanges),
			zap.Int64("log_entries", stored))
	}
	if entries == nil {
		entries = []models.ChangeLogEntry{}
	}
	return LogPage{
		Entries: entries,
		Total:   agg.Group.TotalChanges,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// ViewAudit returns the recorded audit trail of a group: mutations and
// permission denials, newest first. category narrows it to
// audit.CategoryGroup or audit.CategorySecurity. Only the owner may read it.
func (s *Service) ViewAudit(ctx context.Context, actor Actor, groupID primitive.ObjectID, category string, limit, offset int64) ([]audit.Event, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	switch category {
	case "", audit.CategoryGroup, audit.CategorySecurity:
	default:
		return nil, invalid("category must be %s or %s", audit.CategoryGroup, audit.CategorySecurity)
	}
	if offset < 0 {
		return nil, invalid("offset must not be negative")
	}
	agg, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	member := agg.Member(actor.ID)
	if !grouppolicy.Authorize(member, grouppolicy.OpViewAudit) {
		return nil, s.deny(ctx, groupID, actor, member, grouppolicy.OpViewAudit)
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	events, err := s.audit.GroupTrail(ctx, groupID, category, limit, offset)
	if err != nil {
		return nil, internal("audit store failure", err)
	}
	return events, nil
}
