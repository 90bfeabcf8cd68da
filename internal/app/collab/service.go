// Package collab is the shared-group collaboration engine: role checks,
// the join and role-upgrade workflow, task mutations, the change log and
// the group lifecycle.
//
// Every mutation follows the same pipeline: take the group's write lock,
// load the aggregate, authorize the actor once, apply the change, record
// one change-log entry, save with a version check, then publish an event.
package collab

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/policy/grouppolicy"
	"github.com/dalemusser/taskgroups/internal/app/system/auditlog"
	"github.com/dalemusser/taskgroups/internal/app/system/events"
	"github.com/dalemusser/taskgroups/internal/app/system/grouplock"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultRoleUpgradeCooldown is how long a pending request blocks a new one.
const DefaultRoleUpgradeCooldown = 7 * 24 * time.Hour

// DefaultLockWait is how long a mutation waits for another writer.
const DefaultLockWait = 5 * time.Second

// Repository is the persistence contract. Both the Mongo store and the
// in-memory store satisfy it.
type Repository interface {
	Create(ctx context.Context, agg *models.GroupAggregate) error
	Load(ctx context.Context, id primitive.ObjectID) (*models.GroupAggregate, error)
	Save(ctx context.Context, agg *models.GroupAggregate) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	FindByName(ctx context.Context, name string) (models.SharedGroup, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.SharedGroup, error)
	ListOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.SharedGroup, error)
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.SharedGroup, error)
	SearchPublic(ctx context.Context, query string, limit int64) ([]models.SharedGroup, error)

	ListRequestsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.JoinRequest, error)
	ListPendingRequests(ctx context.Context, groupIDs []primitive.ObjectID) ([]models.JoinRequest, error)

	ListChangeLog(ctx context.Context, groupID primitive.ObjectID, limit, offset int64) ([]models.ChangeLogEntry, error)
	CountChangeLog(ctx context.Context, groupID primitive.ObjectID) (int64, error)
}

// Options configures a Service. Zero values pick defaults.
type Options struct {
	Locker   grouplock.Locker
	Events   events.Publisher
	Audit    *auditlog.Logger
	Cooldown time.Duration
	// SearchLimit caps public search results.
	SearchLimit int64
	// LockWait bounds how long a mutation waits for the group lock.
	LockWait time.Duration
	// Now is the clock; tests inject a fixed one.
	Now func() time.Time
}

// Service runs collaboration operations against a Repository.
type Service struct {
	repo        Repository
	locker      grouplock.Locker
	events      events.Publisher
	audit       *auditlog.Logger
	log         *zap.Logger
	cooldown    time.Duration
	searchLimit int64
	lockWait    time.Duration
	now         func() time.Time
}

// New returns a Service.
func New(repo Repository, logger *zap.Logger, opts Options) *Service {
	s := &Service{
		repo:        repo,
		locker:      opts.Locker,
		events:      opts.Events,
		audit:       opts.Audit,
		log:         logger,
		cooldown:    opts.Cooldown,
		searchLimit: opts.SearchLimit,
		lockWait:    opts.LockWait,
		now:         opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.locker == nil {
		s.locker = grouplock.NewLocal()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.cooldown <= 0 {
		s.cooldown = DefaultRoleUpgradeCooldown
	}
	if s.searchLimit <= 0 {
		s.searchLimit = 50
	}
	if s.lockWait <= 0 {
		s.lockWait = DefaultLockWait
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// mutation is the state of one in-flight write.
type mutation struct {
	agg    *models.GroupAggregate
	member *models.GroupMember // nil for non-members
	actor  Actor
	now    time.Time
}

// change describes what a mutation did. An empty action means no change-log
// entry (the write is still saved); noop skips the save entirely.
type change struct {
	action  string
	message string
	noop    bool
}

type applyFunc func(m *mutation) (change, error)

// mutate runs the shared write pipeline. op is checked against the role
// policy before apply runs; pass "" when apply does its own authorization.
func (s *Service) mutate(ctx context.Context, actor Actor, groupID primitive.ObjectID, op grouppolicy.Operation, apply applyFunc) (*models.GroupAggregate, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	agg, err := s.repo.Load(ctx, groupID)
	if err != nil {
		return nil, fromStore(err)
	}

	m := &mutation{
		agg:    agg,
		member: agg.Member(actor.ID),
		actor:  actor,
		now:    s.now().UTC(),
	}
	if op != "" && !grouppolicy.Authorize(m.member, op) {
		return nil, s.deny(ctx, groupID, actor, m.member, op)
	}

	ch, err := apply(m)
	if err != nil {
		if KindOf(err) == KindForbidden {
			s.audit.PermissionDenied(ctx, groupID, actor.ID, string(op), err.Error())
		}
		return nil, err
	}
	if ch.noop {
		return s.view(agg, actor.ID), nil
	}
	if ch.action != "" {
		s.record(agg, actor, ch.action, ch.message, m.now)
	}

	if err := s.repo.Save(ctx, agg); err != nil {
		return nil, fromStore(err)
	}

	if ch.action != "" {
		s.audit.GroupChanged(ctx, groupID, actor.ID, ch.action, map[string]string{"message": ch.message})
		s.publish(ctx, events.NewGroupChanged(groupID, actor.ID, ch.action, agg.Group.TotalChanges, m.now))
	}
	return s.view(agg, actor.ID), nil
}

// lock takes the per-group lock, waiting at most lockWait. A wait that
// runs out while the caller's context is still live means another writer
// holds the group; that is reported as a Conflict the client can retry.
func (s *Service) lock(ctx context.Context, groupID primitive.ObjectID) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lctx, groupID.Hex())
	if err == nil {
		return unlock, nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, grouplock.ErrLockTimeout)) {
		return nil, conflict("group is busy, try again")
	}
	return nil, internal("could not acquire group lock", err)
}

// deny records a policy denial and returns the Forbidden error for it.
func (s *Service) deny(ctx context.Context, groupID primitive.ObjectID, actor Actor, member *models.GroupMember, op grouppolicy.Operation) error {
	reason := "not a member of this group"
	if member != nil {
		reason = "operation not permitted"
		if min, ok := grouppolicy.MinimumRole(op); ok {
			reason = "requires role " + string(min) + " or higher"
		}
	}
	s.audit.PermissionDenied(ctx, groupID, actor.ID, string(op), reason)
	return forbidden("%s", reason)
}

// publish delivers ev. Failures are logged; the mutation is already saved.
func (s *Service) publish(ctx context.Context, ev events.GroupChanged) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish group event failed",
			zap.String("group_id", ev.GroupID),
			zap.String("action", ev.Action),
			zap.Error(err))
	}
}

// view is what viewerID may see of agg. The access key is kept only for
// the owner. Non-members of a private group get the header and their own
// requests; members and tasks are withheld until they join.
func (s *Service) view(agg *models.GroupAggregate, viewerID primitive.ObjectID) *models.GroupAggregate {
	v := agg.RedactFor(viewerID)
	if !v.Group.IsPublic && v.Member(viewerID) == nil {
		v.Members = nil
		v.Tasks = nil
	}
	return v
}

// load fetches an aggregate and maps store errors.
func (s *Service) load(ctx context.Context, groupID primitive.ObjectID) (*models.GroupAggregate, error) {
	agg, err := s.repo.Load(ctx, groupID)
	if err != nil {
		return nil, fromStore(err)
	}
	return agg, nil
}
