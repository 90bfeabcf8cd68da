package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	sharedgroupstore "github.com/dalemusser/taskgroups/internal/app/store/sharedgroups"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// GroupRepo is the store surface fixtures write through. Both the Mongo and
// the in-memory group stores satisfy it.
type GroupRepo interface {
	Create(ctx context.Context, agg *models.GroupAggregate) error
	Load(ctx context.Context, id primitive.ObjectID) (*models.GroupAggregate, error)
	Save(ctx context.Context, agg *models.GroupAggregate) error
}

var _ GroupRepo = (*sharedgroupstore.MemoryStore)(nil)
var _ GroupRepo = (*sharedgroupstore.Store)(nil)

// Fixtures provides helper methods for creating test data directly in a
// store, bypassing the engine's permission checks.
type Fixtures struct {
	repo GroupRepo
	t    *testing.T
	now  time.Time
}

// NewFixtures creates a new Fixtures instance for the given store.
func NewFixtures(t *testing.T, repo GroupRepo) *Fixtures {
	t.Helper()
	return &Fixtures{repo: repo, t: t, now: time.Now().UTC().Truncate(time.Millisecond)}
}

// CreateGroup creates a group owned by ownerID. accessKey is used only for
// private groups.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, ownerID primitive.ObjectID, ownerName string, isPublic bool, accessKey string) *models.GroupAggregate {
	f.t.Helper()

	id := primitive.NewObjectID()
	agg := &models.GroupAggregate{
		Group: models.SharedGroup{
			ID:             id,
			Name:           name,
			OwnerID:        ownerID,
			OwnerName:      ownerName,
			IsPublic:       isPublic,
			TotalChanges:   1,
			CreatedAt:      f.now,
			LastActivityAt: f.now,
		},
		Members: []models.GroupMember{{
			GroupID:     id,
			UserID:      ownerID,
			DisplayName: ownerName,
			Role:        models.RoleOwner,
			JoinedAt:    f.now,
		}},
		Changes: []models.ChangeLogEntry{{
			GroupID:   id,
			Seq:       1,
			UserID:    ownerID,
			UserName:  ownerName,
			Action:    models.ActionCreated,
			Timestamp: f.now,
		}},
	}
	if !isPublic {
		agg.Group.AccessKey = accessKey
	}
	if err := f.repo.Create(ctx, agg); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return agg
}

// AddMember adds userID with role to an existing group.
func (f *Fixtures) AddMember(ctx context.Context, groupID, userID primitive.ObjectID, name string, role models.Role) {
	f.t.Helper()
	f.update(ctx, groupID, models.ActionJoined, userID, name, func(agg *models.GroupAggregate) {
		agg.Members = append(agg.Members, models.GroupMember{
			GroupID:     groupID,
			UserID:      userID,
			DisplayName: name,
			Role:        role,
			JoinedAt:    f.now,
		})
	})
}

// AddTask appends a task created by userID and returns it.
func (f *Fixtures) AddTask(ctx context.Context, groupID, userID primitive.ObjectID, text string) models.GroupTask {
	f.t.Helper()
	var task models.GroupTask
	f.update(ctx, groupID, models.ActionAddedTask, userID, "", func(agg *models.GroupAggregate) {
		order := 0
		if max, ok := agg.MaxOrder(); ok {
			order = max + 1
		}
		task = models.GroupTask{
			ID:        primitive.NewObjectID(),
			GroupID:   groupID,
			Text:      text,
			CreatedBy: userID,
			CreatedAt: f.now,
			Order:     order,
		}
		agg.Tasks = append(agg.Tasks, task)
	})
	return task
}

// AddJoinRequest files a pending request for userID.
func (f *Fixtures) AddJoinRequest(ctx context.Context, groupID, userID primitive.ObjectID, name string, kind models.JoinRequestKind, role models.Role) models.JoinRequest {
	f.t.Helper()
	var req models.JoinRequest
	f.update(ctx, groupID, models.ActionRequestedJoin, userID, name, func(agg *models.GroupAggregate) {
		req = models.JoinRequest{
			ID:            primitive.NewObjectID(),
			GroupID:       groupID,
			Kind:          kind,
			UserID:        userID,
			DisplayName:   name,
			RequestedRole: role,
			Status:        models.StatusPending,
			CreatedAt:     f.now,
		}
		agg.JoinRequests = append(agg.JoinRequests, req)
	})
	return req
}

// update loads, mutates, logs one change and saves.
func (f *Fixtures) update(ctx context.Context, groupID primitive.ObjectID, action string, userID primitive.ObjectID, name string, fn func(*models.GroupAggregate)) {
	f.t.Helper()
	agg, err := f.repo.Load(ctx, groupID)
	if err != nil {
		f.t.Fatalf("failed to load test group: %v", err)
	}
	fn(agg)
	agg.Group.TotalChanges++
	agg.Changes = append(agg.Changes, models.ChangeLogEntry{
		GroupID:   groupID,
		Seq:       agg.Group.TotalChanges,
		UserID:    userID,
		UserName:  name,
		Action:    action,
		Timestamp: f.now,
	})
	if err := f.repo.Save(ctx, agg); err != nil {
		f.t.Fatalf("failed to save test group: %v", err)
	}
}
