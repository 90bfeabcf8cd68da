// internal/app/store/sharedgroups/groupstore.go
package sharedgroupstore

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/dalemusser/taskgroups/internal/app/system/txn"
	"github.com/dalemusser/taskgroups/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names.
const (
	GroupsCollection       = "shared_groups"
	MembersCollection      = "shared_group_members"
	TasksCollection        = "shared_group_tasks"
	JoinRequestsCollection = "shared_group_join_requests"
	ChangeLogCollection    = "shared_group_change_log"
)

var (
	ErrNotFound        = errors.New("shared group not found")
	ErrDuplicateName   = errors.New("a group with this name already exists")
	ErrVersionConflict = errors.New("shared group was modified concurrently")
)

// Store persists GroupAggregates across the normalized shared_group_*
// collections. Every write of an aggregate is one unit of work guarded by a
// compare-and-swap on the group's version.
type Store struct {
	client   *mongo.Client
	groups   *mongo.Collection
	members  *mongo.Collection
	tasks    *mongo.Collection
	requests *mongo.Collection
	log      *mongo.Collection
	logger   *zap.Logger
}

func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		client:   db.Client(),
		groups:   db.Collection(GroupsCollection),
		members:  db.Collection(MembersCollection),
		tasks:    db.Collection(TasksCollection),
		requests: db.Collection(JoinRequestsCollection),
		log:      db.Collection(ChangeLogCollection),
		logger:   logger,
	}
}

// Create inserts a brand-new aggregate. The group starts at version 1.
func (s *Store) Create(ctx context.Context, agg *models.GroupAggregate) error {
	agg.Group.NameCI = text.Fold(agg.Group.Name)
	agg.Group.Version = 1
	err := txn.Run(ctx, s.client, s.logger, func(ctx context.Context) error {
		if _, err := s.groups.InsertOne(ctx, agg.Group); err != nil {
			if wafflemongo.IsDup(err) {
				return ErrDuplicateName
			}
			return err
		}
		return s.writeChildren(ctx, agg)
	})
	if err != nil {
		agg.Group.Version = 0
		return err
	}
	agg.Changes = nil
	return nil
}

// Load reassembles the aggregate for id. The change log is not loaded.
func (s *Store) Load(ctx context.Context, id primitive.ObjectID) (*models.GroupAggregate, error) {
	var g models.SharedGroup
	if err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	agg := &models.GroupAggregate{Group: g}

	if err := findAll(ctx, s.members, bson.M{"group_id": id},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}), &agg.Members); err != nil {
		return nil, err
	}
	if err := findAll(ctx, s.tasks, bson.M{"group_id": id},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}}), &agg.Tasks); err != nil {
		return nil, err
	}
	if err := findAll(ctx, s.requests, bson.M{"group_id": id},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}), &agg.JoinRequests); err != nil {
		return nil, err
	}
	return agg, nil
}

// Save writes the whole aggregate if nobody else saved it since it was
// loaded. On success the aggregate's version is advanced and its pending
// change-log entries are cleared.
func (s *Store) Save(ctx context.Context, agg *models.GroupAggregate) error {
	expected := agg.Group.Version
	next := agg.Group
	next.NameCI = text.Fold(next.Name)
	next.Version = expected + 1

	err := txn.Run(ctx, s.client, s.logger, func(ctx context.Context) error {
		res, err := s.groups.ReplaceOne(ctx, bson.M{"_id": next.ID, "version": expected}, next)
		if err != nil {
			if wafflemongo.IsDup(err) {
				return ErrDuplicateName
			}
			return err
		}
		if res.MatchedCount == 0 {
			n, err := s.groups.CountDocuments(ctx, bson.M{"_id": next.ID})
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		return s.writeChildren(ctx, agg)
	})
	if err != nil {
		return err
	}
	agg.Group = next
	agg.Changes = nil
	return nil
}

// Delete removes the group and everything that belongs to it.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	return txn.Run(ctx, s.client, s.logger, func(ctx context.Context) error {
		res, err := s.groups.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		for _, c := range []*mongo.Collection{s.members, s.tasks, s.requests, s.log} {
			if _, err := c.DeleteMany(ctx, bson.M{"group_id": id}); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeChildren upserts members, tasks and join requests, drops members no
// longer present, and appends the pending change-log entries.
func (s *Store) writeChildren(ctx context.Context, agg *models.GroupAggregate) error {
	gid := agg.Group.ID

	memberIDs := make([]primitive.ObjectID, 0, len(agg.Members))
	memberWrites := make([]mongo.WriteModel, 0, len(agg.Members))
	for _, m := range agg.Members {
		m.GroupID = gid
		memberIDs = append(memberIDs, m.UserID)
		memberWrites = append(memberWrites, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"group_id": gid, "user_id": m.UserID}).
			SetReplacement(m).
			SetUpsert(true))
	}
	if err := bulk(ctx, s.members, memberWrites); err != nil {
		return err
	}
	if _, err := s.members.DeleteMany(ctx, bson.M{"group_id": gid, "user_id": bson.M{"$nin": memberIDs}}); err != nil {
		return err
	}

	taskWrites := make([]mongo.WriteModel, 0, len(agg.Tasks))
	for _, t := range agg.Tasks {
		t.GroupID = gid
		taskWrites = append(taskWrites, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": t.ID}).
			SetReplacement(t).
			SetUpsert(true))
	}
	if err := bulk(ctx, s.tasks, taskWrites); err != nil {
		return err
	}

	reqWrites := make([]mongo.WriteModel, 0, len(agg.JoinRequests))
	for _, r := range agg.JoinRequests {
		r.GroupID = gid
		reqWrites = append(reqWrites, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(r).
			SetUpsert(true))
	}
	if err := bulk(ctx, s.requests, reqWrites); err != nil {
		return err
	}

	if len(agg.Changes) > 0 {
		docs := make([]interface{}, 0, len(agg.Changes))
		for _, e := range agg.Changes {
			e.GroupID = gid
			docs = append(docs, e)
		}
		if _, err := s.log.InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}

// FindByName looks a group up by its folded name.
func (s *Store) FindByName(ctx context.Context, name string) (models.SharedGroup, error) {
	var g models.SharedGroup
	err := s.groups.FindOne(ctx, bson.M{"name_ci": text.Fold(strings.TrimSpace(name))}).Decode(&g)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SharedGroup{}, ErrNotFound
		}
		return models.SharedGroup{}, err
	}
	return g, nil
}

// ListByMember returns every group userID belongs to, sorted by name.
func (s *Store) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.SharedGroup, error) {
	var rows []struct {
		GroupID primitive.ObjectID `bson:"group_id"`
	}
	if err := findAll(ctx, s.members, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"group_id": 1}), &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.GroupID)
	}
	return s.ListByIDs(ctx, ids)
}

// ListOwnedBy returns the groups owned by userID, sorted by name.
func (s *Store) ListOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.SharedGroup, error) {
	var out []models.SharedGroup
	err := findAll(ctx, s.groups, bson.M{"owner_id": userID},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}), &out)
	return out, err
}

// ListByIDs returns the groups with the given ids, sorted by name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.SharedGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.SharedGroup
	err := findAll(ctx, s.groups, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}), &out)
	return out, err
}

// SearchPublic does a case-insensitive substring match over public group
// names and descriptions. An empty query lists public groups by name.
func (s *Store) SearchPublic(ctx context.Context, query string, limit int64) ([]models.SharedGroup, error) {
	filter := bson.M{"is_public": true}
	if q := strings.TrimSpace(query); q != "" {
		pat := regexp.QuoteMeta(text.Fold(q))
		filter["$or"] = bson.A{
			bson.M{"name_ci": primitive.Regex{Pattern: pat}},
			bson.M{"description": primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}},
		}
	}
	if limit <= 0 {
		limit = 50
	}
	var out []models.SharedGroup
	err := findAll(ctx, s.groups, filter,
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).SetLimit(limit), &out)
	return out, err
}

// ListRequestsByUser returns every join request userID filed, newest first.
func (s *Store) ListRequestsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.JoinRequest, error) {
	var out []models.JoinRequest
	err := findAll(ctx, s.requests, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}), &out)
	return out, err
}

// ListPendingRequests returns the pending requests for the given groups,
// oldest first.
func (s *Store) ListPendingRequests(ctx context.Context, groupIDs []primitive.ObjectID) ([]models.JoinRequest, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var out []models.JoinRequest
	err := findAll(ctx, s.requests,
		bson.M{"group_id": bson.M{"$in": groupIDs}, "status": models.StatusPending},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}), &out)
	return out, err
}

// ListChangeLog returns a page of the group's change log, newest first.
func (s *Store) ListChangeLog(ctx context.Context, groupID primitive.ObjectID, limit, offset int64) ([]models.ChangeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.ChangeLogEntry
	err := findAll(ctx, s.log, bson.M{"group_id": groupID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}).SetLimit(limit).SetSkip(offset), &out)
	return out, err
}

// CountChangeLog returns the number of persisted change-log entries.
func (s *Store) CountChangeLog(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	return s.log.CountDocuments(ctx, bson.M{"group_id": groupID})
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter interface{}, opts *options.FindOptions, out *[]T) error {
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

func bulk(ctx context.Context, c *mongo.Collection, writes []mongo.WriteModel) error {
	if len(writes) == 0 {
		return nil
	}
	_, err := c.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}
