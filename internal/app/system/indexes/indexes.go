// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names. They match the store packages; the duplication keeps
// this package free of store imports.
const (
	sharedGroups       = "shared_groups"
	sharedGroupMembers = "shared_group_members"
	sharedGroupTasks   = "shared_group_tasks"
	sharedGroupJoinReq = "shared_group_join_requests"
	sharedGroupLog     = "shared_group_change_log"
	sharedGroupAudit   = "shared_group_audit"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{sharedGroups, ensureSharedGroups},
		{sharedGroupMembers, ensureSharedGroupMembers},
		{sharedGroupTasks, ensureSharedGroupTasks},
		{sharedGroupJoinReq, ensureSharedGroupJoinRequests},
		{sharedGroupLog, ensureSharedGroupChangeLog},
		{sharedGroupAudit, ensureAuditEvents},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

// duplicateHint points operators at the aggregation that finds the rows
// blocking a unique index on shared_groups.name_ci.
func duplicateHint(coll, sig string) string {
	if coll == sharedGroups && strings.Contains(sig, "name_ci:1") {
		return "; duplicate group names exist. Example finder: " +
			`db.shared_groups.aggregate([{ $group: { _id: "$name_ci", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	}
	return ""
}

// createFailure formats a CreateOne error for the aggregated report.
func createFailure(coll, name, sig string, unique *bool, err error) string {
	if isDuplicateKeyErr(err) && unique != nil && *unique {
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)%s", coll, name, duplicateHint(coll, sig))
	}
	return fmt.Sprintf("%s(%s): %v", coll, name, err)
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))
		unique := desiredUnique != nil && *desiredUnique

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", unique))

		if ex, ok := listExisting(ctx, coll)[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.String("took", time.Since(start).String()))
				continue
			}

			// Name or options differ: drop and recreate with the desired shape.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				errs = append(errs, createFailure(coll.Name(), desiredName, desiredSig, desiredUnique, err))
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("from", ex.Name),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", unique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err == nil {
			zap.L().Info("index ensured",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("created_name", created),
				zap.String("keys", desiredSig),
				zap.Bool("unique", unique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// A concurrent starter may have created the same keys under another
		// name between our List and CreateOne.
		if isOptionsConflictErr(err) {
			if match, ok := listExisting(ctx, coll)[desiredSig]; ok {
				if sameBoolPtr(desiredUnique, match.Unique) {
					zap.L().Info("reusing existing index (post-conflict)",
						zap.String("collection", coll.Name()),
						zap.String("name", match.Name),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}
				if _, dropErr := coll.Indexes().DropOne(ctx, match.Name); dropErr != nil {
					zap.L().Warn("failed to drop conflicting index",
						zap.String("collection", coll.Name()),
						zap.String("name", match.Name),
						zap.Error(dropErr))
				}
				if _, err = coll.Indexes().CreateOne(ctx, m); err == nil {
					zap.L().Info("index dropped and recreated (post-conflict)",
						zap.String("collection", coll.Name()),
						zap.String("name", desiredName),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}
			}
		}

		zap.L().Warn("index ensure failed",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", unique),
			zap.String("took", time.Since(start).String()),
			zap.Error(err))
		errs = append(errs, createFailure(coll.Name(), desiredName, desiredSig, desiredUnique, err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureSharedGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(sharedGroups)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Group names are unique across the whole system (case-folded via name_ci).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_shared_groups_nameci"),
		},
		// Public search sorts by name_ci.
		{
			Keys:    bson.D{{Key: "is_public", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_shared_groups_public_nameci__id"),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("idx_shared_groups_owner"),
		},
	})
}

func ensureSharedGroupMembers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(sharedGroupMembers)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One membership per (group, user).
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_shared_group_members_group_user"),
		},
		// "My groups" lists.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_shared_group_members_user"),
		},
	})
}

func ensureSharedGroupTasks(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(sharedGroupTasks)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "order", Value: 1}},
			Options: options.Index().SetName("idx_shared_group_tasks_group_order"),
		},
	})
}

func ensureSharedGroupJoinRequests(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(sharedGroupJoinReq)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_shared_group_join_requests_group_user_status"),
		},
		// Outgoing notifications, newest first.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_shared_group_join_requests_user_created"),
		},
		// Incoming notifications for owned groups.
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_shared_group_join_requests_group_status"),
		},
	})
}

func ensureSharedGroupChangeLog(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(sharedGroupLog)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Sequence numbers are gap-free and unique per group.
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_shared_group_change_log_group_seq"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection(sharedGroupAudit)
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_group_timestamp"),
		},
		{
			Keys: bson.D{
				{Key: "group_id", Value: 1},
				{Key: "category", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_group_category_timestamp"),
		},
	})
}
