// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureOrgUnits(ctx, db); err != nil {
		problems = append(problems, "org_units: "+err.Error())
	}
	if err := ensureApplications(ctx, db); err != nil {
		problems = append(problems, "applications: "+err.Error())
	}
	if err := ensureIdentities(ctx, db); err != nil {
		problems = append(problems, "identities: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureOrgUnits(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("org_units")

	models := []mongo.IndexModel{
		// One unit name per level among active units.
		{
			Keys: bson.D{{Key: "level", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().
				SetName("uniq_units_level_nameci_active").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "active"}),
		},
		// One active city unit per city tuple.
		{
			Keys: bson.D{
				{Key: "location_ci.country", Value: 1},
				{Key: "location_ci.state", Value: 1},
				{Key: "location_ci.district", Value: 1},
				{Key: "location_ci.city", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_units_city_location_active").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "active", "level": "city"}),
		},
		// One active area unit per area tuple.
		{
			Keys: bson.D{
				{Key: "location_ci.country", Value: 1},
				{Key: "location_ci.state", Value: 1},
				{Key: "location_ci.district", Value: 1},
				{Key: "location_ci.city", Value: 1},
				{Key: "location_ci.area", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_units_area_location_active").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "active", "level": "area"}),
		},
		// Jurisdiction lookup used by routing and uniqueness probes.
		{
			Keys: bson.D{
				{Key: "level", Value: 1},
				{Key: "status", Value: 1},
				{Key: "location_ci.country", Value: 1},
				{Key: "location_ci.state", Value: 1},
				{Key: "location_ci.district", Value: 1},
				{Key: "location_ci.city", Value: 1},
				{Key: "location_ci.area", Value: 1},
			},
			Options: options.Index().SetName("idx_units_level_status_location"),
		},
		{
			Keys:    bson.D{{Key: "parent_id", Value: 1}},
			Options: options.Index().SetName("idx_units_parent"),
		},
		// Bearer-holder scan for the one-position-per-level rule.
		{
			Keys:    bson.D{{Key: "office_bearers.user_id", Value: 1}, {Key: "level", Value: 1}},
			Options: options.Index().SetName("idx_units_bearer_user_level"),
		},
		{
			Keys:    bson.D{{Key: "members.user_id", Value: 1}},
			Options: options.Index().SetName("idx_units_member_user"),
		},
		// Lapsed-term sweep: active bearers by end date.
		{
			Keys:    bson.D{{Key: "office_bearers.end_date", Value: 1}},
			Options: options.Index().SetName("idx_units_bearer_end_date"),
		},
	}

	return ensureIndexSet(ctx, coll, models)
}

func ensureApplications(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("applications")

	models := []mongo.IndexModel{
		// Review queues: pending applications per reviewing unit.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "reviewing_unit_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_apps_status_unit_created"),
		},
		{
			Keys:    bson.D{{Key: "applicant_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_apps_applicant_created"),
		},
		// Verification numbers are unique among approved applications; the
		// partial filter skips the documents that have no number yet.
		{
			Keys: bson.D{{Key: "verified_number", Value: 1}},
			Options: options.Index().
				SetName("uniq_apps_verified_number").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"verified_number": bson.M{"$type": "string"}}),
		},
	}

	return ensureIndexSet(ctx, coll, models)
}

func ensureIdentities(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection("identities")

	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().
				SetName("uniq_identities_emailci").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "verified", Value: 1}},
			Options: options.Index().SetName("idx_identities_verified"),
		},
	}

	return ensureIndexSet(ctx, coll, models)
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

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		return err
	}

	var errs []string
	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
				continue
			}
			// Name or options mismatch: drop and recreate under the desired
			// definition.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				zap.L().Warn("index options conflict, reusing existing definition",
					zap.String("collection", coll.Name()),
					zap.String("name", desiredName))
				continue
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		zap.L().Info("index created",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	existing := map[string]existingIndex{} // key signature -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
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
	return existing, cur.Err()
}
