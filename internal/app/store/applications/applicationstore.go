// internal/app/store/applications/applicationstore.go
package applicationstore

// Applications are single documents whose only mutation after insert is
// the review decision and append-only history. Decide is guarded by
// status=pending in the filter, so a terminal application can never be
// re-decided no matter how calls interleave.

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/hierarchy"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("applications")}
}

// Insert persists a new pending application with its submission entry
// already in the history.
func (s *Store) Insert(ctx context.Context, a models.Application) (models.Application, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.LocationCI = hierarchy.Fold(a.Location)
	a.Status = models.ApplicationPending
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Application{}, faults.Conflictf("duplicate application")
		}
		return models.Application{}, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Application, error) {
	var a models.Application
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Application{}, faults.NotFoundf("application %s not found", id.Hex())
	}
	if err != nil {
		return models.Application{}, err
	}
	return a, nil
}

// Decide commits a terminal decision. The pending guard in the filter
// makes the slower of two racing reviews lose with a Conflict that names
// the status that won.
func (s *Store) Decide(ctx context.Context, id primitive.ObjectID, newStatus string, entry models.ReviewEntry, verifiedNumber string) (models.Application, error) {
	set := bson.M{
		"status":     newStatus,
		"updated_at": time.Now().UTC(),
	}
	if verifiedNumber != "" {
		set["verified_number"] = verifiedNumber
	}

	var updated models.Application
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": models.ApplicationPending},
		bson.M{
			"$set":  set,
			"$push": bson.M{"review_history": entry},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return models.Application{}, getErr
		}
		return models.Application{}, faults.Conflictf("application already %s", current.Status)
	}
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Application{}, faults.Conflictf("verification number already assigned")
		}
		return models.Application{}, err
	}
	return updated, nil
}

// AppendComment adds a comment entry to the history. Allowed in any
// status: history is append-only and survives the terminal transition.
func (s *Store) AppendComment(ctx context.Context, id primitive.ObjectID, entry models.ReviewEntry) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"review_history": entry},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return faults.NotFoundf("application %s not found", id.Hex())
	}
	return nil
}

// VerifiedNumberExists supports the bounded retry loop around number
// generation. The partial unique index remains the source of truth.
func (s *Store) VerifiedNumberExists(ctx context.Context, number string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"verified_number": number}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByReviewingUnit returns applications assigned to the unit, newest
// first. A nil unitID lists the superadmin queue.
func (s *Store) ListByReviewingUnit(ctx context.Context, unitID *primitive.ObjectID, onlyPending bool) ([]models.Application, error) {
	filter := bson.M{}
	if unitID == nil {
		filter["reviewing_unit_id"] = bson.M{"$exists": false}
	} else {
		filter["reviewing_unit_id"] = *unitID
	}
	if onlyPending {
		filter["status"] = models.ApplicationPending
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var apps []models.Application
	if err := cur.All(ctx, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// Count returns the number of applications matching the filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
