// internal/app/store/units/unitstore.go
package unitstore

// The org_units collection holds one document per unit with bearers and
// members embedded. Every mutation here is a conditional update whose
// filter encodes the invariant it protects, so two racing writers cannot
// jointly break it: the filter that fails to match simply loses.

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/hierarchy"
	"github.com/sanghsetu/sanghsetu/internal/app/system/status"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// MinCityMembers is the structural minimum roster size for city units.
const MinCityMembers = 3

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("org_units")}
}

// Insert persists a new unit, filling ID, CI mirrors, timestamps, and
// the default status. Duplicate-key collisions (name or the active
// city/area location tuple) surface as Conflict.
func (s *Store) Insert(ctx context.Context, u models.Unit) (models.Unit, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.NameCI = text.Fold(u.Name)
	u.LocationCI = hierarchy.Fold(u.Location)
	if u.Status == "" {
		u.Status = status.Active
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Unit{}, faults.Conflictf("a unit with this name or location already exists at level %s", u.Level)
		}
		return models.Unit{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Unit, error) {
	var u models.Unit
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Unit{}, faults.NotFoundf("unit %s not found", id.Hex())
	}
	if err != nil {
		return models.Unit{}, err
	}
	return u, nil
}

// GetByIDs loads multiple units; missing IDs are silently absent.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Unit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var units []models.Unit
	if err := cur.All(ctx, &units); err != nil {
		return nil, err
	}
	return units, nil
}

// Children returns the units whose parent is parentID.
func (s *Store) Children(ctx context.Context, parentID primitive.ObjectID) ([]models.Unit, error) {
	return s.Find(ctx, bson.M{"parent_id": parentID})
}

// locationFilter builds the location_ci equality clauses for level and
// everything above it, from the table in hierarchy.
func locationFilter(level models.Level, loc models.Location) bson.M {
	folded := hierarchy.Fold(loc)
	filter := bson.M{}
	for _, key := range hierarchy.RequiredKeys(level) {
		filter["location_ci."+key] = locationValue(folded, key)
	}
	return filter
}

func locationValue(loc models.Location, key string) string {
	switch key {
	case "country":
		return loc.Country
	case "state":
		return loc.State
	case "district":
		return loc.District
	case "city":
		return loc.City
	case "area":
		return loc.Area
	}
	return ""
}

// FindActiveByLevelAndLocation returns active units at level whose
// location matches loc on every field at that level and above.
func (s *Store) FindActiveByLevelAndLocation(ctx context.Context, level models.Level, loc models.Location) ([]models.Unit, error) {
	filter := locationFilter(level, loc)
	filter["level"] = level
	filter["status"] = status.Active
	return s.Find(ctx, filter)
}

// ActiveBearerHolders returns the active units at level where userID
// currently holds an active bearer slot. This is the global uniqueness
// scan: a point-in-time snapshot, backed by a detection-pass discipline
// rather than a lock (Mongo partial unique indexes cannot filter on
// array-element status).
func (s *Store) ActiveBearerHolders(ctx context.Context, userID primitive.ObjectID, level models.Level) ([]models.Unit, error) {
	return s.Find(ctx, bson.M{
		"status": status.Active,
		"level":  level,
		"office_bearers": bson.M{"$elemMatch": bson.M{
			"user_id": userID,
			"status":  status.Active,
		}},
	})
}

// ClaimConstituents links the given child units to parentID. The filter
// only matches active units at childLevel that no parent has claimed, so
// the modified count tells the caller whether another parent raced in.
func (s *Store) ClaimConstituents(ctx context.Context, parentID primitive.ObjectID, childLevel models.Level, ids []primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"_id":       bson.M{"$in": ids},
			"level":     childLevel,
			"status":    status.Active,
			"parent_id": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{
			"parent_id":  parentID,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ReleaseConstituents undoes a partial claim after a lost race.
func (s *Store) ReleaseConstituents(ctx context.Context, parentID primitive.ObjectID, ids []primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "parent_id": parentID},
		bson.M{
			"$unset": bson.M{"parent_id": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

// AddMember appends m to the roster. The filter rejects units where the
// user is already a member or holds an active bearer slot, so the check
// and the write are one atomic step.
func (s *Store) AddMember(ctx context.Context, unitID primitive.ObjectID, m models.Member) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             unitID,
			"status":          status.Active,
			"members.user_id": bson.M{"$ne": m.UserID},
			"office_bearers": bson.M{"$not": bson.M{"$elemMatch": bson.M{
				"user_id": m.UserID,
				"status":  status.Active,
			}}},
		},
		bson.M{
			"$push": bson.M{"members": m},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.explainAddMember(ctx, unitID, m.UserID)
	}
	return nil
}

func (s *Store) explainAddMember(ctx context.Context, unitID, userID primitive.ObjectID) error {
	u, err := s.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	if u.Status != status.Active {
		return faults.Conflictf("unit %s is not active", unitID.Hex())
	}
	if u.HasMember(userID) {
		return faults.Conflictf("user %s is already a member of this unit", userID.Hex())
	}
	return faults.Conflictf("user %s holds an office-bearer position in this unit", userID.Hex())
}

// RemoveMember pulls userID from the roster. For city units the filter
// additionally requires a fourth member to exist, which keeps two
// concurrent removals from jointly dropping the unit below the minimum.
func (s *Store) RemoveMember(ctx context.Context, unitID, userID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             unitID,
			"members.user_id": userID,
			"$or": bson.A{
				bson.M{"level": bson.M{"$ne": models.LevelCity}},
				bson.M{"members." + strconv.Itoa(MinCityMembers): bson.M{"$exists": true}},
			},
		},
		bson.M{
			"$pull": bson.M{"members": bson.M{"user_id": userID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.explainRemoveMember(ctx, unitID, userID)
	}
	return nil
}

func (s *Store) explainRemoveMember(ctx context.Context, unitID, userID primitive.ObjectID) error {
	u, err := s.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	if !u.HasMember(userID) {
		return faults.NotFoundf("user %s is not a member of this unit", userID.Hex())
	}
	return faults.Invariantf("city level unit must keep at least %d members", MinCityMembers)
}

// UpdateMemberFields patches fields of one roster entry via the
// positional operator. set keys are member-relative ("full_name", ...).
func (s *Store) UpdateMemberFields(ctx context.Context, unitID, userID primitive.ObjectID, set bson.M) error {
	update := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range set {
		update["members.$."+k] = v
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": unitID, "members.user_id": userID},
		bson.M{"$set": update},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, unitID); err != nil {
			return err
		}
		return faults.NotFoundf("user %s is not a member of this unit", userID.Hex())
	}
	return nil
}

// ReplaceBearerCAS swaps the holder of one bearer slot. The filter pins
// the outgoing user and end date, so of two concurrent replacements
// exactly one matches; the loser gets a Conflict. The outgoing term is
// archived into the slot history and the role recorded as rotated in the
// current term window.
func (s *Store) ReplaceBearerCAS(ctx context.Context, unitID primitive.ObjectID, role models.Role,
	outgoingUserID primitive.ObjectID, outgoingEnd time.Time, incoming models.OfficeBearer, archive models.TermRecord) error {

	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":    unitID,
			"status": status.Active,
			"office_bearers": bson.M{"$elemMatch": bson.M{
				"role":     role,
				"user_id":  outgoingUserID,
				"end_date": outgoingEnd,
			}},
		},
		bson.M{
			"$set": bson.M{
				"office_bearers.$[slot].user_id":      incoming.UserID,
				"office_bearers.$[slot].full_name":    incoming.FullName,
				"office_bearers.$[slot].email":        incoming.Email,
				"office_bearers.$[slot].phone":        incoming.Phone,
				"office_bearers.$[slot].document_url": incoming.DocumentURL,
				"office_bearers.$[slot].start_date":   incoming.StartDate,
				"office_bearers.$[slot].end_date":     incoming.EndDate,
				"office_bearers.$[slot].status":       status.Active,
				"updated_at":                          time.Now().UTC(),
			},
			"$push":     bson.M{"office_bearers.$[slot].history": archive},
			"$addToSet": bson.M{"current_term.rotated_roles": role},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{
				"slot.role":    role,
				"slot.user_id": outgoingUserID,
			}},
		}),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return faults.Conflictf("office bearer for role %s changed concurrently", role)
	}
	return nil
}

// ArchiveTermCycle moves the completed trio into previous_terms and
// resets the term window. The expected number guards against a
// concurrent archive of the same cycle.
func (s *Store) ArchiveTermCycle(ctx context.Context, unitID primitive.ObjectID, expectedNumber int, archived models.ArchivedTerm) error {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": unitID, "current_term.number": expectedNumber},
		bson.M{
			"$push": bson.M{"previous_terms": archived},
			"$set": bson.M{
				"current_term": models.TermWindow{Number: expectedNumber + 1, StartDate: now},
				"updated_at":   now,
			},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return faults.Conflictf("term cycle %d of unit %s already archived", expectedNumber, unitID.Hex())
	}
	return nil
}

// MarkLapsedBearers completes every active bearer slot whose end date
// has passed. Run by the term sweep; returns the number of units
// touched.
func (s *Store) MarkLapsedBearers(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"status": status.Active,
			"office_bearers": bson.M{"$elemMatch": bson.M{
				"status":   status.Active,
				"end_date": bson.M{"$lte": now},
			}},
		},
		bson.M{"$set": bson.M{
			"office_bearers.$[slot].status": status.Completed,
			"updated_at":                    now,
		}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{
				"slot.status":   status.Active,
				"slot.end_date": bson.M{"$lte": now},
			}},
		}),
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Deactivate retires a unit. Units are never hard-deleted.
func (s *Store) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": status.Active},
		bson.M{"$set": bson.M{"status": status.Inactive, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return faults.Conflictf("unit %s is already inactive", id.Hex())
	}
	return nil
}

// Find returns units matching the given filter with optional find
// options. Callers build the filter.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Unit, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var units []models.Unit
	if err := cur.All(ctx, &units); err != nil {
		return nil, err
	}
	return units, nil
}

// Count returns the number of units matching the filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
