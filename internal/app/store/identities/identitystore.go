// Package identities is the Mongo-backed profile directory. It
// implements collab.IdentityDirectory for the services that look up
// applicants, bearer candidates, and members.
package identities

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
)

// User is the stored profile document.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	FullName       string             `bson:"full_name"`
	FullNameCI     string             `bson:"full_name_ci"`
	Email          string             `bson:"email"`
	EmailCI        string             `bson:"email_ci"`
	Phone          string             `bson:"phone,omitempty"`
	Verified       bool               `bson:"verified"`
	VerifiedNumber string             `bson:"verified_number,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

type Store struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{coll: db.Collection("identities")}
}

func (s *Store) Insert(ctx context.Context, u User) (User, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.FullNameCI = text.Fold(u.FullName)
	u.EmailCI = text.Fold(u.Email)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return User{}, faults.Conflictf("a user with email %q already exists", u.Email)
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (User, error) {
	var u User
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, faults.NotFoundf("user %s not found", id.Hex())
	}
	return u, err
}

// FindUser looks up any user, verified or not. A missing user is a nil
// record, not an error, per the directory contract.
func (s *Store) FindUser(ctx context.Context, id primitive.ObjectID) (*collab.UserRecord, error) {
	u, err := s.GetByID(ctx, id)
	if faults.IsKind(err, faults.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record(u), nil
}

// FindVerifiedUser returns nil when the user is absent or unverified.
func (s *Store) FindVerifiedUser(ctx context.Context, id primitive.ObjectID) (*collab.UserRecord, error) {
	rec, err := s.FindUser(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	if !rec.Verified {
		return nil, nil
	}
	return rec, nil
}

// MarkVerified stamps the verification number issued by an approved
// application onto the profile.
func (s *Store) MarkVerified(ctx context.Context, id primitive.ObjectID, number string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"verified":        true,
		"verified_number": number,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return faults.NotFoundf("user %s not found", id.Hex())
	}
	return nil
}

func (s *Store) MarkRejected(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"verified":   false,
		"updated_at": time.Now().UTC(),
	}, "$unset": bson.M{"verified_number": ""}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return faults.NotFoundf("user %s not found", id.Hex())
	}
	return nil
}

func record(u User) *collab.UserRecord {
	return &collab.UserRecord{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Verified: u.Verified,
	}
}
