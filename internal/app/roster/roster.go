// Package roster manages a unit's member list: single and bulk adds,
// removal under the city minimum-size invariant, and detail patches.
package roster

import (
	"context"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/status"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// MaxBatchSize caps a bulk add. Larger batches are rejected outright.
const MaxBatchSize = 50

type Service struct {
	units    *unitstore.Store
	identity collab.IdentityDirectory
	docs     collab.DocumentStore
	log      *zap.Logger

	sanitize *bluemonday.Policy
}

func New(units *unitstore.Store, identity collab.IdentityDirectory, docs collab.DocumentStore, log *zap.Logger) *Service {
	return &Service{
		units:    units,
		identity: identity,
		docs:     docs,
		log:      log,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// Candidate is a user proposed for membership.
type Candidate struct {
	UserID      primitive.ObjectID
	Phone       string
	DocumentURL string
}

// AddResult reports the outcome for one candidate of a bulk add.
type AddResult struct {
	UserID primitive.ObjectID
	Err    error // nil on success
}

// AddMember validates and appends one member: verified identity, not
// already on the roster, not an active office bearer of the unit. The
// roster checks ride on the store's conditional update.
func (s *Service) AddMember(ctx context.Context, unitID primitive.ObjectID, c Candidate) error {
	rec, err := s.identity.FindVerifiedUser(ctx, c.UserID)
	if err != nil {
		return err
	}
	if rec == nil {
		return faults.Validationf("member candidate %s does not hold verified identity", c.UserID.Hex())
	}
	m := models.Member{
		UserID:      c.UserID,
		FullName:    rec.FullName,
		Email:       rec.Email,
		Phone:       c.Phone,
		DocumentURL: c.DocumentURL,
		JoinedAt:    time.Now().UTC(),
		Status:      status.Active,
	}
	if err := s.units.AddMember(ctx, unitID, m); err != nil {
		return err
	}
	s.log.Info("member added",
		zap.String("unit_id", unitID.Hex()),
		zap.String("user_id", c.UserID.Hex()))
	return nil
}

// AddMembers is the bulk variant. Every candidate is validated
// independently; the batch never fails as a whole and the returned slice
// has one entry per candidate in input order.
func (s *Service) AddMembers(ctx context.Context, unitID primitive.ObjectID, cands []Candidate) ([]AddResult, error) {
	if len(cands) == 0 {
		return nil, faults.Validationf("no member candidates given")
	}
	if len(cands) > MaxBatchSize {
		return nil, faults.Validationf("at most %d members can be added per batch", MaxBatchSize)
	}
	results := make([]AddResult, 0, len(cands))
	for _, c := range cands {
		results = append(results, AddResult{UserID: c.UserID, Err: s.AddMember(ctx, unitID, c)})
	}
	return results, nil
}

// RemoveMember pulls a member off the roster. City units below four
// members reject the removal with an Invariant error.
func (s *Service) RemoveMember(ctx context.Context, unitID, userID primitive.ObjectID) error {
	unit, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	var removed *models.Member
	for i := range unit.Members {
		if unit.Members[i].UserID == userID {
			removed = &unit.Members[i]
			break
		}
	}
	if err := s.units.RemoveMember(ctx, unitID, userID); err != nil {
		return err
	}
	if removed != nil && removed.DocumentURL != "" {
		s.discard(ctx, removed.DocumentURL, unitID)
	}
	s.log.Info("member removed",
		zap.String("unit_id", unitID.Hex()),
		zap.String("user_id", userID.Hex()))
	return nil
}

// MemberPatch is a free-form detail update. Nil fields are left alone.
type MemberPatch struct {
	FullName    *string
	Email       *string
	Phone       *string
	DocumentURL *string
}

// UpdateMemberDetails patches a roster entry. Free-form text is
// sanitized before it reaches the document. When the identity document
// is replaced, the prior object is discarded best-effort; a failing
// discard is logged and never fails the patch.
func (s *Service) UpdateMemberDetails(ctx context.Context, unitID, userID primitive.ObjectID, patch MemberPatch) error {
	unit, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	var current *models.Member
	for i := range unit.Members {
		if unit.Members[i].UserID == userID {
			current = &unit.Members[i]
			break
		}
	}
	if current == nil {
		return faults.NotFoundf("user %s is not a member of this unit", userID.Hex())
	}

	set := bson.M{}
	if patch.FullName != nil {
		set["full_name"] = s.sanitize.Sanitize(*patch.FullName)
	}
	if patch.Email != nil {
		set["email"] = s.sanitize.Sanitize(*patch.Email)
	}
	if patch.Phone != nil {
		set["phone"] = s.sanitize.Sanitize(*patch.Phone)
	}
	var replacedDoc string
	if patch.DocumentURL != nil {
		set["document_url"] = *patch.DocumentURL
		if current.DocumentURL != "" && current.DocumentURL != *patch.DocumentURL {
			replacedDoc = current.DocumentURL
		}
	}
	if len(set) == 0 {
		return faults.Validationf("no member fields to update")
	}

	if err := s.units.UpdateMemberFields(ctx, unitID, userID, set); err != nil {
		return err
	}
	if replacedDoc != "" {
		s.discard(ctx, replacedDoc, unitID)
	}
	return nil
}

func (s *Service) discard(ctx context.Context, url string, unitID primitive.ObjectID) {
	if s.docs == nil {
		return
	}
	if err := s.docs.Discard(ctx, url); err != nil {
		s.log.Warn("orphaned document discard failed",
			zap.String("unit_id", unitID.Hex()),
			zap.String("url", url),
			zap.Error(err))
	}
}
