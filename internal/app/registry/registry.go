// Package registry creates and reads organizational units and owns the
// structural invariants of the tree: complete locations, unique active
// city/area tuples, parent/child level adjacency, constituent backing
// for the aggregate levels, and globally unique active office bearers
// per level.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/hierarchy"
	"github.com/sanghsetu/sanghsetu/internal/app/system/status"
	"github.com/sanghsetu/sanghsetu/internal/app/terms"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// MinConstituents is the minimum number of child units backing a
// district, state, or country unit.
const MinConstituents = 2

type Service struct {
	units    *unitstore.Store
	identity collab.IdentityDirectory
	log      *zap.Logger
}

func New(units *unitstore.Store, identity collab.IdentityDirectory, log *zap.Logger) *Service {
	return &Service{units: units, identity: identity, log: log}
}

// BearerCandidate nominates a user for one of the three roles.
type BearerCandidate struct {
	Role        models.Role
	UserID      primitive.ObjectID
	Phone       string
	DocumentURL string
}

// MemberCandidate nominates a user for the roster.
type MemberCandidate struct {
	UserID      primitive.ObjectID
	Phone       string
	DocumentURL string
}

// CreateUnitInput carries everything createUnit validates.
type CreateUnitInput struct {
	Name           string
	Level          models.Level
	Location       models.Location
	ParentID       *primitive.ObjectID
	Bearers        []BearerCandidate
	Members        []MemberCandidate
	ConstituentIDs []primitive.ObjectID
}

// CreateUnitResult returns the persisted unit plus the plaintext access
// code. The code is never recoverable afterwards; only its bcrypt hash
// is stored.
type CreateUnitResult struct {
	Unit       models.Unit
	AccessCode string
}

// Hierarchy is the one-hop neighborhood of a unit.
type Hierarchy struct {
	Current  models.Unit
	Parent   *models.Unit
	Children []models.Unit
	Siblings []models.Unit
}

// CreateUnit validates in spec order and persists the unit with three
// fresh two-year bearer terms. For district and above it also links the
// constituent child units to the new parent.
func (s *Service) CreateUnit(ctx context.Context, in CreateUnitInput) (CreateUnitResult, error) {
	if !hierarchy.Valid(in.Level) {
		return CreateUnitResult{}, faults.Validationf("unknown hierarchy level %q", in.Level)
	}
	if strings.TrimSpace(in.Name) == "" {
		return CreateUnitResult{}, faults.Validationf("unit name is required")
	}

	if err := s.validateLocation(in.Location, in.Level); err != nil {
		return CreateUnitResult{}, err
	}
	if err := s.validateLocationUnique(ctx, in.Location, in.Level); err != nil {
		return CreateUnitResult{}, err
	}
	if err := s.validateParent(ctx, in); err != nil {
		return CreateUnitResult{}, err
	}
	constituentLevel, err := s.validateConstituents(ctx, in)
	if err != nil {
		return CreateUnitResult{}, err
	}
	bearers, err := s.validateBearers(ctx, in.Bearers, in.Level)
	if err != nil {
		return CreateUnitResult{}, err
	}
	members, err := s.validateMembers(ctx, in)
	if err != nil {
		return CreateUnitResult{}, err
	}

	code := newAccessCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return CreateUnitResult{}, err
	}

	now := time.Now().UTC()
	unit := models.Unit{
		Name:           in.Name,
		Level:          in.Level,
		Location:       in.Location,
		ParentID:       in.ParentID,
		OfficeBearers:  bearers,
		CurrentTerm:    models.TermWindow{Number: 1, StartDate: now},
		Members:        members,
		AccessCodeHash: string(hash),
	}

	created, err := s.units.Insert(ctx, unit)
	if err != nil {
		return CreateUnitResult{}, err
	}

	if len(in.ConstituentIDs) > 0 {
		claimed, err := s.units.ClaimConstituents(ctx, created.ID, constituentLevel, in.ConstituentIDs)
		if err == nil && claimed != int64(len(in.ConstituentIDs)) {
			err = faults.Conflictf("constituent units were claimed by another parent")
		}
		if err != nil {
			// Undo what we can; the half-created unit is retired, never
			// left active.
			if relErr := s.units.ReleaseConstituents(ctx, created.ID, in.ConstituentIDs); relErr != nil {
				s.log.Warn("constituent release failed", zap.String("unit_id", created.ID.Hex()), zap.Error(relErr))
			}
			if deErr := s.units.Deactivate(ctx, created.ID); deErr != nil {
				s.log.Warn("rollback deactivate failed", zap.String("unit_id", created.ID.Hex()), zap.Error(deErr))
			}
			return CreateUnitResult{}, err
		}
	}

	s.log.Info("unit created",
		zap.String("unit_id", created.ID.Hex()),
		zap.String("level", string(created.Level)),
		zap.String("name", created.Name))

	return CreateUnitResult{Unit: created, AccessCode: code}, nil
}

func (s *Service) validateLocation(loc models.Location, level models.Level) error {
	if missing := hierarchy.MissingKeys(loc, level); len(missing) > 0 {
		return faults.Validationf("location is incomplete for level %s: missing %s", level, strings.Join(missing, ", "))
	}
	// Fields below the unit's own level are contradictory, not extra
	// precision: a state unit naming a city has no single jurisdiction.
	all := hierarchy.MissingKeys(loc, models.LevelArea)
	required := hierarchy.RequiredKeys(level)
	populated := len(hierarchy.RequiredKeys(models.LevelArea)) - len(all)
	if populated > len(required) {
		return faults.Validationf("location has fields below level %s", level)
	}
	return nil
}

func (s *Service) validateLocationUnique(ctx context.Context, loc models.Location, level models.Level) error {
	if level != models.LevelCity && level != models.LevelArea {
		return nil
	}
	existing, err := s.units.FindActiveByLevelAndLocation(ctx, level, loc)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return faults.Conflictf("an active %s level unit already exists for this location", level)
	}
	return nil
}

func (s *Service) validateParent(ctx context.Context, in CreateUnitInput) error {
	if in.Level == models.LevelCountry {
		if in.ParentID != nil {
			return faults.Validationf("country level units cannot have a parent")
		}
		return nil
	}
	if in.ParentID == nil {
		return faults.Validationf("%s level units require a parent unit", in.Level)
	}
	parent, err := s.units.GetByID(ctx, *in.ParentID)
	if err != nil {
		return err
	}
	if parent.Status != status.Active {
		return faults.Conflictf("parent unit %s is not active", parent.ID.Hex())
	}
	want, _ := hierarchy.Parent(in.Level)
	if parent.Level != want {
		return faults.Validationf("parent of a %s unit must be %s level, got %s", in.Level, want, parent.Level)
	}
	return nil
}

// validateConstituents checks rule (d): district and above must be
// backed by at least two unclaimed active units one level below, all
// inside the new unit's region. Returns the constituent level.
func (s *Service) validateConstituents(ctx context.Context, in CreateUnitInput) (models.Level, error) {
	childLevel, ok := hierarchy.Child(in.Level)
	aggregate := in.Level == models.LevelCountry || in.Level == models.LevelState || in.Level == models.LevelDistrict
	if !aggregate {
		if len(in.ConstituentIDs) > 0 {
			return "", faults.Validationf("%s level units do not take constituent units", in.Level)
		}
		return "", nil
	}
	if !ok {
		return "", faults.Validationf("level %s has no constituent level", in.Level)
	}
	if len(in.ConstituentIDs) < MinConstituents {
		return "", faults.Validationf("%s level unit requires at least %d %s level constituent units", in.Level, MinConstituents, childLevel)
	}
	seen := make(map[primitive.ObjectID]bool, len(in.ConstituentIDs))
	for _, id := range in.ConstituentIDs {
		if seen[id] {
			return "", faults.Validationf("constituent unit %s listed twice", id.Hex())
		}
		seen[id] = true
	}
	units, err := s.units.GetByIDs(ctx, in.ConstituentIDs)
	if err != nil {
		return "", err
	}
	if len(units) != len(in.ConstituentIDs) {
		return "", faults.NotFoundf("one or more constituent units do not exist")
	}
	for _, u := range units {
		if u.Level != childLevel {
			return "", faults.Validationf("constituent unit %s is %s level, expected %s", u.ID.Hex(), u.Level, childLevel)
		}
		if u.Status != status.Active {
			return "", faults.Conflictf("constituent unit %s is not active", u.ID.Hex())
		}
		if u.ParentID != nil {
			return "", faults.Conflictf("constituent unit %s is already claimed by another parent", u.ID.Hex())
		}
		if !hierarchy.Matches(u.Location, in.Location, in.Level) {
			return "", faults.Validationf("constituent unit %s is outside the new unit's %s region", u.ID.Hex(), in.Level)
		}
	}
	return childLevel, nil
}

// validateBearers checks rule (e): one candidate per role, verified
// identity, and no other active position at the same level anywhere.
func (s *Service) validateBearers(ctx context.Context, cands []BearerCandidate, level models.Level) ([]models.OfficeBearer, error) {
	byRole := make(map[models.Role]BearerCandidate, len(cands))
	seen := make(map[primitive.ObjectID]bool, len(cands))
	for _, c := range cands {
		if _, dup := byRole[c.Role]; dup {
			return nil, faults.Validationf("role %s nominated twice", c.Role)
		}
		if seen[c.UserID] {
			return nil, faults.Validationf("user %s nominated for more than one role", c.UserID.Hex())
		}
		byRole[c.Role] = c
		seen[c.UserID] = true
	}
	for _, role := range models.Roles {
		if _, ok := byRole[role]; !ok {
			return nil, faults.Validationf("missing office-bearer candidate for role %s", role)
		}
	}

	now := time.Now().UTC()
	start, end := now, now.AddDate(terms.TermYears, 0, 0)
	if err := terms.ValidateTenure(start, end); err != nil {
		return nil, err
	}

	bearers := make([]models.OfficeBearer, 0, len(models.Roles))
	for _, role := range models.Roles {
		c := byRole[role]
		rec, err := s.identity.FindVerifiedUser(ctx, c.UserID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, faults.Validationf("bearer candidate %s for role %s does not hold verified identity", c.UserID.Hex(), role)
		}
		holders, err := s.units.ActiveBearerHolders(ctx, c.UserID, level)
		if err != nil {
			return nil, err
		}
		if len(holders) > 0 {
			return nil, faults.Conflictf("user %s already holds an active %s level office-bearer position", c.UserID.Hex(), level)
		}
		bearers = append(bearers, models.OfficeBearer{
			Role:        role,
			UserID:      c.UserID,
			FullName:    rec.FullName,
			Email:       rec.Email,
			Phone:       c.Phone,
			DocumentURL: c.DocumentURL,
			StartDate:   start,
			EndDate:     end,
			Status:      status.Active,
		})
	}
	return bearers, nil
}

// validateMembers checks rule (f): city units start with at least three
// distinct verified members, disjoint from the bearer set.
func (s *Service) validateMembers(ctx context.Context, in CreateUnitInput) ([]models.Member, error) {
	if in.Level == models.LevelCity && len(in.Members) < unitstore.MinCityMembers {
		return nil, faults.Validationf("city level unit must have at least %d members", unitstore.MinCityMembers)
	}
	if len(in.Members) == 0 {
		return nil, nil
	}

	bearerIDs := make(map[primitive.ObjectID]bool, len(in.Bearers))
	for _, b := range in.Bearers {
		bearerIDs[b.UserID] = true
	}

	now := time.Now().UTC()
	seen := make(map[primitive.ObjectID]bool, len(in.Members))
	members := make([]models.Member, 0, len(in.Members))
	for _, c := range in.Members {
		if seen[c.UserID] {
			return nil, faults.Validationf("member %s listed twice", c.UserID.Hex())
		}
		seen[c.UserID] = true
		if bearerIDs[c.UserID] {
			return nil, faults.Validationf("member %s is also an office-bearer candidate", c.UserID.Hex())
		}
		rec, err := s.identity.FindVerifiedUser(ctx, c.UserID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, faults.Validationf("member candidate %s does not hold verified identity", c.UserID.Hex())
		}
		members = append(members, models.Member{
			UserID:      c.UserID,
			FullName:    rec.FullName,
			Email:       rec.Email,
			Phone:       c.Phone,
			DocumentURL: c.DocumentURL,
			JoinedAt:    now,
			Status:      status.Active,
		})
	}
	return members, nil
}

// GetUnit returns a single unit by ID.
func (s *Service) GetUnit(ctx context.Context, id primitive.ObjectID) (models.Unit, error) {
	return s.units.GetByID(ctx, id)
}

// GetHierarchy assembles the one-hop neighborhood: parent, children, and
// siblings, each a single lookup, no recursion.
func (s *Service) GetHierarchy(ctx context.Context, id primitive.ObjectID) (Hierarchy, error) {
	current, err := s.units.GetByID(ctx, id)
	if err != nil {
		return Hierarchy{}, err
	}
	h := Hierarchy{Current: current}

	children, err := s.units.Children(ctx, id)
	if err != nil {
		return Hierarchy{}, err
	}
	h.Children = children

	if current.ParentID != nil {
		parent, err := s.units.GetByID(ctx, *current.ParentID)
		if err == nil {
			h.Parent = &parent
		} else if !faults.IsKind(err, faults.NotFound) {
			return Hierarchy{}, err
		}
		peers, err := s.units.Children(ctx, *current.ParentID)
		if err != nil {
			return Hierarchy{}, err
		}
		for _, p := range peers {
			if p.ID != id {
				h.Siblings = append(h.Siblings, p)
			}
		}
		return h, nil
	}

	// Country units: siblings are the other country units.
	peers, err := s.units.Find(ctx, bson.M{"level": models.LevelCountry, "_id": bson.M{"$ne": id}})
	if err != nil {
		return Hierarchy{}, err
	}
	h.Siblings = peers
	return h, nil
}

// UnitsByLevelAndLocation is the exposed jurisdiction query.
func (s *Service) UnitsByLevelAndLocation(ctx context.Context, level models.Level, loc models.Location) ([]models.Unit, error) {
	if !hierarchy.Valid(level) {
		return nil, faults.Validationf("unknown hierarchy level %q", level)
	}
	return s.units.FindActiveByLevelAndLocation(ctx, level, loc)
}

// Deactivate retires a unit; units are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	return s.units.Deactivate(ctx, id)
}

// VerifyAccessCode checks a presented access code against the stored
// hash. The only reader of access codes in this core.
func (s *Service) VerifyAccessCode(ctx context.Context, unitID primitive.ObjectID, code string) (bool, error) {
	u, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(u.AccessCodeHash), []byte(code))
	return err == nil, nil
}

func newAccessCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
