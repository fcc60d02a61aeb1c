// Package terms manages term-limited office-bearer assignments:
// expiry warnings, succession, rotation archiving, and the lapsed-term
// sweep. Every term runs exactly two years.
package terms

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/status"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// TermYears is the exact tenure of every office-bearer term:
// endDate = startDate + 2 calendar years, no approximation.
const TermYears = 2

// WarningWindow is how far ahead of a term's end date CheckTermStatus
// starts reporting it.
const WarningWindow = 30 * 24 * time.Hour

// ValidateTenure enforces the exact two-year term rule. Violations are
// reported, never silently corrected.
func ValidateTenure(start, end time.Time) error {
	if !end.Equal(start.AddDate(TermYears, 0, 0)) {
		return faults.Validationf("office-bearer tenure must be exactly %d years", TermYears)
	}
	return nil
}

type Service struct {
	units    *unitstore.Store
	identity collab.IdentityDirectory
	log      *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(units *unitstore.Store, identity collab.IdentityDirectory, log *zap.Logger) *Service {
	return &Service{units: units, identity: identity, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// TermStatus reports which roles are inside the warning window.
type TermStatus struct {
	HasEndingTerms bool
	EndingRoles    []models.Role
	DaysRemaining  int // days until the soonest ending term, 0 if lapsed
}

// CheckTermStatus compares each active term's end date to now against
// the fixed warning window. Read-only: marking lapsed terms is the
// sweep's job.
func (s *Service) CheckTermStatus(ctx context.Context, unitID primitive.ObjectID) (TermStatus, error) {
	unit, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return TermStatus{}, err
	}
	now := s.now()
	st := TermStatus{DaysRemaining: -1}
	for _, b := range unit.OfficeBearers {
		if b.Status != status.Active {
			continue
		}
		remaining := b.EndDate.Sub(now)
		if remaining > WarningWindow {
			continue
		}
		st.HasEndingTerms = true
		st.EndingRoles = append(st.EndingRoles, b.Role)
		days := int(remaining / (24 * time.Hour))
		if days < 0 {
			days = 0
		}
		if st.DaysRemaining < 0 || days < st.DaysRemaining {
			st.DaysRemaining = days
		}
	}
	if st.DaysRemaining < 0 {
		st.DaysRemaining = 0
	}
	return st, nil
}

// ReplaceOfficeBearer hands a role to a new holder once the current term
// has ended. The swap is a compare-and-swap on the outgoing user and end
// date; the outgoing term moves into the slot history, and when this
// replacement completes a full rotation of all three roles the trio is
// archived into the unit's previous terms.
func (s *Service) ReplaceOfficeBearer(ctx context.Context, unitID primitive.ObjectID, role models.Role, newUserID primitive.ObjectID, reason string) (models.Unit, error) {
	unit, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return models.Unit{}, err
	}
	if unit.Status != status.Active {
		return models.Unit{}, faults.Conflictf("unit %s is not active", unitID.Hex())
	}
	outgoing := unit.ActiveBearer(role)
	if outgoing == nil {
		return models.Unit{}, faults.NotFoundf("unit has no %s office bearer", role)
	}

	now := s.now()
	if outgoing.Status == status.Active && outgoing.EndDate.After(now) {
		return models.Unit{}, faults.Conflictf("%s term has not ended; cannot replace mid-term", role)
	}

	rec, err := s.identity.FindVerifiedUser(ctx, newUserID)
	if err != nil {
		return models.Unit{}, err
	}
	if rec == nil {
		return models.Unit{}, faults.Validationf("user %s does not hold verified identity", newUserID.Hex())
	}

	if err := s.checkUniqueAtLevel(ctx, newUserID, unit.Level, unitID, role); err != nil {
		return models.Unit{}, err
	}

	start, end := now, now.AddDate(TermYears, 0, 0)
	if err := ValidateTenure(start, end); err != nil {
		return models.Unit{}, err
	}

	incoming := models.OfficeBearer{
		Role:      role,
		UserID:    newUserID,
		FullName:  rec.FullName,
		Email:     rec.Email,
		StartDate: start,
		EndDate:   end,
		Status:    status.Active,
	}
	archive := models.TermRecord{
		Role:      role,
		UserID:    outgoing.UserID,
		FullName:  outgoing.FullName,
		StartDate: outgoing.StartDate,
		EndDate:   outgoing.EndDate,
		Reason:    reason,
		EndedAt:   now,
	}

	if err := s.units.ReplaceBearerCAS(ctx, unitID, role, outgoing.UserID, outgoing.EndDate, incoming, archive); err != nil {
		return models.Unit{}, err
	}

	updated, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return models.Unit{}, err
	}

	if rotationComplete(updated) {
		if err := s.archiveRotation(ctx, updated); err != nil {
			return models.Unit{}, err
		}
		updated, err = s.units.GetByID(ctx, unitID)
		if err != nil {
			return models.Unit{}, err
		}
	}

	s.log.Info("office bearer replaced",
		zap.String("unit_id", unitID.Hex()),
		zap.String("role", string(role)),
		zap.String("new_user_id", newUserID.Hex()),
		zap.String("reason", reason))

	return updated, nil
}

// checkUniqueAtLevel rejects a candidate who already holds an active
// position at this level anywhere else. The slot being replaced is
// exempt so a lapsed bearer can be renewed.
func (s *Service) checkUniqueAtLevel(ctx context.Context, userID primitive.ObjectID, level models.Level, unitID primitive.ObjectID, role models.Role) error {
	holders, err := s.units.ActiveBearerHolders(ctx, userID, level)
	if err != nil {
		return err
	}
	for _, h := range holders {
		if h.ID != unitID {
			return faults.Conflictf("user %s already holds an active %s level office-bearer position", userID.Hex(), level)
		}
		for _, b := range h.OfficeBearers {
			if b.UserID == userID && b.Status == status.Active && b.Role != role {
				return faults.Conflictf("user %s already holds the %s position in this unit", userID.Hex(), b.Role)
			}
		}
	}
	return nil
}

func rotationComplete(u models.Unit) bool {
	rotated := make(map[models.Role]bool, len(u.CurrentTerm.RotatedRoles))
	for _, r := range u.CurrentTerm.RotatedRoles {
		rotated[r] = true
	}
	for _, r := range models.Roles {
		if !rotated[r] {
			return false
		}
	}
	return true
}

// archiveRotation moves the just-completed trio into previous_terms.
// The trio is each slot's most recent history record: those are exactly
// the terms ended during this window.
func (s *Service) archiveRotation(ctx context.Context, u models.Unit) error {
	trio := make([]models.TermRecord, 0, len(models.Roles))
	for _, b := range u.OfficeBearers {
		if len(b.History) == 0 {
			return faults.Invariantf("rotation marked complete but role %s has no archived term", b.Role)
		}
		trio = append(trio, b.History[len(b.History)-1])
	}
	archived := models.ArchivedTerm{
		Number:     u.CurrentTerm.Number,
		StartDate:  u.CurrentTerm.StartDate,
		ArchivedAt: s.now(),
		Bearers:    trio,
	}
	if err := s.units.ArchiveTermCycle(ctx, u.ID, u.CurrentTerm.Number, archived); err != nil {
		// A concurrent replacement archived the same cycle first; the
		// trio is already recorded.
		if faults.IsKind(err, faults.Conflict) {
			return nil
		}
		return err
	}
	s.log.Info("term cycle archived",
		zap.String("unit_id", u.ID.Hex()),
		zap.Int("term_number", u.CurrentTerm.Number))
	return nil
}

// ExpireLapsedTerms marks every active term whose end date has passed as
// completed. Invoked on a schedule by the term sweep worker.
func (s *Service) ExpireLapsedTerms(ctx context.Context) (int64, error) {
	n, err := s.units.MarkLapsedBearers(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("lapsed office-bearer terms marked completed", zap.Int64("units", n))
	}
	return n, nil
}
