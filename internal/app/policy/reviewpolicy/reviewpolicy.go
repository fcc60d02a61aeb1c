// Package reviewpolicy decides whether a caller's role and unit grant
// authority over an application or another unit.
//
// Authorization rules, checked in order:
//   - Superadmins can act on anything.
//   - Admins holding the review grant can act on any application.
//   - Country-level officers act on country-level and superadmin-routed
//     applications.
//   - Same level requires an exact jurisdiction match.
//   - Higher levels act transitively on the levels beneath them, again
//     only inside their own jurisdiction.
//
// Authority never flows downward or sideways: a city officer can act on
// nothing outside their own city.
package reviewpolicy

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sanghsetu/sanghsetu/internal/app/system/hierarchy"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// System roles, distinct from office-bearer roles.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleOfficer    = "officer" // an office bearer acting for their unit
)

// Reviewer is the caller identity a policy decision needs: role, the
// unit they act for, and its level and location. Admin callers carry
// permission grants instead of a unit.
type Reviewer struct {
	Role         string
	UserID       primitive.ObjectID
	Level        models.Level
	UnitID       primitive.ObjectID
	UnitLocation models.Location

	// CanReviewApplications is the admin grant for review actions.
	CanReviewApplications bool
}

// HasReviewAuthority reports whether the reviewer may decide the
// application.
func (r Reviewer) HasReviewAuthority(app models.Application) bool {
	switch r.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return r.CanReviewApplications
	}

	if r.Level == models.LevelCountry &&
		(app.Level == models.LevelCountry || app.Level == models.LevelSuperadmin) {
		return true
	}
	if app.Level == r.Level {
		return hierarchy.Matches(r.UnitLocation, app.Location, r.Level)
	}
	if hierarchy.CanActOn(r.Level, app.Level) {
		return hierarchy.Matches(r.UnitLocation, app.Location, r.Level)
	}
	return false
}

// CanActOnUnit is the same predicate for generic unit-management
// actions, with the target unit standing in for the application.
func (r Reviewer) CanActOnUnit(target models.Unit) bool {
	switch r.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return r.CanReviewApplications
	}

	if target.Level == r.Level {
		return r.UnitID == target.ID ||
			hierarchy.Matches(r.UnitLocation, target.Location, r.Level)
	}
	if hierarchy.CanActOn(r.Level, target.Level) {
		return hierarchy.Matches(r.UnitLocation, target.Location, r.Level)
	}
	return false
}
