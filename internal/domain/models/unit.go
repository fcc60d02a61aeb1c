// internal/domain/models/unit.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Level is a tier in the organizational hierarchy. The order is fixed:
// country > state > district > city > area.
type Level string

const (
	LevelCountry  Level = "country"
	LevelState    Level = "state"
	LevelDistrict Level = "district"
	LevelCity     Level = "city"
	LevelArea     Level = "area"

	// LevelSuperadmin is the fallback review target when no unit matches
	// at any hierarchy level. It is never a Unit level.
	LevelSuperadmin Level = "superadmin"
)

// Role is one of the three fixed office-bearer roles.
type Role string

const (
	RolePresident Role = "president"
	RoleSecretary Role = "secretary"
	RoleTreasurer Role = "treasurer"
)

// Roles lists the office-bearer roles every unit carries.
var Roles = []Role{RolePresident, RoleSecretary, RoleTreasurer}

// Location names the region a unit has jurisdiction over. Only the
// fields down to the unit's own level are required; deeper fields stay
// empty. The CI mirror on the unit holds folded copies for matching.
type Location struct {
	Country  string `bson:"country" json:"country"`
	State    string `bson:"state,omitempty" json:"state,omitempty"`
	District string `bson:"district,omitempty" json:"district,omitempty"`
	City     string `bson:"city,omitempty" json:"city,omitempty"`
	Area     string `bson:"area,omitempty" json:"area,omitempty"`
}

// TermRecord is an archived bearer term, kept per slot (History) and in
// archived trios (PreviousTerms).
type TermRecord struct {
	Role      Role               `bson:"role" json:"role"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	FullName  string             `bson:"full_name,omitempty" json:"full_name,omitempty"`
	StartDate time.Time          `bson:"start_date" json:"start_date"`
	EndDate   time.Time          `bson:"end_date" json:"end_date"`
	Reason    string             `bson:"reason,omitempty" json:"reason,omitempty"`
	EndedAt   time.Time          `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
}

// OfficeBearer is the active holder of one role slot, embedded on the
// unit. Every term runs exactly two years; lapsed terms are marked
// completed by the sweep, replaced terms move into History.
type OfficeBearer struct {
	Role        Role               `bson:"role" json:"role"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	FullName    string             `bson:"full_name,omitempty" json:"full_name,omitempty"`
	Email       string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty"`
	DocumentURL string             `bson:"document_url,omitempty" json:"document_url,omitempty"`
	StartDate   time.Time          `bson:"start_date" json:"start_date"`
	EndDate     time.Time          `bson:"end_date" json:"end_date"`
	Status      string             `bson:"status" json:"status"` // "active" | "completed" | "terminated"
	History     []TermRecord       `bson:"history,omitempty" json:"history,omitempty"`
}

// TermWindow tracks the unit-wide term cycle. RotatedRoles records which
// roles have been replaced since StartDate; once all three have rotated
// the trio is archived into PreviousTerms and the window resets.
type TermWindow struct {
	Number       int       `bson:"number" json:"number"`
	StartDate    time.Time `bson:"start_date" json:"start_date"`
	RotatedRoles []Role    `bson:"rotated_roles,omitempty" json:"rotated_roles,omitempty"`
}

// ArchivedTerm is a completed trio of bearer terms.
type ArchivedTerm struct {
	Number     int          `bson:"number" json:"number"`
	StartDate  time.Time    `bson:"start_date" json:"start_date"`
	ArchivedAt time.Time    `bson:"archived_at" json:"archived_at"`
	Bearers    []TermRecord `bson:"bearers" json:"bearers"`
}

// Member is a roster entry embedded on the unit.
type Member struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	FullName    string             `bson:"full_name" json:"full_name"`
	Email       string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty"`
	DocumentURL string             `bson:"document_url,omitempty" json:"document_url,omitempty"`
	JoinedAt    time.Time          `bson:"joined_at" json:"joined_at"`
	Status      string             `bson:"status" json:"status"`
}

// Unit is a node in the organizational hierarchy, stored in "org_units".
// Bearer and member records are embedded: the unit is the aggregate and
// every mutation is a conditional update against this one document.
type Unit struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`

	Level      Level    `bson:"level" json:"level"`
	Location   Location `bson:"location" json:"location"`
	LocationCI Location `bson:"location_ci" json:"-"` // folded copy, used by all matching queries

	ParentID *primitive.ObjectID `bson:"parent_id,omitempty" json:"parent_id,omitempty"` // absent for country units

	OfficeBearers []OfficeBearer `bson:"office_bearers" json:"office_bearers"`
	CurrentTerm   TermWindow     `bson:"current_term" json:"current_term"`
	PreviousTerms []ArchivedTerm `bson:"previous_terms,omitempty" json:"previous_terms,omitempty"`

	Members []Member `bson:"members,omitempty" json:"members,omitempty"`

	AccessCodeHash string `bson:"access_code_hash" json:"-"`

	Status    string    `bson:"status" json:"status"` // "active" | "inactive"
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ActiveBearer returns the active bearer for the role, or nil.
func (u *Unit) ActiveBearer(role Role) *OfficeBearer {
	for i := range u.OfficeBearers {
		if u.OfficeBearers[i].Role == role {
			return &u.OfficeBearers[i]
		}
	}
	return nil
}

// HasMember reports whether userID is on the roster.
func (u *Unit) HasMember(userID primitive.ObjectID) bool {
	for _, m := range u.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
