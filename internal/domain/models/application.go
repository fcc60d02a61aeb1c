// internal/domain/models/application.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Application statuses. pending is the only non-terminal state.
const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Review-history actions.
const (
	ReviewActionSubmitted = "submitted"
	ReviewActionApproved  = "approved"
	ReviewActionRejected  = "rejected"
	ReviewActionComment   = "comment"
)

// ReviewEntry is one append-only line in an application's history.
type ReviewEntry struct {
	Action  string              `bson:"action" json:"action"`
	ByID    primitive.ObjectID  `bson:"by_id" json:"by_id"`
	Role    string              `bson:"role,omitempty" json:"role,omitempty"`
	Level   Level               `bson:"level,omitempty" json:"level,omitempty"`
	UnitID  *primitive.ObjectID `bson:"unit_id,omitempty" json:"unit_id,omitempty"`
	Remarks string              `bson:"remarks,omitempty" json:"remarks,omitempty"`
	At      time.Time           `bson:"at" json:"at"`
}

// Application is an identity-verification request, stored in
// "applications". The location is a snapshot taken at submission;
// routing resolves Level and ReviewingUnitID once, at submit time.
// A nil ReviewingUnitID means the superadmin sentinel.
type Application struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	ApplicantID primitive.ObjectID `bson:"applicant_id" json:"applicant_id"`

	Location   Location `bson:"location" json:"location"`
	LocationCI Location `bson:"location_ci" json:"-"`

	Level           Level               `bson:"application_level" json:"level"`
	ReviewingUnitID *primitive.ObjectID `bson:"reviewing_unit_id,omitempty" json:"reviewing_unit_id,omitempty"`

	DocumentURLs []string `bson:"document_urls" json:"document_urls"`

	Status         string        `bson:"status" json:"status"`
	ReviewHistory  []ReviewEntry `bson:"review_history" json:"review_history"`
	VerifiedNumber string        `bson:"verified_number,omitempty" json:"verified_number,omitempty"` // set only on approval

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Terminal reports whether the application has left pending.
func (a *Application) Terminal() bool {
	return a.Status != ApplicationPending
}
