// Package review is the application state machine: submit creates a
// pending application routed to its reviewing unit; review moves it to
// approved or rejected exactly once. History is append-only and survives
// the terminal transition.
package review

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
	reviewpolicy "github.com/sanghsetu/sanghsetu/internal/app/policy/reviewpolicy"
	"github.com/sanghsetu/sanghsetu/internal/app/routing"
	applicationstore "github.com/sanghsetu/sanghsetu/internal/app/store/applications"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// numberAttempts bounds the verification-number collision retry loop.
const numberAttempts = 5

type Service struct {
	apps     *applicationstore.Store
	router   *routing.Engine
	identity collab.IdentityDirectory
	notify   collab.NotificationSink
	log      *zap.Logger

	sanitize *bluemonday.Policy
}

func New(apps *applicationstore.Store, router *routing.Engine, identity collab.IdentityDirectory, notify collab.NotificationSink, log *zap.Logger) *Service {
	return &Service{
		apps:     apps,
		router:   router,
		identity: identity,
		notify:   notify,
		log:      log,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// Submit routes and persists a new pending application. The location is
// snapshotted as given; routing decides the level and reviewing unit
// once, here.
func (s *Service) Submit(ctx context.Context, applicantID primitive.ObjectID, loc models.Location, documentURLs []string, levelOverride *models.Level) (models.Application, error) {
	user, err := s.identity.FindUser(ctx, applicantID)
	if err != nil {
		return models.Application{}, err
	}
	if user == nil {
		return models.Application{}, faults.NotFoundf("applicant %s not found", applicantID.Hex())
	}
	if len(documentURLs) == 0 {
		return models.Application{}, faults.Validationf("at least one identity document is required")
	}

	route, err := s.router.RouteApplication(ctx, loc, levelOverride)
	if err != nil {
		return models.Application{}, err
	}

	app := models.Application{
		ApplicantID:     applicantID,
		Location:        loc,
		Level:           route.Level,
		ReviewingUnitID: route.ReviewingUnitID,
		DocumentURLs:    documentURLs,
		ReviewHistory: []models.ReviewEntry{{
			Action: models.ReviewActionSubmitted,
			ByID:   applicantID,
			Level:  route.Level,
			UnitID: route.ReviewingUnitID,
			At:     time.Now().UTC(),
		}},
	}
	created, err := s.apps.Insert(ctx, app)
	if err != nil {
		return models.Application{}, err
	}

	s.log.Info("application submitted",
		zap.String("application_id", created.ID.Hex()),
		zap.String("level", string(created.Level)))

	if s.notify != nil {
		if err := s.notify.ApplicationSubmitted(ctx, created.ID); err != nil {
			s.log.Warn("submission notification failed", zap.Error(err))
		}
	}
	return created, nil
}

// Review decides a pending application. Terminal applications return
// Conflict, callers without authority get Authority, and the commit
// itself is a conditional update, so a racing second review always
// loses. Approval assigns a fresh verification number and marks the
// applicant verified in the external profile store.
func (s *Service) Review(ctx context.Context, applicationID primitive.ObjectID, reviewer reviewpolicy.Reviewer, decision string, remarks string) (models.Application, error) {
	if decision != models.ApplicationApproved && decision != models.ApplicationRejected {
		return models.Application{}, faults.Validationf("decision must be %q or %q", models.ApplicationApproved, models.ApplicationRejected)
	}

	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return models.Application{}, err
	}
	if app.Terminal() {
		return models.Application{}, faults.Conflictf("application already %s", app.Status)
	}
	if !reviewer.HasReviewAuthority(app) {
		return models.Application{}, faults.Authorityf("reviewer has no authority over this %s level application", app.Level)
	}

	entry := models.ReviewEntry{
		Action:  decision,
		ByID:    reviewer.UserID,
		Role:    reviewer.Role,
		Level:   reviewer.Level,
		Remarks: s.sanitize.Sanitize(remarks),
		At:      time.Now().UTC(),
	}
	if reviewer.UnitID != primitive.NilObjectID {
		id := reviewer.UnitID
		entry.UnitID = &id
	}

	var number string
	if decision == models.ApplicationApproved {
		number, err = s.freshVerificationNumber(ctx)
		if err != nil {
			return models.Application{}, err
		}
	}

	updated, err := s.apps.Decide(ctx, applicationID, decision, entry, number)
	if err != nil {
		return models.Application{}, err
	}

	s.log.Info("application reviewed",
		zap.String("application_id", applicationID.Hex()),
		zap.String("decision", decision),
		zap.String("reviewer_id", reviewer.UserID.Hex()))

	// The decision is committed; the profile signal must not undo it.
	// A failure here is surfaced so the caller can re-signal, but the
	// application document stays the source of truth.
	if decision == models.ApplicationApproved {
		err = s.identity.MarkVerified(ctx, updated.ApplicantID, number)
	} else {
		err = s.identity.MarkRejected(ctx, updated.ApplicantID)
	}
	if err != nil {
		s.log.Error("profile update after decision failed",
			zap.String("application_id", applicationID.Hex()),
			zap.Error(err))
		return updated, fmt.Errorf("decision committed but profile update failed: %w", err)
	}

	if s.notify != nil {
		if err := s.notify.ApplicationReviewed(ctx, applicationID, decision); err != nil {
			s.log.Warn("review notification failed", zap.Error(err))
		}
	}
	return updated, nil
}

// Comment appends a remark to the history. Allowed in any status —
// history is the one part of a terminal application that still grows.
func (s *Service) Comment(ctx context.Context, applicationID, byID primitive.ObjectID, remarks string) error {
	text := s.sanitize.Sanitize(remarks)
	if text == "" {
		return faults.Validationf("comment is empty")
	}
	return s.apps.AppendComment(ctx, applicationID, models.ReviewEntry{
		Action:  models.ReviewActionComment,
		ByID:    byID,
		Remarks: text,
		At:      time.Now().UTC(),
	})
}

// freshVerificationNumber generates until unused, bounded. The partial
// unique index on verified_number backstops the lost race.
func (s *Service) freshVerificationNumber(ctx context.Context) (string, error) {
	for i := 0; i < numberAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
		if err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("SV-%d-%08d", time.Now().UTC().Year(), n.Int64())
		exists, err := s.apps.VerifiedNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", faults.Conflictf("could not allocate a unique verification number after %d attempts", numberAttempts)
}
