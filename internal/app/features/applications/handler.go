// Package applications is the JSON API over the application review
// workflow: submission, decisions, comments, and queue listings.
package applications

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	reviewpolicy "github.com/sanghsetu/sanghsetu/internal/app/policy/reviewpolicy"
	"github.com/sanghsetu/sanghsetu/internal/app/review"
	applicationstore "github.com/sanghsetu/sanghsetu/internal/app/store/applications"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/respond"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// Handler serves the application endpoints.
type Handler struct {
	Review *review.Service
	Apps   *applicationstore.Store
	Log    *zap.Logger
}

func NewHandler(rev *review.Service, apps *applicationstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Review: rev, Apps: apps, Log: logger}
}

// Submit handles POST /applications.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var p struct {
		ApplicantID  string          `json:"applicant_id"`
		Location     models.Location `json:"location"`
		DocumentURLs []string        `json:"document_urls"`
		Level        string          `json:"level,omitempty"` // optional explicit level
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	applicantID, err := parseID(p.ApplicantID)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var override *models.Level
	if p.Level != "" {
		lvl := models.Level(p.Level)
		override = &lvl
	}
	app, err := h.Review.Submit(r.Context(), applicantID, p.Location, p.DocumentURLs, override)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, app)
}

// Get handles GET /applications/{applicationID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	app, err := h.Apps.GetByID(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, app)
}

// Queue handles GET /applications?reviewing_unit_id=…|superadmin. It
// lists the pending applications waiting on one reviewing unit.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	var unitID *primitive.ObjectID
	raw := r.URL.Query().Get("reviewing_unit_id")
	switch raw {
	case "", "superadmin":
		// nil selects the superadmin queue
	default:
		id, err := parseID(raw)
		if err != nil {
			respond.Fail(w, h.Log, err)
			return
		}
		unitID = &id
	}
	apps, err := h.Apps.ListByReviewingUnit(r.Context(), unitID, true)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, struct {
		Applications []models.Application `json:"applications"`
	}{apps})
}

type reviewerPayload struct {
	Role                  string          `json:"role"`
	UserID                string          `json:"user_id"`
	Level                 string          `json:"level,omitempty"`
	UnitID                string          `json:"unit_id,omitempty"`
	UnitLocation          models.Location `json:"unit_location,omitempty"`
	CanReviewApplications bool            `json:"can_review_applications,omitempty"`
}

func (p reviewerPayload) toReviewer() (reviewpolicy.Reviewer, error) {
	userID, err := parseID(p.UserID)
	if err != nil {
		return reviewpolicy.Reviewer{}, err
	}
	rev := reviewpolicy.Reviewer{
		Role:                  p.Role,
		UserID:                userID,
		Level:                 models.Level(p.Level),
		UnitLocation:          p.UnitLocation,
		CanReviewApplications: p.CanReviewApplications,
	}
	if p.UnitID != "" {
		unitID, err := parseID(p.UnitID)
		if err != nil {
			return reviewpolicy.Reviewer{}, err
		}
		rev.UnitID = unitID
	}
	return rev, nil
}

// Decide handles POST /applications/{applicationID}/review.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p struct {
		Reviewer reviewerPayload `json:"reviewer"`
		Decision string          `json:"decision"`
		Remarks  string          `json:"remarks,omitempty"`
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	reviewer, err := p.Reviewer.toReviewer()
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	app, err := h.Review.Review(r.Context(), id, reviewer, p.Decision, p.Remarks)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, app)
}

// Comment handles POST /applications/{applicationID}/comments.
func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "applicationID"))
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p struct {
		ByID    string `json:"by_id"`
		Remarks string `json:"remarks"`
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	byID, err := parseID(p.ByID)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	if err := h.Review.Comment(r.Context(), id, byID, p.Remarks); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, faults.Validationf("invalid object id %q", hex)
	}
	return id, nil
}
