// Package units is the JSON API over the unit registry, rosters, and
// office-bearer terms.
package units

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/registry"
	"github.com/sanghsetu/sanghsetu/internal/app/roster"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/respond"
	"github.com/sanghsetu/sanghsetu/internal/app/terms"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// Handler serves the unit endpoints.
type Handler struct {
	Registry *registry.Service
	Roster   *roster.Service
	Terms    *terms.Service
	Log      *zap.Logger
}

func NewHandler(reg *registry.Service, ros *roster.Service, trm *terms.Service, logger *zap.Logger) *Handler {
	return &Handler{Registry: reg, Roster: ros, Terms: trm, Log: logger}
}

type bearerPayload struct {
	Role        string `json:"role"`
	UserID      string `json:"user_id"`
	Phone       string `json:"phone,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type memberPayload struct {
	UserID      string `json:"user_id"`
	Phone       string `json:"phone,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

type createUnitPayload struct {
	Name           string          `json:"name"`
	Level          string          `json:"level"`
	Location       models.Location `json:"location"`
	ParentID       string          `json:"parent_id,omitempty"`
	Bearers        []bearerPayload `json:"bearers"`
	Members        []memberPayload `json:"members,omitempty"`
	ConstituentIDs []string        `json:"constituent_ids,omitempty"`
}

// Create handles POST /units.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var p createUnitPayload
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}

	in := registry.CreateUnitInput{
		Name:     p.Name,
		Level:    models.Level(p.Level),
		Location: p.Location,
	}
	if p.ParentID != "" {
		id, err := parseID(p.ParentID)
		if err != nil {
			respond.Fail(w, h.Log, err)
			return
		}
		in.ParentID = &id
	}
	for _, b := range p.Bearers {
		id, err := parseID(b.UserID)
		if err != nil {
			respond.Fail(w, h.Log, err)
			return
		}
		in.Bearers = append(in.Bearers, registry.BearerCandidate{
			Role:        models.Role(b.Role),
			UserID:      id,
			Phone:       b.Phone,
			DocumentURL: b.DocumentURL,
		})
	}
	for _, m := range p.Members {
		id, err := parseID(m.UserID)
		if err != nil {
			respond.Fail(w, h.Log, err)
			return
		}
		in.Members = append(in.Members, registry.MemberCandidate{
			UserID:      id,
			Phone:       m.Phone,
			DocumentURL: m.DocumentURL,
		})
	}
	for _, c := range p.ConstituentIDs {
		id, err := parseID(c)
		if err != nil {
			respond.Fail(w, h.Log, err)
			return
		}
		in.ConstituentIDs = append(in.ConstituentIDs, id)
	}

	res, err := h.Registry.CreateUnit(r.Context(), in)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, struct {
		Unit       models.Unit `json:"unit"`
		AccessCode string      `json:"access_code"`
	}{res.Unit, res.AccessCode})
}

// Get handles GET /units/{unitID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	u, err := h.Registry.GetUnit(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

// List handles GET /units?level=city&country=…&state=…&district=…&city=…&area=….
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := models.Location{
		Country:  q.Get("country"),
		State:    q.Get("state"),
		District: q.Get("district"),
		City:     q.Get("city"),
		Area:     q.Get("area"),
	}
	units, err := h.Registry.UnitsByLevelAndLocation(r.Context(), models.Level(q.Get("level")), loc)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, struct {
		Units []models.Unit `json:"units"`
	}{units})
}

// Hierarchy handles GET /units/{unitID}/hierarchy.
func (h *Handler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	hr, err := h.Registry.GetHierarchy(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, hr)
}

// Deactivate handles POST /units/{unitID}/deactivate.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	if err := h.Registry.Deactivate(r.Context(), id); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyAccessCode handles POST /units/{unitID}/access-code/verify.
func (h *Handler) VerifyAccessCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p struct {
		AccessCode string `json:"access_code"`
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	ok, err := h.Registry.VerifyAccessCode(r.Context(), id, p.AccessCode)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, struct {
		Valid bool `json:"valid"`
	}{ok})
}

// AddMember handles POST /units/{unitID}/members.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p memberPayload
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	userID, err := parseID(p.UserID)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	if err := h.Roster.AddMember(r.Context(), id, roster.Candidate{
		UserID:      userID,
		Phone:       p.Phone,
		DocumentURL: p.DocumentURL,
	}); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchResult struct {
	UserID string `json:"user_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// AddMembers handles POST /units/{unitID}/members/batch. Each candidate
// succeeds or fails on its own; the response reports both.
func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p struct {
		Members []memberPayload `json:"members"`
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	cands := make([]roster.Candidate, 0, len(p.Members))
	for _, m := range p.Members {
		userID, err := parseID(m.UserID)
		if err != nil {
			respond.Fail(w, h.Log, err)
			return
		}
		cands = append(cands, roster.Candidate{
			UserID:      userID,
			Phone:       m.Phone,
			DocumentURL: m.DocumentURL,
		})
	}
	results, err := h.Roster.AddMembers(r.Context(), id, cands)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	out := make([]batchResult, 0, len(results))
	for _, res := range results {
		br := batchResult{UserID: res.UserID.Hex(), OK: res.Err == nil}
		if res.Err != nil {
			br.Error = res.Err.Error()
		}
		out = append(out, br)
	}
	respond.JSON(w, http.StatusOK, struct {
		Results []batchResult `json:"results"`
	}{out})
}

// RemoveMember handles DELETE /units/{unitID}/members/{userID}.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	unitID, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	if err := h.Roster.RemoveMember(r.Context(), unitID, userID); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateMember handles PATCH /units/{unitID}/members/{userID}.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	unitID, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p struct {
		FullName    *string `json:"full_name,omitempty"`
		Email       *string `json:"email,omitempty"`
		Phone       *string `json:"phone,omitempty"`
		DocumentURL *string `json:"document_url,omitempty"`
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	if err := h.Roster.UpdateMemberDetails(r.Context(), unitID, userID, roster.MemberPatch{
		FullName:    p.FullName,
		Email:       p.Email,
		Phone:       p.Phone,
		DocumentURL: p.DocumentURL,
	}); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TermStatus handles GET /units/{unitID}/terms/status.
func (h *Handler) TermStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	st, err := h.Terms.CheckTermStatus(r.Context(), id)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

// ReplaceBearer handles POST /units/{unitID}/bearers/{role}.
func (h *Handler) ReplaceBearer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "unitID")
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	var p struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason,omitempty"`
	}
	if err := respond.Decode(r, &p); err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	userID, err := parseID(p.UserID)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	role := models.Role(chi.URLParam(r, "role"))
	u, err := h.Terms.ReplaceOfficeBearer(r.Context(), id, role, userID, p.Reason)
	if err != nil {
		respond.Fail(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, faults.Validationf("invalid object id %q", hex)
	}
	return id, nil
}

func pathID(r *http.Request, param string) (primitive.ObjectID, error) {
	return parseID(chi.URLParam(r, param))
}
