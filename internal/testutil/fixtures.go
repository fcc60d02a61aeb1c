package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sanghsetu/sanghsetu/internal/app/system/hierarchy"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CityLocation builds a complete city-level location.
func CityLocation(country, state, district, city string) models.Location {
	return models.Location{Country: country, State: state, District: district, City: city}
}

// AreaLocation builds a complete area-level location.
func AreaLocation(country, state, district, city, area string) models.Location {
	return models.Location{Country: country, State: state, District: district, City: city, Area: area}
}

// BearerTrio builds a full set of active office bearers whose terms end
// at the given date. Start dates are set exactly two years earlier.
func BearerTrio(end time.Time) []models.OfficeBearer {
	bearers := make([]models.OfficeBearer, 0, len(models.Roles))
	for _, role := range models.Roles {
		bearers = append(bearers, models.OfficeBearer{
			Role:      role,
			UserID:    primitive.NewObjectID(),
			FullName:  "Bearer " + string(role),
			StartDate: end.AddDate(-2, 0, 0),
			EndDate:   end,
			Status:    "active",
		})
	}
	return bearers
}

// Members builds n active roster entries with fresh user IDs.
func Members(n int) []models.Member {
	now := time.Now().UTC()
	ms := make([]models.Member, 0, n)
	for i := 0; i < n; i++ {
		ms = append(ms, models.Member{
			UserID:   primitive.NewObjectID(),
			FullName: "Member",
			JoinedAt: now,
			Status:   "active",
		})
	}
	return ms
}

// CreateUnit inserts an active unit directly, bypassing registry
// validation. Bearers default to a fresh trio ending two years out and
// city units get the minimum three members.
func (f *Fixtures) CreateUnit(ctx context.Context, name string, level models.Level, loc models.Location, parentID *primitive.ObjectID) models.Unit {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.Unit{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameCI:        text.Fold(name),
		Level:         level,
		Location:      loc,
		LocationCI:    hierarchy.Fold(loc),
		ParentID:      parentID,
		OfficeBearers: BearerTrio(now.AddDate(2, 0, 0)),
		CurrentTerm:   models.TermWindow{Number: 1, StartDate: now},
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if level == models.LevelCity {
		u.Members = Members(3)
	}
	f.insertUnit(ctx, u)
	return u
}

// CreateUnitWith inserts an active unit with the given bearers and
// members as-is.
func (f *Fixtures) CreateUnitWith(ctx context.Context, name string, level models.Level, loc models.Location, bearers []models.OfficeBearer, members []models.Member) models.Unit {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.Unit{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameCI:        text.Fold(name),
		Level:         level,
		Location:      loc,
		LocationCI:    hierarchy.Fold(loc),
		OfficeBearers: bearers,
		CurrentTerm:   models.TermWindow{Number: 1, StartDate: now.AddDate(-2, 0, 0)},
		Members:       members,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.insertUnit(ctx, u)
	return u
}

func (f *Fixtures) insertUnit(ctx context.Context, u models.Unit) {
	f.t.Helper()
	if _, err := f.db.Collection("org_units").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to insert test unit: %v", err)
	}
}
