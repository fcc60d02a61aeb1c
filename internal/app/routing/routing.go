// Package routing assigns an application to the reviewing unit with
// jurisdiction over its location. Resolution starts at the inferred (or
// explicitly requested) level and escalates one level at a time toward
// country; when even the country probe finds nothing, the superadmin
// sentinel is the answer — never a silent miss.
package routing

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/hierarchy"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

type Engine struct {
	units *unitstore.Store
	log   *zap.Logger
}

func New(units *unitstore.Store, log *zap.Logger) *Engine {
	return &Engine{units: units, log: log}
}

// Resolution is the outcome of jurisdiction matching. Unit is nil and
// Level is LevelSuperadmin when no unit matched at any level.
type Resolution struct {
	Unit  *models.Unit
	Level models.Level
}

// Superadmin reports whether resolution fell through every level.
func (r Resolution) Superadmin() bool {
	return r.Unit == nil
}

// UnitID returns the reviewing unit's ID, or nil for superadmin.
func (r Resolution) UnitID() *primitive.ObjectID {
	if r.Unit == nil {
		return nil
	}
	id := r.Unit.ID
	return &id
}

// FindReviewingUnit matches location against active units at level; on a
// miss it escalates to the next higher level, comparing only the fields
// relevant there, until country. Only after the country probe fails does
// it return the superadmin sentinel.
func (e *Engine) FindReviewingUnit(ctx context.Context, level models.Level, loc models.Location) (Resolution, error) {
	depth := hierarchy.Depth(level)
	if depth < 0 {
		return Resolution{}, faults.Validationf("unknown hierarchy level %q", level)
	}
	for d := depth; d >= 0; d-- {
		probe := hierarchy.Order[d]
		units, err := e.units.FindActiveByLevelAndLocation(ctx, probe, loc)
		if err != nil {
			return Resolution{}, err
		}
		if len(units) > 0 {
			u := units[0]
			return Resolution{Unit: &u, Level: probe}, nil
		}
	}
	return Resolution{Level: models.LevelSuperadmin}, nil
}

// InferLevel picks the starting level from which location fields are
// populated: full area detail starts at area, city detail at city, a
// bare district at district, anything thinner at state.
func InferLevel(loc models.Location) models.Level {
	switch {
	case loc.Area != "" && loc.City != "" && loc.District != "":
		return models.LevelArea
	case loc.City != "" && loc.District != "":
		return models.LevelCity
	case loc.District != "":
		return models.LevelDistrict
	default:
		return models.LevelState
	}
}

// Route is the persisted routing outcome.
type Route struct {
	Level           models.Level        // level actually resolved, may be higher than inferred
	ReviewingUnitID *primitive.ObjectID // nil means superadmin
}

// RouteApplication decides the initial level (or honors an explicit
// override, e.g. a declared country-level application) and resolves the
// reviewing unit.
func (e *Engine) RouteApplication(ctx context.Context, loc models.Location, override *models.Level) (Route, error) {
	start := InferLevel(loc)
	if override != nil {
		if !hierarchy.Valid(*override) {
			return Route{}, faults.Validationf("unknown hierarchy level %q", *override)
		}
		start = *override
	}
	if loc.Country == "" {
		return Route{}, faults.Validationf("application location requires a country")
	}

	res, err := e.FindReviewingUnit(ctx, start, loc)
	if err != nil {
		return Route{}, err
	}
	if res.Superadmin() {
		e.log.Info("application routed to superadmin", zap.String("start_level", string(start)))
		return Route{Level: models.LevelSuperadmin}, nil
	}
	if res.Level != start {
		e.log.Info("application escalated",
			zap.String("start_level", string(start)),
			zap.String("resolved_level", string(res.Level)),
			zap.String("unit_id", res.Unit.ID.Hex()))
	}
	return Route{Level: res.Level, ReviewingUnitID: res.UnitID()}, nil
}
