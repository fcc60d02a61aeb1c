package routing_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/routing"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
	"github.com/sanghsetu/sanghsetu/internal/testutil"
)

func newEngine(t *testing.T) (*routing.Engine, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return routing.New(unitstore.New(db), zap.NewNop()), testutil.NewFixtures(t, db)
}

func TestInferLevel(t *testing.T) {
	cases := []struct {
		loc  models.Location
		want models.Level
	}{
		{testutil.AreaLocation("India", "Maharashtra", "Pune", "Pune", "Kothrud"), models.LevelArea},
		{testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), models.LevelCity},
		{models.Location{Country: "India", State: "Maharashtra", District: "Pune"}, models.LevelDistrict},
		{models.Location{Country: "India", State: "Maharashtra"}, models.LevelState},
		{models.Location{Country: "India"}, models.LevelState},
		// An area without its city cannot anchor at area level.
		{models.Location{Country: "India", State: "Maharashtra", District: "Pune", Area: "Kothrud"}, models.LevelDistrict},
	}
	for _, c := range cases {
		if got := routing.InferLevel(c.loc); got != c.want {
			t.Errorf("InferLevel(%+v): got %s, want %s", c.loc, got, c.want)
		}
	}
}

func TestRouteApplication_DirectMatch(t *testing.T) {
	eng, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	city := fx.CreateUnit(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)

	route, err := eng.RouteApplication(ctx, testutil.CityLocation("india", "MAHARASHTRA", "Pune", "pune"), nil)
	if err != nil {
		t.Fatalf("RouteApplication: %v", err)
	}
	if route.Level != models.LevelCity {
		t.Errorf("level: got %s, want city", route.Level)
	}
	if route.ReviewingUnitID == nil || *route.ReviewingUnitID != city.ID {
		t.Error("reviewing unit not resolved to the city unit")
	}
}

func TestRouteApplication_EscalatesThroughMissingLevels(t *testing.T) {
	eng, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Only a state unit exists; an area-detailed location must climb
	// past area, city, and district to land there.
	state := fx.CreateUnit(ctx, "Maharashtra Unit", models.LevelState,
		models.Location{Country: "India", State: "Maharashtra"}, nil)

	route, err := eng.RouteApplication(ctx,
		testutil.AreaLocation("India", "Maharashtra", "Pune", "Pune", "Kothrud"), nil)
	if err != nil {
		t.Fatalf("RouteApplication: %v", err)
	}
	if route.Level != models.LevelState {
		t.Errorf("level: got %s, want state", route.Level)
	}
	if route.ReviewingUnitID == nil || *route.ReviewingUnitID != state.ID {
		t.Error("reviewing unit not resolved to the state unit")
	}
}

func TestRouteApplication_SuperadminSentinel(t *testing.T) {
	eng, _ := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	route, err := eng.RouteApplication(ctx,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)
	if err != nil {
		t.Fatalf("RouteApplication: %v", err)
	}
	if route.Level != models.LevelSuperadmin {
		t.Errorf("level: got %s, want superadmin", route.Level)
	}
	if route.ReviewingUnitID != nil {
		t.Error("superadmin sentinel must carry no unit")
	}
}

func TestRouteApplication_EscalationSkipsWrongJurisdiction(t *testing.T) {
	eng, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// A district unit exists, but for a different district. The probe at
	// district level must not match it.
	fx.CreateUnit(ctx, "Nashik District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Nashik"}, nil)
	country := fx.CreateUnit(ctx, "India Unit", models.LevelCountry,
		models.Location{Country: "India"}, nil)

	route, err := eng.RouteApplication(ctx,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)
	if err != nil {
		t.Fatalf("RouteApplication: %v", err)
	}
	if route.Level != models.LevelCountry {
		t.Errorf("level: got %s, want country", route.Level)
	}
	if route.ReviewingUnitID == nil || *route.ReviewingUnitID != country.ID {
		t.Error("reviewing unit not resolved to the country unit")
	}
}

func TestRouteApplication_OverrideHonored(t *testing.T) {
	eng, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUnit(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)
	state := fx.CreateUnit(ctx, "Maharashtra Unit", models.LevelState,
		models.Location{Country: "India", State: "Maharashtra"}, nil)

	// Declared state-level: the city unit under the same location must be
	// bypassed.
	override := models.LevelState
	route, err := eng.RouteApplication(ctx,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), &override)
	if err != nil {
		t.Fatalf("RouteApplication: %v", err)
	}
	if route.Level != models.LevelState {
		t.Errorf("level: got %s, want state", route.Level)
	}
	if route.ReviewingUnitID == nil || *route.ReviewingUnitID != state.ID {
		t.Error("override did not route to the state unit")
	}
}

func TestRouteApplication_Validation(t *testing.T) {
	eng, _ := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := eng.RouteApplication(ctx, models.Location{State: "Maharashtra"}, nil); !faults.IsKind(err, faults.Validation) {
		t.Errorf("missing country: expected Validation, got %v", err)
	}

	bogus := models.Level("galaxy")
	if _, err := eng.RouteApplication(ctx, models.Location{Country: "India"}, &bogus); !faults.IsKind(err, faults.Validation) {
		t.Errorf("bogus override: expected Validation, got %v", err)
	}
}

func TestFindReviewingUnit_IgnoresInactiveUnits(t *testing.T) {
	eng, fx := newEngine(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	loc := testutil.CityLocation("India", "Maharashtra", "Pune", "Pune")
	unit := fx.CreateUnit(ctx, "Retired Pune Unit", models.LevelCity, loc, nil)
	if _, err := fx.DB().Collection("org_units").UpdateByID(ctx, unit.ID,
		map[string]any{"$set": map[string]any{"status": "inactive"}}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	res, err := eng.FindReviewingUnit(ctx, models.LevelCity, loc)
	if err != nil {
		t.Fatalf("FindReviewingUnit: %v", err)
	}
	if !res.Superadmin() {
		t.Error("inactive unit matched")
	}
}
