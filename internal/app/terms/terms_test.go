package terms_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/app/system/status"
	"github.com/sanghsetu/sanghsetu/internal/app/terms"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
	"github.com/sanghsetu/sanghsetu/internal/testutil"
)

func newService(t *testing.T) (*terms.Service, *unitstore.Store, *testutil.FakeDirectory, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	units := unitstore.New(db)
	dir := testutil.NewFakeDirectory()
	return terms.New(units, dir, zap.NewNop()), units, dir, testutil.NewFixtures(t, db)
}

func TestValidateTenure(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := terms.ValidateTenure(start, start.AddDate(2, 0, 0)); err != nil {
		t.Errorf("exact two years rejected: %v", err)
	}
	if err := terms.ValidateTenure(start, start.AddDate(2, 0, 1)); !faults.IsKind(err, faults.Validation) {
		t.Errorf("two years and a day accepted: %v", err)
	}
	if err := terms.ValidateTenure(start, start.AddDate(1, 11, 0)); !faults.IsKind(err, faults.Validation) {
		t.Errorf("short tenure accepted: %v", err)
	}
}

func TestCheckTermStatus(t *testing.T) {
	svc, _, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fresh := fx.CreateUnit(ctx, "Fresh Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"}, nil)
	st, err := svc.CheckTermStatus(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("CheckTermStatus: %v", err)
	}
	if st.HasEndingTerms {
		t.Error("fresh trio reported as ending")
	}

	soon := time.Now().UTC().Add(10*24*time.Hour + time.Hour)
	ending := fx.CreateUnitWith(ctx, "Ending Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Nashik"},
		testutil.BearerTrio(soon), nil)
	st, err = svc.CheckTermStatus(ctx, ending.ID)
	if err != nil {
		t.Fatalf("CheckTermStatus: %v", err)
	}
	if !st.HasEndingTerms || len(st.EndingRoles) != 3 {
		t.Fatalf("ending trio not reported: %+v", st)
	}
	if st.DaysRemaining != 10 {
		t.Errorf("days remaining: got %d, want 10", st.DaysRemaining)
	}

	lapsed := fx.CreateUnitWith(ctx, "Lapsed Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Satara"},
		testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1)), nil)
	st, err = svc.CheckTermStatus(ctx, lapsed.ID)
	if err != nil {
		t.Fatalf("CheckTermStatus: %v", err)
	}
	if !st.HasEndingTerms || st.DaysRemaining != 0 {
		t.Errorf("lapsed trio: %+v", st)
	}
}

func TestReplaceOfficeBearer_MidTermConflicts(t *testing.T) {
	svc, _, dir, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := fx.CreateUnit(ctx, "Pune District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"}, nil)
	successor := dir.AddUser("Successor", "successor@example.org", true)

	_, err := svc.ReplaceOfficeBearer(ctx, unit.ID, models.RolePresident, successor, "resignation")
	if !faults.IsKind(err, faults.Conflict) {
		t.Fatalf("expected Conflict for mid-term replacement, got %v", err)
	}
}

func TestReplaceOfficeBearer_Succession(t *testing.T) {
	svc, _, dir, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	trio := testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1))
	unit := fx.CreateUnitWith(ctx, "Pune District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"},
		trio, nil)

	unverified := dir.AddUser("Nobody", "nobody@example.org", false)
	if _, err := svc.ReplaceOfficeBearer(ctx, unit.ID, models.RolePresident, unverified, "term ended"); !faults.IsKind(err, faults.Validation) {
		t.Fatalf("unverified successor: expected Validation, got %v", err)
	}

	successor := dir.AddUser("Asha Rao", "asha@example.org", true)
	updated, err := svc.ReplaceOfficeBearer(ctx, unit.ID, models.RolePresident, successor, "term ended")
	if err != nil {
		t.Fatalf("ReplaceOfficeBearer: %v", err)
	}

	slot := updated.ActiveBearer(models.RolePresident)
	if slot == nil || slot.UserID != successor {
		t.Fatal("president slot not handed over")
	}
	if !slot.EndDate.Equal(slot.StartDate.AddDate(2, 0, 0)) {
		t.Error("incoming tenure is not exactly two years")
	}
	if len(slot.History) != 1 || slot.History[0].UserID != trio[0].UserID {
		t.Errorf("outgoing term not archived in slot history: %+v", slot.History)
	}
	if len(updated.CurrentTerm.RotatedRoles) != 1 || updated.CurrentTerm.RotatedRoles[0] != models.RolePresident {
		t.Errorf("rotated roles: %v", updated.CurrentTerm.RotatedRoles)
	}
	if len(updated.PreviousTerms) != 0 {
		t.Error("partial rotation must not archive the cycle")
	}
}

func TestReplaceOfficeBearer_FullRotationArchivesCycle(t *testing.T) {
	svc, _, dir, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	trio := testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1))
	unit := fx.CreateUnitWith(ctx, "Pune District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"},
		trio, nil)

	var updated models.Unit
	var err error
	for _, role := range models.Roles {
		successor := dir.AddUser("Successor "+string(role), string(role)+"@example.org", true)
		updated, err = svc.ReplaceOfficeBearer(ctx, unit.ID, role, successor, "rotation")
		if err != nil {
			t.Fatalf("replace %s: %v", role, err)
		}
	}

	if len(updated.PreviousTerms) != 1 {
		t.Fatalf("previous terms: got %d, want 1", len(updated.PreviousTerms))
	}
	archived := updated.PreviousTerms[0]
	if archived.Number != 1 {
		t.Errorf("archived term number: got %d", archived.Number)
	}
	if len(archived.Bearers) != 3 {
		t.Errorf("archived trio: got %d records", len(archived.Bearers))
	}
	if updated.CurrentTerm.Number != 2 {
		t.Errorf("term window not advanced: %d", updated.CurrentTerm.Number)
	}
	if len(updated.CurrentTerm.RotatedRoles) != 0 {
		t.Errorf("rotated roles not reset: %v", updated.CurrentTerm.RotatedRoles)
	}
}

func TestReplaceOfficeBearer_CandidateAlreadyHoldsLevelPosition(t *testing.T) {
	svc, _, dir, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	holder := dir.AddUser("Busy Person", "busy@example.org", true)
	otherTrio := testutil.BearerTrio(time.Now().UTC().AddDate(2, 0, 0))
	otherTrio[0].UserID = holder
	fx.CreateUnitWith(ctx, "Nashik District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Nashik"},
		otherTrio, nil)

	unit := fx.CreateUnitWith(ctx, "Pune District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"},
		testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1)), nil)

	_, err := svc.ReplaceOfficeBearer(ctx, unit.ID, models.RolePresident, holder, "nomination")
	if !faults.IsKind(err, faults.Conflict) {
		t.Fatalf("expected Conflict for double position at one level, got %v", err)
	}
}

func TestReplaceOfficeBearer_RenewalOfSameHolder(t *testing.T) {
	svc, _, dir, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	incumbent := dir.AddUser("Incumbent", "incumbent@example.org", true)
	trio := testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1))
	trio[0].UserID = incumbent
	unit := fx.CreateUnitWith(ctx, "Pune District Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"},
		trio, nil)

	updated, err := svc.ReplaceOfficeBearer(ctx, unit.ID, models.RolePresident, incumbent, "renewed")
	if err != nil {
		t.Fatalf("renewal: %v", err)
	}
	slot := updated.ActiveBearer(models.RolePresident)
	if slot == nil || slot.UserID != incumbent {
		t.Fatal("incumbent lost the slot")
	}
	if !slot.EndDate.After(time.Now().UTC()) {
		t.Error("renewed term should run two more years")
	}
}

func TestReplaceOfficeBearer_UnknownRoleSlot(t *testing.T) {
	svc, _, dir, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := fx.CreateUnitWith(ctx, "Thin Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"},
		testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1))[:1], nil)
	successor := dir.AddUser("Successor", "s@example.org", true)

	_, err := svc.ReplaceOfficeBearer(ctx, unit.ID, models.RoleTreasurer, successor, "fill")
	if !faults.IsKind(err, faults.NotFound) {
		t.Fatalf("expected NotFound for missing slot, got %v", err)
	}
}

func TestExpireLapsedTerms(t *testing.T) {
	svc, units, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lapsed := fx.CreateUnitWith(ctx, "Lapsed Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Pune"},
		testutil.BearerTrio(time.Now().UTC().AddDate(0, 0, -1)), nil)
	fresh := fx.CreateUnit(ctx, "Fresh Unit", models.LevelDistrict,
		models.Location{Country: "India", State: "Maharashtra", District: "Nashik"}, nil)

	n, err := svc.ExpireLapsedTerms(ctx)
	if err != nil {
		t.Fatalf("ExpireLapsedTerms: %v", err)
	}
	if n != 1 {
		t.Errorf("units touched: got %d, want 1", n)
	}

	got, err := units.GetByID(ctx, lapsed.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, b := range got.OfficeBearers {
		if b.Status != status.Completed {
			t.Errorf("bearer %s still %q after sweep", b.Role, b.Status)
		}
	}

	got, err = units.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	for _, b := range got.OfficeBearers {
		if b.Status != status.Active {
			t.Errorf("fresh bearer %s swept to %q", b.Role, b.Status)
		}
	}
}
