package roster_test

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/roster"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/faults"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
	"github.com/sanghsetu/sanghsetu/internal/testutil"
)

func newService(t *testing.T) (*roster.Service, *unitstore.Store, *testutil.FakeDirectory, *testutil.FakeDocs, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	units := unitstore.New(db)
	dir := testutil.NewFakeDirectory()
	docs := &testutil.FakeDocs{}
	svc := roster.New(units, dir, docs, zap.NewNop())
	return svc, units, dir, docs, testutil.NewFixtures(t, db)
}

func TestAddMember_RequiresVerifiedIdentity(t *testing.T) {
	svc, _, dir, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := fx.CreateUnit(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)

	unverified := dir.AddUser("Pending Person", "pending@example.org", false)
	err := svc.AddMember(ctx, unit.ID, roster.Candidate{UserID: unverified})
	if !faults.IsKind(err, faults.Validation) {
		t.Fatalf("expected Validation for unverified candidate, got %v", err)
	}

	verified := dir.AddUser("Ready Person", "ready@example.org", true)
	if err := svc.AddMember(ctx, unit.ID, roster.Candidate{UserID: verified, Phone: "9999999999"}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
}

func TestAddMember_DuplicateConflicts(t *testing.T) {
	svc, _, dir, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := fx.CreateUnit(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)
	userID := dir.AddUser("Repeat Person", "repeat@example.org", true)

	if err := svc.AddMember(ctx, unit.ID, roster.Candidate{UserID: userID}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := svc.AddMember(ctx, unit.ID, roster.Candidate{UserID: userID})
	if !faults.IsKind(err, faults.Conflict) {
		t.Fatalf("expected Conflict for duplicate member, got %v", err)
	}
}

func TestAddMembers_PartialBatch(t *testing.T) {
	svc, _, dir, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := fx.CreateUnit(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)

	good := dir.AddUser("Good", "good@example.org", true)
	bad := dir.AddUser("Bad", "bad@example.org", false)

	results, err := svc.AddMembers(ctx, unit.ID, []roster.Candidate{
		{UserID: good},
		{UserID: bad},
	})
	if err != nil {
		t.Fatalf("AddMembers: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("verified candidate rejected: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("unverified candidate accepted")
	}
}

func TestAddMembers_EmptyAndOversized(t *testing.T) {
	svc, _, _, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := fx.CreateUnit(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"), nil)

	if _, err := svc.AddMembers(ctx, unit.ID, nil); !faults.IsKind(err, faults.Validation) {
		t.Errorf("empty batch: expected Validation, got %v", err)
	}

	over := make([]roster.Candidate, roster.MaxBatchSize+1)
	for i := range over {
		over[i] = roster.Candidate{UserID: primitive.NewObjectID()}
	}
	if _, err := svc.AddMembers(ctx, unit.ID, over); !faults.IsKind(err, faults.Validation) {
		t.Errorf("oversized batch: expected Validation, got %v", err)
	}
}

func TestRemoveMember_CityMinimumHolds(t *testing.T) {
	svc, _, _, _, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	members := testutil.Members(3)
	unit := fx.CreateUnitWith(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"),
		testutil.BearerTrio(time.Now().UTC().AddDate(2, 0, 0)), members)

	err := svc.RemoveMember(ctx, unit.ID, members[0].UserID)
	if !faults.IsKind(err, faults.Invariant) {
		t.Fatalf("expected Invariant at the three-member floor, got %v", err)
	}
}

func TestRemoveMember_WithSlackAndDocumentDiscard(t *testing.T) {
	svc, units, _, docs, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	members := testutil.Members(4)
	members[0].DocumentURL = "https://docs.example/old-id.pdf"
	unit := fx.CreateUnitWith(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"),
		testutil.BearerTrio(time.Now().UTC().AddDate(2, 0, 0)), members)

	if err := svc.RemoveMember(ctx, unit.ID, members[0].UserID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}

	got, err := units.GetByID(ctx, unit.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.Members) != 3 {
		t.Errorf("members after removal: got %d, want 3", len(got.Members))
	}
	if len(docs.Discarded) != 1 || docs.Discarded[0] != "https://docs.example/old-id.pdf" {
		t.Errorf("document not discarded: %v", docs.Discarded)
	}
}

func TestUpdateMemberDetails(t *testing.T) {
	svc, units, _, docs, fx := newService(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	members := testutil.Members(3)
	members[0].DocumentURL = "https://docs.example/v1.pdf"
	unit := fx.CreateUnitWith(ctx, "Pune City Unit", models.LevelCity,
		testutil.CityLocation("India", "Maharashtra", "Pune", "Pune"),
		testutil.BearerTrio(time.Now().UTC().AddDate(2, 0, 0)), members)

	name := "Asha <script>alert(1)</script>Rao"
	doc := "https://docs.example/v2.pdf"
	if err := svc.UpdateMemberDetails(ctx, unit.ID, members[0].UserID, roster.MemberPatch{
		FullName:    &name,
		DocumentURL: &doc,
	}); err != nil {
		t.Fatalf("UpdateMemberDetails: %v", err)
	}

	got, err := units.GetByID(ctx, unit.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	var updated *models.Member
	for i := range got.Members {
		if got.Members[i].UserID == members[0].UserID {
			updated = &got.Members[i]
		}
	}
	if updated == nil {
		t.Fatal("member disappeared")
	}
	if updated.FullName != "Asha Rao" && updated.FullName != "Asha alert(1)Rao" {
		// StrictPolicy strips tags; exact whitespace handling aside, no
		// markup may survive.
		t.Errorf("full name not sanitized: %q", updated.FullName)
	}
	if updated.DocumentURL != doc {
		t.Errorf("document url: got %q", updated.DocumentURL)
	}
	if len(docs.Discarded) != 1 || docs.Discarded[0] != "https://docs.example/v1.pdf" {
		t.Errorf("replaced document not discarded: %v", docs.Discarded)
	}

	if err := svc.UpdateMemberDetails(ctx, unit.ID, members[0].UserID, roster.MemberPatch{}); !faults.IsKind(err, faults.Validation) {
		t.Errorf("empty patch: expected Validation, got %v", err)
	}
	if err := svc.UpdateMemberDetails(ctx, unit.ID, primitive.NewObjectID(), roster.MemberPatch{FullName: &name}); !faults.IsKind(err, faults.NotFound) {
		t.Errorf("unknown member: expected NotFound, got %v", err)
	}
}
