package accountstore_test

import (
	"testing"

	accountstore "github.com/mlanders/datahub/internal/app/store/accounts"
	"github.com/mlanders/datahub/internal/domain/models"
	"github.com/mlanders/datahub/internal/testutil"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Account{
		AccountID:  "alice",
		Kind:       models.AccountKindIndividual,
		Name:       "Alice",
		IdentityID: "ident-alice",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.NameCI == "" {
		t.Error("expected NameCI to be derived on create")
	}

	got, err := store.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Alice" || got.Kind != models.AccountKindIndividual {
		t.Errorf("got %+v", got)
	}

	byIdent, err := store.GetByIdentity(ctx, "ident-alice")
	if err != nil {
		t.Fatalf("GetByIdentity failed: %v", err)
	}
	if byIdent.AccountID != "alice" {
		t.Errorf("GetByIdentity: got %q, want alice", byIdent.AccountID)
	}
}

func TestStore_Create_DuplicateID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Account{AccountID: "alice", Kind: models.AccountKindIndividual, Name: "Alice"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Account{AccountID: "alice", Kind: models.AccountKindIndividual, Name: "Other"}); err != accountstore.ErrDuplicateAccount {
		t.Errorf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestStore_Create_DuplicateFoldedName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Account{AccountID: "cafe-one", Kind: models.AccountKindOrganization, Name: "Café"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, models.Account{AccountID: "cafe-two", Kind: models.AccountKindOrganization, Name: "cafe"}); err != accountstore.ErrDuplicateAccount {
		t.Errorf("folded name collision: expected ErrDuplicateAccount, got %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, "nobody"); err != accountstore.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SetDisabledAndFlags(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Account{AccountID: "alice", Kind: models.AccountKindIndividual, Name: "Alice"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetDisabled(ctx, "alice", true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}
	if err := store.SetFlags(ctx, "alice", []models.AccountFlag{models.FlagCreateRepositories}); err != nil {
		t.Fatalf("SetFlags failed: %v", err)
	}

	got, err := store.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.Disabled {
		t.Error("expected account to be disabled")
	}
	if !got.HasFlag(models.FlagCreateRepositories) {
		t.Error("expected create_repositories flag")
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Account{AccountID: "alice", Kind: models.AccountKindIndividual, Name: "Alice"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.UpdateProfile(ctx, "alice", models.AccountProfile{Bio: "climate researcher"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	got, _ := store.GetByID(ctx, "alice")
	if got.Profile.Bio != "climate researcher" {
		t.Errorf("profile bio: got %q", got.Profile.Bio)
	}
}

func TestStore_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, id := range []string{"acme", "widgets"} {
		if _, err := store.Create(ctx, models.Account{AccountID: id, Kind: models.AccountKindOrganization, Name: id}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, models.Account{AccountID: "alice", Kind: models.AccountKindIndividual, Name: "alice"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetDisabled(ctx, "widgets", true); err != nil {
		t.Fatalf("SetDisabled failed: %v", err)
	}

	orgs, err := store.List(ctx, models.AccountKindOrganization, false, "", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].AccountID != "acme" {
		t.Errorf("enabled orgs: got %+v, want just acme", orgs)
	}

	withDisabled, err := store.List(ctx, models.AccountKindOrganization, true, "", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(withDisabled) != 2 {
		t.Errorf("all orgs: got %d, want 2", len(withDisabled))
	}
}

func TestFetcher_SessionByIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	fetcher := accountstore.NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateIndividual(ctx, "alice")
	fixtures.CreateOrganization(ctx, "acme")
	fixtures.CreateMembership(ctx, "alice", "acme", "", models.RoleMaintainers, models.MembershipMember)
	revoked := fixtures.CreateMembership(ctx, "alice", "acme", "climate", models.RoleReadData, models.MembershipRevoked)

	sess, err := fetcher.SessionByIdentity(ctx, alice.IdentityID)
	if err != nil {
		t.Fatalf("SessionByIdentity failed: %v", err)
	}
	if !sess.HasAccount() || sess.AccountID() != "alice" {
		t.Fatalf("session account: got %+v", sess.Account)
	}
	if len(sess.Memberships) != 1 {
		t.Errorf("active memberships: got %d, want 1 (revoked %s excluded)", len(sess.Memberships), revoked.MembershipID)
	}
}

func TestFetcher_SessionByIdentity_NoAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fetcher := accountstore.NewFetcher(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sess, err := fetcher.SessionByIdentity(ctx, "ident-nobody")
	if err != nil {
		t.Fatalf("SessionByIdentity failed: %v", err)
	}
	if sess.IsAnonymous() {
		t.Error("identity without account is authenticated, not anonymous")
	}
	if sess.HasAccount() {
		t.Error("expected no account")
	}
}
