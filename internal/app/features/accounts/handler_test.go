package accounts_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mlanders/datahub/internal/app/features/accounts"
	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	"github.com/mlanders/datahub/internal/domain/models"
	"github.com/mlanders/datahub/internal/testutil"
)

func newHandler(t *testing.T) (*accounts.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return accounts.NewHandler(db, uierrors.NewErrorLogger(logger), logger), testutil.NewFixtures(t, db)
}

func TestCreate_IndividualBindsIdentity(t *testing.T) {
	h, _ := newHandler(t)

	// A signed-in identity with no account yet.
	session := &models.Session{IdentityID: "google:123"}
	req := testutil.NewJSONRequest(http.MethodPost, "/accounts", map[string]string{
		"account_id": "alice",
		"kind":       "individual",
		"name":       "Alice Liddell",
	}, session)
	rec := testutil.NewRecorder()

	h.Create(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusCreated)

	var created models.Account
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.AccountID != "alice" || created.Name != "Alice Liddell" {
		t.Errorf("created account: %+v", created)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	stored, err := h.Accounts.GetByIdentity(ctx, "google:123")
	if err != nil {
		t.Fatalf("account not bound to identity: %v", err)
	}
	if stored.AccountID != "alice" {
		t.Errorf("bound account: got %q", stored.AccountID)
	}
}

func TestCreate_AnonymousIndividualUnauthorized(t *testing.T) {
	h, _ := newHandler(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/accounts", map[string]string{
		"account_id": "ghost",
		"kind":       "individual",
		"name":       "Ghost",
	}, nil)
	rec := testutil.NewRecorder()

	h.Create(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestCreate_SecondIndividualForbidden(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateIndividual(ctx, "alice")
	req := testutil.NewJSONRequest(http.MethodPost, "/accounts", map[string]string{
		"account_id": "alice2",
		"kind":       "individual",
		"name":       "Alice Again",
	}, testutil.SessionFor(alice))
	rec := testutil.NewRecorder()

	h.Create(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestCreate_OrganizationNeedsFlag(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	plain := fixtures.CreateIndividual(ctx, "plain")
	flagged := fixtures.CreateIndividual(ctx, "founder", models.FlagCreateOrganizations)

	body := map[string]string{"account_id": "acme", "kind": "organization", "name": "Acme Data"}

	rec := testutil.NewRecorder()
	h.Create(rec.ResponseRecorder, testutil.NewJSONRequest(http.MethodPost, "/accounts", body, testutil.SessionFor(plain)))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	h.Create(rec.ResponseRecorder, testutil.NewJSONRequest(http.MethodPost, "/accounts", body, testutil.SessionFor(flagged)))
	rec.AssertStatus(t, http.StatusCreated)
}

func TestCreate_Validation(t *testing.T) {
	h, _ := newHandler(t)
	session := &models.Session{IdentityID: "google:456"}

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad kind", map[string]string{"account_id": "ok-id", "kind": "robot", "name": "Bot"}},
		{"short id", map[string]string{"account_id": "ab", "kind": "individual", "name": "Ab"}},
		{"double dash", map[string]string{"account_id": "a--b", "kind": "individual", "name": "AB"}},
		{"empty name", map[string]string{"account_id": "valid-id", "kind": "individual", "name": "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.Create(rec.ResponseRecorder, testutil.NewJSONRequest(http.MethodPost, "/accounts", tc.body, session))
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestCreate_DuplicateConflict(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateIndividual(ctx, "alice")

	req := testutil.NewJSONRequest(http.MethodPost, "/accounts", map[string]string{
		"account_id": "alice",
		"kind":       "individual",
		"name":       "Imposter",
	}, &models.Session{IdentityID: "google:789"})
	rec := testutil.NewRecorder()

	h.Create(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusConflict)
}

func TestGet_HiddenFromStrangers(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateIndividual(ctx, "alice")
	bob := fixtures.CreateIndividual(ctx, "bob")

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/accounts/alice", testutil.SessionFor(alice))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec := testutil.NewRecorder()
	h.Get(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/accounts/alice", testutil.SessionFor(bob))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec = testutil.NewRecorder()
	h.Get(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestProfile_OpenReadSanitizedWrite(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateIndividual(ctx, "alice")

	// Anonymous profile read.
	req := testutil.NewRequest(http.MethodGet, "/accounts/alice/profile")
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec := testutil.NewRecorder()
	h.GetProfile(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	// Markup in the bio is stripped before storage.
	req = testutil.NewJSONRequest(http.MethodPut, "/accounts/alice/profile", map[string]string{
		"bio":      `<script>alert(1)</script>observer of tea parties`,
		"location": "Wonderland",
	}, testutil.SessionFor(alice))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec = testutil.NewRecorder()
	h.PutProfile(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	stored, err := h.Accounts.GetByID(ctx, "alice")
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if strings.Contains(stored.Profile.Bio, "<script>") {
		t.Errorf("bio not sanitized: %q", stored.Profile.Bio)
	}
	if !strings.Contains(stored.Profile.Bio, "observer of tea parties") {
		t.Errorf("bio text lost: %q", stored.Profile.Bio)
	}
}

func TestFlags_AdminOnly(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateIndividual(ctx, "alice")
	admin := fixtures.CreateIndividual(ctx, "root", models.FlagAdmin)

	body := map[string][]string{"flags": {"create_repositories"}}

	// The account itself cannot grant its own flags.
	req := testutil.NewJSONRequest(http.MethodPut, "/accounts/alice/flags", body, testutil.SessionFor(alice))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec := testutil.NewRecorder()
	h.PutFlags(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusForbidden)

	req = testutil.NewJSONRequest(http.MethodPut, "/accounts/alice/flags", body, testutil.SessionFor(admin))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec = testutil.NewRecorder()
	h.PutFlags(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNoContent)

	stored, _ := h.Accounts.GetByID(ctx, "alice")
	if !stored.HasFlag(models.FlagCreateRepositories) {
		t.Error("flag not applied")
	}
}

func TestPutFlags_IndividualsOnly(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateOrganization(ctx, "acme")
	admin := fixtures.CreateIndividual(ctx, "root", models.FlagAdmin)

	// Even an admin cannot put capability flags on an organization.
	body := map[string][]string{"flags": {"create_organizations"}}
	req := testutil.NewJSONRequest(http.MethodPut, "/accounts/acme/flags", body, testutil.SessionFor(admin))
	req = testutil.WithChiURLParam(req, "accountID", "acme")
	rec := testutil.NewRecorder()
	h.PutFlags(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusBadRequest)

	stored, err := h.Accounts.GetByID(ctx, "acme")
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if stored.HasFlag(models.FlagCreateOrganizations) {
		t.Error("flag persisted on an organization account")
	}
}

func TestDisable_ThenInvisible(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateIndividual(ctx, "alice")

	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/accounts/alice", testutil.SessionFor(alice))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec := testutil.NewRecorder()
	h.Disable(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNoContent)

	// The now-disabled principal cannot see its own record.
	disabled := alice
	disabled.Disabled = true
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/accounts/alice", testutil.SessionFor(disabled))
	req = testutil.WithChiURLParam(req, "accountID", "alice")
	rec = testutil.NewRecorder()
	h.Get(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestList_PublicDirectory(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateIndividual(ctx, "alice")
	fixtures.CreateOrganization(ctx, "acme")
	hidden := fixtures.CreateIndividual(ctx, "hidden")
	if err := h.Accounts.SetDisabled(ctx, hidden.AccountID, true); err != nil {
		t.Fatalf("disable fixture: %v", err)
	}

	rec := testutil.NewRecorder()
	h.List(rec.ResponseRecorder, testutil.NewRequest(http.MethodGet, "/accounts"))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Accounts []struct {
			AccountID string `json:"account_id"`
		} `json:"accounts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Accounts) != 2 {
		t.Fatalf("directory size: got %d, want 2", len(resp.Accounts))
	}
	for _, a := range resp.Accounts {
		if a.AccountID == "hidden" {
			t.Error("disabled account leaked into the public directory")
		}
	}
}
