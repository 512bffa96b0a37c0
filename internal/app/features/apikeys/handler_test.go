package apikeys_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mlanders/datahub/internal/app/features/apikeys"
	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	"github.com/mlanders/datahub/internal/domain/models"
	"github.com/mlanders/datahub/internal/testutil"
)

func newHandler(t *testing.T) (*apikeys.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return apikeys.NewHandler(db, uierrors.NewErrorLogger(logger), logger), testutil.NewFixtures(t, db)
}

func TestCreate_AccountWideKey(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateIndividual(ctx, "owner")
	stranger := fixtures.CreateIndividual(ctx, "stranger")

	mint := func(s *models.Session) *testutil.ResponseRecorder {
		req := testutil.NewJSONRequest(http.MethodPost, "/accounts/owner/api-keys",
			map[string]string{"name": "backup"}, s)
		req = testutil.WithChiURLParam(req, "accountID", "owner")
		rec := testutil.NewRecorder()
		h.Create(rec.ResponseRecorder, req)
		return rec
	}

	mint(testutil.SessionFor(stranger)).AssertStatus(t, http.StatusForbidden)

	rec := mint(testutil.SessionFor(owner))
	rec.AssertStatus(t, http.StatusCreated)

	var created models.APIKey
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if created.SecretAccessKey == "" {
		t.Error("create response must carry the secret")
	}
	if created.ProductID != "" {
		t.Errorf("account-wide key must not be product scoped: %q", created.ProductID)
	}
}

func TestGet_RedactedAndHidden(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateIndividual(ctx, "owner")
	stranger := fixtures.CreateIndividual(ctx, "stranger")
	key, err := h.APIKeys.Create(ctx, "owner", "", "ci", time.Time{})
	if err != nil {
		t.Fatalf("seed key: %v", err)
	}

	get := func(s *models.Session) *testutil.ResponseRecorder {
		req := testutil.NewAuthenticatedRequest(http.MethodGet, "/api-keys/"+key.AccessKeyID, s)
		req = testutil.WithChiURLParam(req, "keyID", key.AccessKeyID)
		rec := testutil.NewRecorder()
		h.Get(rec.ResponseRecorder, req)
		return rec
	}

	get(testutil.SessionFor(stranger)).AssertStatus(t, http.StatusNotFound)

	rec := get(testutil.SessionFor(owner))
	rec.AssertStatus(t, http.StatusOK)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode key: %v", err)
	}
	for _, field := range []string{"secret_access_key", "secret_hash"} {
		if _, leaked := body[field]; leaked {
			t.Errorf("response leaked %s", field)
		}
	}
}

func TestRevoke_DisablesKey(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateIndividual(ctx, "owner")
	key, err := h.APIKeys.Create(ctx, "owner", "", "ci", time.Time{})
	if err != nil {
		t.Fatalf("seed key: %v", err)
	}

	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/api-keys/"+key.AccessKeyID, testutil.SessionFor(owner))
	req = testutil.WithChiURLParam(req, "keyID", key.AccessKeyID)
	rec := testutil.NewRecorder()
	h.Revoke(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNoContent)

	stored, err := h.APIKeys.GetByID(ctx, key.AccessKeyID)
	if err != nil {
		t.Fatalf("revoked key must still exist: %v", err)
	}
	if !stored.Disabled {
		t.Error("revoke must disable the key")
	}
}
