package dataconnections_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/mlanders/datahub/internal/app/features/dataconnections"
	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	"github.com/mlanders/datahub/internal/domain/models"
	"github.com/mlanders/datahub/internal/testutil"
)

func newHandler(t *testing.T) (*dataconnections.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return dataconnections.NewHandler(db, uierrors.NewErrorLogger(logger), logger), testutil.NewFixtures(t, db)
}

func connRequest(method, target string, body any, s *models.Session, connectionID string) *http.Request {
	var r *http.Request
	if body != nil {
		r = testutil.NewJSONRequest(method, target, body, s)
	} else if s != nil {
		r = testutil.NewAuthenticatedRequest(method, target, s)
	} else {
		r = testutil.NewRequest(method, target)
	}
	if connectionID != "" {
		r = testutil.WithChiURLParam(r, "connectionID", connectionID)
	}
	return r
}

func TestCreate_AdminOnly(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateIndividual(ctx, "root", models.FlagAdmin)
	plain := fixtures.CreateIndividual(ctx, "plain")

	body := map[string]any{
		"data_connection_id": "primary-s3",
		"name":               "Primary S3",
		"details": map[string]string{
			"provider": "s3", "bucket": "datahub", "region": "us-east-1", "base_prefix": "data/",
		},
		"authentication": map[string]string{
			"type": "s3_access_key", "access_key_id": "AKIA", "secret_access_key": "shh",
		},
	}

	rec := testutil.NewRecorder()
	h.Create(rec.ResponseRecorder, connRequest(http.MethodPost, "/data-connections", body, testutil.SessionFor(plain), ""))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	h.Create(rec.ResponseRecorder, connRequest(http.MethodPost, "/data-connections", body, testutil.SessionFor(admin), ""))
	rec.AssertStatus(t, http.StatusCreated)
}

func TestGet_MemberSeesRedacted(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateIndividual(ctx, "root", models.FlagAdmin)
	member := fixtures.CreateIndividual(ctx, "member")
	outsider := fixtures.CreateIndividual(ctx, "outsider")
	fixtures.CreateOrganization(ctx, "acme")
	fixtures.CreateDataConnection(ctx, "dc1")

	// A restricted product mirrors dc1; membership on it grants visibility.
	p := fixtures.CreateProduct(ctx, "acme", "climate", models.VisibilityRestricted)
	if err := h.Products.Update(ctx, p.AccountID, p.ProductID, models.Product{
		Mirrors:       map[string]models.ProductMirror{"main": {DataConnectionID: "dc1", Prefix: "p/"}},
		PrimaryMirror: "main",
	}); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}
	grant := fixtures.CreateMembership(ctx, "member", "acme", "climate", models.RoleReadData, models.MembershipMember)

	get := func(s *models.Session) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		h.Get(rec.ResponseRecorder, connRequest(http.MethodGet, "/data-connections/dc1", nil, s, "dc1"))
		return rec
	}

	get(testutil.SessionFor(outsider)).AssertStatus(t, http.StatusNotFound)

	rec := get(testutil.SessionFor(member, grant))
	rec.AssertStatus(t, http.StatusOK)
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode connection: %v", err)
	}
	if _, leaked := body["authentication"]; leaked {
		t.Error("credentials leaked to a non-admin")
	}

	rec = get(testutil.SessionFor(admin))
	rec.AssertStatus(t, http.StatusOK)
	body = map[string]any{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode connection: %v", err)
	}
	if _, ok := body["authentication"]; !ok {
		t.Error("admin read must include credentials")
	}
}

func TestDelete_InUseConflicts(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateIndividual(ctx, "root", models.FlagAdmin)
	fixtures.CreateDataConnection(ctx, "dc1")

	p := fixtures.CreateProduct(ctx, "acme", "climate", models.VisibilityPublic)
	if err := h.Products.Update(ctx, p.AccountID, p.ProductID, models.Product{
		Mirrors:       map[string]models.ProductMirror{"main": {DataConnectionID: "dc1", Prefix: "p/"}},
		PrimaryMirror: "main",
	}); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	rec := testutil.NewRecorder()
	h.Delete(rec.ResponseRecorder, connRequest(http.MethodDelete, "/data-connections/dc1", nil, testutil.SessionFor(admin), "dc1"))
	rec.AssertStatus(t, http.StatusConflict)

	// Drop the mirror; the delete goes through.
	if err := h.Products.Update(ctx, p.AccountID, p.ProductID, models.Product{
		Mirrors: map[string]models.ProductMirror{},
	}); err != nil {
		t.Fatalf("clear mirror: %v", err)
	}
	rec = testutil.NewRecorder()
	h.Delete(rec.ResponseRecorder, connRequest(http.MethodDelete, "/data-connections/dc1", nil, testutil.SessionFor(admin), "dc1"))
	rec.AssertStatus(t, http.StatusNoContent)
}

func TestUpdate_KeepsCredentialsWhenOmitted(t *testing.T) {
	h, fixtures := newHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateIndividual(ctx, "root", models.FlagAdmin)
	fixtures.CreateDataConnection(ctx, "dc1")

	rec := testutil.NewRecorder()
	h.Update(rec.ResponseRecorder, connRequest(http.MethodPut, "/data-connections/dc1", map[string]any{
		"name":      "renamed",
		"read_only": true,
	}, testutil.SessionFor(admin), "dc1"))
	rec.AssertStatus(t, http.StatusOK)

	stored, err := h.Connections.GetByID(ctx, "dc1")
	if err != nil {
		t.Fatalf("reload connection: %v", err)
	}
	if stored.Name != "renamed" || !stored.ReadOnly {
		t.Errorf("update not applied: %+v", stored)
	}
	if stored.Authentication == nil {
		t.Error("credentials must survive an update that omits them")
	}
}
