// internal/app/features/accounts/handler.go
package accounts

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	accountstore "github.com/mlanders/datahub/internal/app/store/accounts"
	apikeystore "github.com/mlanders/datahub/internal/app/store/apikeys"
	membershipstore "github.com/mlanders/datahub/internal/app/store/memberships"
	"github.com/mlanders/datahub/internal/app/system/auth"
	"github.com/mlanders/datahub/internal/app/system/authz"
	"github.com/mlanders/datahub/internal/app/system/gates"
	"github.com/mlanders/datahub/internal/app/system/normalize"
	"github.com/mlanders/datahub/internal/app/system/timeouts"
	"github.com/mlanders/datahub/internal/app/system/webutil"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Handler serves the account endpoints: registration, management,
// capability flags, public profiles, and the account-scoped membership and
// API key listings.
type Handler struct {
	Accounts    *accountstore.Store
	Memberships *membershipstore.Store
	APIKeys     *apikeystore.Store
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger

	// sanitizer strips markup from profile fields before storage.
	sanitizer *bluemonday.Policy
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts:    accountstore.New(db),
		Memberships: membershipstore.New(db),
		APIKeys:     apikeystore.New(db),
		ErrLog:      errLog,
		Log:         logger,
		sanitizer:   bluemonday.StrictPolicy(),
	}
}

type createAccountRequest struct {
	AccountID string             `json:"account_id"`
	Kind      models.AccountKind `json:"kind"`
	Name      string             `json:"name"`
}

// Create handles POST /accounts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if !req.Kind.IsValid() {
		uierrors.RenderBadRequest(w, "unknown account kind")
		return
	}
	accountID, err := normalize.ID(req.AccountID)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	name, err := normalize.Name(req.Name)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}

	a := models.Account{
		AccountID: accountID,
		Kind:      req.Kind,
		Name:      name,
	}
	if !gates.Authorize(w, r, &a, authz.ActionCreateAccount) {
		return
	}

	// An individual account is bound to the signed-in identity, so signup
	// needs an identity even though the policy check above does not.
	if req.Kind == models.AccountKindIndividual {
		session := auth.CurrentSession(r)
		if session.IsAnonymous() {
			uierrors.RenderUnauthorized(w, "sign in before creating an account")
			return
		}
		a.IdentityID = session.IdentityID
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Accounts.Create(ctx, a)
	if err == accountstore.ErrDuplicateAccount {
		uierrors.RenderConflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.Internal(w, "account create", err)
		return
	}
	webutil.RespondJSON(w, http.StatusCreated, created)
}

// Get handles GET /accounts/{accountID}. The full record is visible only
// to the account itself, its organization maintainers, and admins; others
// get a 404 so probing IDs reveals nothing beyond the public profile.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &a, authz.ActionGetAccount) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, a)
}

type updateAccountRequest struct {
	Name string `json:"name"`
}

// Update handles PUT /accounts/{accountID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	name, err := normalize.Name(req.Name)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionPutAccount) {
		return
	}

	err = h.Accounts.Update(ctx, a.AccountID, models.Account{Name: name})
	if err == accountstore.ErrDuplicateAccount {
		uierrors.RenderConflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.Internal(w, "account update", err)
		return
	}

	updated, err := h.Accounts.GetByID(ctx, a.AccountID)
	if err != nil {
		h.ErrLog.Internal(w, "account reload", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, updated)
}

// Disable handles DELETE /accounts/{accountID}. Accounts are disabled, not
// deleted, and an admin can re-enable them later.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, true)
}

// Enable handles POST /accounts/{accountID}/enable. Only admins get past
// the gate here: the disabled-target check blocks everyone else.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, false)
}

func (h *Handler) setDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionDisableAccount) {
		return
	}

	if err := h.Accounts.SetDisabled(ctx, a.AccountID, disabled); err != nil {
		h.ErrLog.Internal(w, "account disable", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlags handles GET /accounts/{accountID}/flags.
func (h *Handler) GetFlags(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionGetAccountFlags) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.AccountFlag{"flags": a.Flags})
}

type putFlagsRequest struct {
	Flags []models.AccountFlag `json:"flags"`
}

// PutFlags handles PUT /accounts/{accountID}/flags.
func (h *Handler) PutFlags(w http.ResponseWriter, r *http.Request) {
	var req putFlagsRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	for _, f := range req.Flags {
		if !f.IsValid() {
			uierrors.RenderBadRequest(w, "unknown flag: "+string(f))
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	// Capability flags belong to individuals; organizations and service
	// accounts never carry them.
	if a.Kind != models.AccountKindIndividual {
		uierrors.RenderBadRequest(w, "flags are assignable only to individual accounts")
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionPutAccountFlags) {
		return
	}

	if err := h.Accounts.SetFlags(ctx, a.AccountID, req.Flags); err != nil {
		h.ErrLog.Internal(w, "account flags update", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile handles GET /accounts/{accountID}/profile. Open to everyone,
// including anonymous callers; disabled accounts still 404 for non-admins.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &a, authz.ActionGetAccountProfile) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string]any{
		"account_id": a.AccountID,
		"kind":       a.Kind,
		"name":       a.Name,
		"profile":    a.Profile,
	})
}

type putProfileRequest struct {
	Bio      string `json:"bio"`
	Location string `json:"location"`
	URL      string `json:"url"`
}

// PutProfile handles PUT /accounts/{accountID}/profile. Fields pass
// through the HTML sanitizer so stored profiles are plain text.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req putProfileRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionPutAccountProfile) {
		return
	}

	profile := models.AccountProfile{
		Bio:      h.sanitizer.Sanitize(req.Bio),
		Location: h.sanitizer.Sanitize(req.Location),
		URL:      h.sanitizer.Sanitize(req.URL),
	}
	if err := h.Accounts.UpdateProfile(ctx, a.AccountID, profile); err != nil {
		h.ErrLog.Internal(w, "account profile update", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, profile)
}

// ListMemberships handles GET /accounts/{accountID}/memberships. For an
// organization this is every grant the org has issued, across all scopes;
// for an individual it is the account's own memberships.
func (h *Handler) ListMemberships(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionListAccountMemberships) {
		return
	}

	var memberships []models.Membership
	var err error
	if a.Kind == models.AccountKindOrganization {
		memberships, err = h.Memberships.ListByOrganization(ctx, a.AccountID, false)
	} else {
		memberships, err = h.Memberships.ListByAccount(ctx, a.AccountID, false)
	}
	if err != nil {
		h.ErrLog.Internal(w, "membership list", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.Membership{"memberships": memberships})
}

// ListAPIKeys handles GET /accounts/{accountID}/api-keys. Always redacted;
// secrets exist only in create responses.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	a, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &a, authz.ActionListAccountAPIKeys) {
		return
	}

	keys, err := h.APIKeys.ListByAccount(ctx, a.AccountID)
	if err != nil {
		h.ErrLog.Internal(w, "api key list", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.RedactedAPIKey{
		"api_keys": authz.RedactAPIKeys(keys),
	})
}

type accountSummary struct {
	AccountID string                `json:"account_id"`
	Kind      models.AccountKind    `json:"kind"`
	Name      string                `json:"name"`
	Profile   models.AccountProfile `json:"profile"`
}

type listAccountsResponse struct {
	Accounts []accountSummary `json:"accounts"`
	Next     string           `json:"next,omitempty"`
}

const listPageSize = 50

// List handles GET /accounts: a public directory of enabled accounts in
// summary form. Admins additionally see disabled accounts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	session := auth.CurrentSession(r)
	kind := models.AccountKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.IsValid() {
		uierrors.RenderBadRequest(w, "unknown account kind")
		return
	}

	after, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		uierrors.RenderBadRequest(w, "bad cursor")
		return
	}

	accounts, err := h.Accounts.List(ctx, kind, session.IsAdmin(), after, listPageSize)
	if err != nil {
		h.ErrLog.Internal(w, "account list", err)
		return
	}

	resp := listAccountsResponse{Accounts: make([]accountSummary, 0, len(accounts))}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, accountSummary{
			AccountID: a.AccountID,
			Kind:      a.Kind,
			Name:      a.Name,
			Profile:   a.Profile,
		})
	}
	if len(accounts) == listPageSize {
		resp.Next = encodeCursor(accounts[len(accounts)-1].NameCI)
	}
	webutil.RespondJSON(w, http.StatusOK, resp)
}

// load fetches the account named in the URL, rendering 404 on a miss.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	accountID := chi.URLParam(r, "accountID")
	a, err := h.Accounts.GetByID(ctx, accountID)
	if err == accountstore.ErrNotFound {
		uierrors.RenderNotFound(w, "")
		return models.Account{}, false
	}
	if err != nil {
		h.ErrLog.Internal(w, "account load", err)
		return models.Account{}, false
	}
	return a, true
}

// Cursors are opaque to clients; today they wrap the last folded name.
func encodeCursor(nameCI string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(nameCI))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
