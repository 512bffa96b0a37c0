// internal/app/features/apikeys/handler.go
package apikeys

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	apikeystore "github.com/mlanders/datahub/internal/app/store/apikeys"
	"github.com/mlanders/datahub/internal/app/system/authz"
	"github.com/mlanders/datahub/internal/app/system/gates"
	"github.com/mlanders/datahub/internal/app/system/normalize"
	"github.com/mlanders/datahub/internal/app/system/timeouts"
	"github.com/mlanders/datahub/internal/app/system/webutil"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Handler serves account-wide API keys. Product-scoped keys are minted
// under the repository subtree; lookup and revocation for both land here.
type Handler struct {
	APIKeys *apikeystore.Store
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		APIKeys: apikeystore.New(db),
		ErrLog:  errLog,
		Log:     logger,
	}
}

type createKeyRequest struct {
	Name    string    `json:"name"`
	Expires time.Time `json:"expires,omitempty"`
}

// Create handles POST /accounts/{accountID}/api-keys: an account-wide key.
// The response is the only place the secret ever appears.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req createKeyRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	name, err := normalize.Name(req.Name)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if !req.Expires.IsZero() && req.Expires.Before(time.Now().UTC()) {
		uierrors.RenderBadRequest(w, "expiry is in the past")
		return
	}

	prospective := models.APIKey{AccountID: accountID}
	if !gates.Authorize(w, r, &prospective, authz.ActionCreateAPIKey) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	key, err := h.APIKeys.Create(ctx, accountID, "", name, req.Expires)
	if err != nil {
		h.ErrLog.Internal(w, "api key create", err)
		return
	}
	webutil.RespondJSON(w, http.StatusCreated, key)
}

// Get handles GET /api-keys/{keyID}. Redacted, and hidden from principals
// without key management rights on the owning scope.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	key, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &key, authz.ActionGetAPIKey) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, authz.RedactAPIKey(&key))
}

// Revoke handles DELETE /api-keys/{keyID}. Keys are disabled, not deleted,
// so the audit trail keeps the row.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	key, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &key, authz.ActionRevokeAPIKey) {
		return
	}

	if err := h.APIKeys.Revoke(ctx, key.AccessKeyID); err != nil {
		h.ErrLog.Internal(w, "api key revoke", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.APIKey, bool) {
	keyID := chi.URLParam(r, "keyID")
	key, err := h.APIKeys.GetByID(ctx, keyID)
	if err == apikeystore.ErrNotFound {
		uierrors.RenderNotFound(w, "")
		return models.APIKey{}, false
	}
	if err != nil {
		h.ErrLog.Internal(w, "api key load", err)
		return models.APIKey{}, false
	}
	return key, true
}
