// internal/app/features/products/handler.go
package products

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	apikeystore "github.com/mlanders/datahub/internal/app/store/apikeys"
	dataconnectionstore "github.com/mlanders/datahub/internal/app/store/dataconnections"
	membershipstore "github.com/mlanders/datahub/internal/app/store/memberships"
	productstore "github.com/mlanders/datahub/internal/app/store/products"
	"github.com/mlanders/datahub/internal/app/system/auth"
	"github.com/mlanders/datahub/internal/app/system/authz"
	"github.com/mlanders/datahub/internal/app/system/gates"
	"github.com/mlanders/datahub/internal/app/system/normalize"
	"github.com/mlanders/datahub/internal/app/system/timeouts"
	"github.com/mlanders/datahub/internal/app/system/webutil"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Handler serves repositories: the account-scoped CRUD surface, the public
// catalog, and the data-plane grant endpoints that hand out mirror
// locations.
type Handler struct {
	Products    *productstore.Store
	Connections *dataconnectionstore.Store
	Memberships *membershipstore.Store
	APIKeys     *apikeystore.Store
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Products:    productstore.New(db),
		Connections: dataconnectionstore.New(db),
		Memberships: membershipstore.New(db),
		APIKeys:     apikeystore.New(db),
		ErrLog:      errLog,
		Log:         logger,
	}
}

type productRequest struct {
	ProductID     string                          `json:"product_id"`
	Title         string                          `json:"title"`
	Visibility    models.ProductVisibility        `json:"visibility"`
	Mirrors       map[string]models.ProductMirror `json:"mirrors,omitempty"`
	PrimaryMirror string                          `json:"primary_mirror,omitempty"`
}

// Create handles POST /accounts/{accountID}/repositories.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req productRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	productID, err := normalize.ID(req.ProductID)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	title, err := normalize.Name(req.Title)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if !req.Visibility.IsValid() {
		uierrors.RenderBadRequest(w, "unknown visibility")
		return
	}

	p := models.Product{
		AccountID:     accountID,
		ProductID:     productID,
		Title:         title,
		Visibility:    req.Visibility,
		Mirrors:       req.Mirrors,
		PrimaryMirror: req.PrimaryMirror,
	}
	if !gates.Authorize(w, r, &p, authz.ActionCreateRepository) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.validateMirrors(ctx, w, r, &p) {
		return
	}

	created, err := h.Products.Create(ctx, p)
	if err == productstore.ErrDuplicateProduct {
		uierrors.RenderConflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.Internal(w, "repository create", err)
		return
	}
	webutil.RespondJSON(w, http.StatusCreated, created)
}

// Get handles GET /accounts/{accountID}/repositories/{productID}.
// Restricted repositories 404 for principals without access.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &p, authz.ActionGetRepository) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, p)
}

// Update handles PUT /accounts/{accountID}/repositories/{productID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if req.Visibility != "" && !req.Visibility.IsValid() {
		uierrors.RenderBadRequest(w, "unknown visibility")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &p, authz.ActionPutRepository) {
		return
	}

	changes := models.Product{
		AccountID:     p.AccountID,
		ProductID:     p.ProductID,
		Title:         req.Title,
		Visibility:    req.Visibility,
		Mirrors:       req.Mirrors,
		PrimaryMirror: req.PrimaryMirror,
	}
	if req.Mirrors != nil {
		// Revalidate against the visibility the repository will have after
		// the update.
		effective := changes
		if effective.Visibility == "" {
			effective.Visibility = p.Visibility
		}
		if !h.validateMirrors(ctx, w, r, &effective) {
			return
		}
	}

	if err := h.Products.Update(ctx, p.AccountID, p.ProductID, changes); err != nil {
		h.ErrLog.Internal(w, "repository update", err)
		return
	}

	updated, err := h.Products.Get(ctx, p.AccountID, p.ProductID)
	if err != nil {
		h.ErrLog.Internal(w, "repository reload", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, updated)
}

// Disable handles DELETE /accounts/{accountID}/repositories/{productID}.
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, true)
}

// Enable handles POST .../repositories/{productID}/enable.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setDisabled(w, r, false)
}

func (h *Handler) setDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &p, authz.ActionDisableRepository) {
		return
	}

	if err := h.Products.SetDisabled(ctx, p.AccountID, p.ProductID, disabled); err != nil {
		h.ErrLog.Internal(w, "repository disable", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type featureRequest struct {
	Featured bool `json:"featured"`
}

// SetFeatured handles PUT .../repositories/{productID}/featured. Curating
// the featured shelf is an admin concern.
func (h *Handler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	if _, ok := gates.RequireAdmin(w, r); !ok {
		return
	}

	var req featureRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if err := h.Products.SetFeatured(ctx, p.AccountID, p.ProductID, req.Featured); err != nil {
		h.ErrLog.Internal(w, "repository feature", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByAccount handles GET /accounts/{accountID}/repositories. The store
// returns everything enabled; visibility is filtered per item against the
// caller, so an org member sees restricted repositories a stranger won't.
func (h *Handler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	accountID := chi.URLParam(r, "accountID")
	session := auth.CurrentSession(r)

	products, err := h.Products.ListByAccount(ctx, accountID, session.IsAdmin())
	if err != nil {
		h.ErrLog.Internal(w, "repository list", err)
		return
	}

	visible := make([]models.Product, 0, len(products))
	for i := range products {
		if authz.IsAuthorized(session, &products[i], authz.ActionGetRepository) {
			visible = append(visible, products[i])
		}
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.Product{"repositories": visible})
}

// Catalog handles GET /repositories: the public, paginated directory.
// Only public, enabled repositories appear here.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	after, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		uierrors.RenderBadRequest(w, "bad cursor")
		return
	}

	const pageSize = 50
	products, err := h.Products.ListPublic(ctx, after, pageSize)
	if err != nil {
		h.ErrLog.Internal(w, "repository catalog", err)
		return
	}

	next := ""
	if len(products) == pageSize {
		next = encodeCursor(products[len(products)-1].TitleCI)
	}
	webutil.RespondJSON(w, http.StatusOK, map[string]any{
		"repositories": products,
		"next":         next,
	})
}

// mirrorGrant is what data-plane callers get instead of raw credentials:
// enough to address the data through the platform's access layer.
type mirrorGrant struct {
	Mirror           string                     `json:"mirror"`
	DataConnectionID string                     `json:"data_connection_id"`
	Provider         models.DataProvider        `json:"provider"`
	Bucket           string                     `json:"bucket,omitempty"`
	Container        string                     `json:"container,omitempty"`
	Region           string                     `json:"region"`
	Prefix           string                     `json:"prefix"`
	Mode             string                     `json:"mode"`
}

// ReadData handles GET .../repositories/{productID}/data. A successful
// call returns the location of the requested mirror (default: primary).
func (h *Handler) ReadData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &p, authz.ActionReadRepositoryData) {
		return
	}
	h.renderGrant(ctx, w, r, &p, r.URL.Query().Get("mirror"), "read")
}

// WriteData handles PUT .../repositories/{productID}/data. Writes always
// target the primary mirror, and the caller must be allowed to use the
// backing connection (which denies read-only connections).
func (h *Handler) WriteData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &p, authz.ActionWriteRepositoryData) {
		return
	}

	mirrorName := p.PrimaryMirror
	mirror, ok2 := p.Mirrors[mirrorName]
	if !ok2 {
		uierrors.RenderConflict(w, "repository has no primary mirror")
		return
	}
	conn, err := h.Connections.GetByID(ctx, mirror.DataConnectionID)
	if err != nil {
		// A dangling mirror reference is a data integrity problem, not a
		// caller mistake.
		h.ErrLog.Internal(w, "repository write grant", err)
		return
	}
	if !gates.Authorize(w, r, &conn, authz.ActionUseDataConnection) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, grantFor(mirrorName, mirror, &conn, "write"))
}

// ListMemberships handles GET .../repositories/{productID}/memberships:
// the product-scoped grants on an organization repository.
func (h *Handler) ListMemberships(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &p, authz.ActionListRepositoryMemberships) {
		return
	}

	memberships, err := h.Memberships.ListByProduct(ctx, p.AccountID, p.ProductID, false)
	if err != nil {
		h.ErrLog.Internal(w, "repository membership list", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.Membership{"memberships": memberships})
}

// ListAPIKeys handles GET .../repositories/{productID}/api-keys.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &p, authz.ActionListRepositoryAPIKeys) {
		return
	}

	keys, err := h.APIKeys.ListByProduct(ctx, p.AccountID, p.ProductID)
	if err != nil {
		h.ErrLog.Internal(w, "repository api key list", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.RedactedAPIKey{
		"api_keys": authz.RedactAPIKeys(keys),
	})
}

type createKeyRequest struct {
	Name    string    `json:"name"`
	Expires time.Time `json:"expires,omitempty"`
}

// CreateAPIKey handles POST .../repositories/{productID}/api-keys. The
// response carries the secret; it is never retrievable again.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	prospective := models.APIKey{AccountID: p.AccountID, ProductID: p.ProductID}
	if !gates.Authorize(w, r, &prospective, authz.ActionCreateAPIKey) {
		return
	}

	key, err := h.APIKeys.Create(ctx, p.AccountID, p.ProductID, name, req.Expires)
	if err != nil {
		h.ErrLog.Internal(w, "api key create", err)
		return
	}
	webutil.RespondJSON(w, http.StatusCreated, key)
}

// validateMirrors checks every mirror against its backing connection: the
// connection must exist, the caller must be allowed to use it, and the
// connection must accept the repository's visibility. It also requires a
// valid primary when mirrors are present. Renders the error and returns
// false on failure.
func (h *Handler) validateMirrors(ctx context.Context, w http.ResponseWriter, r *http.Request, p *models.Product) bool {
	if len(p.Mirrors) == 0 {
		return true
	}
	if _, ok := p.Mirrors[p.PrimaryMirror]; !ok {
		uierrors.RenderBadRequest(w, "primary_mirror must name one of the mirrors")
		return false
	}
	for name, m := range p.Mirrors {
		conn, err := h.Connections.GetByID(ctx, m.DataConnectionID)
		if err == dataconnectionstore.ErrNotFound {
			uierrors.RenderBadRequest(w, "unknown data connection for mirror "+name)
			return false
		}
		if err != nil {
			h.ErrLog.Internal(w, "mirror validation", err)
			return false
		}
		if !gates.Authorize(w, r, &conn, authz.ActionUseDataConnection) {
			return false
		}
		if !conn.AllowsVisibility(p.Visibility) {
			uierrors.RenderBadRequest(w, "connection "+conn.DataConnectionID+" does not accept "+string(p.Visibility)+" repositories")
			return false
		}
	}
	return true
}

func (h *Handler) renderGrant(ctx context.Context, w http.ResponseWriter, r *http.Request, p *models.Product, mirrorName, mode string) {
	if mirrorName == "" {
		mirrorName = p.PrimaryMirror
	}
	mirror, ok := p.Mirrors[mirrorName]
	if !ok {
		uierrors.RenderNotFound(w, "no such mirror")
		return
	}
	conn, err := h.Connections.GetByID(ctx, mirror.DataConnectionID)
	if err != nil {
		h.ErrLog.Internal(w, "repository read grant", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, grantFor(mirrorName, mirror, &conn, mode))
}

func grantFor(name string, m models.ProductMirror, conn *models.DataConnection, mode string) mirrorGrant {
	return mirrorGrant{
		Mirror:           name,
		DataConnectionID: conn.DataConnectionID,
		Provider:         conn.Details.Provider,
		Bucket:           conn.Details.Bucket,
		Container:        conn.Details.Container,
		Region:           conn.Details.Region,
		Prefix:           conn.Details.BasePrefix + m.Prefix,
		Mode:             mode,
	}
}

// Cursors are opaque to clients; today they wrap the last folded title.
func encodeCursor(titleCI string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(titleCI))
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

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Product, bool) {
	accountID := chi.URLParam(r, "accountID")
	productID := chi.URLParam(r, "productID")
	p, err := h.Products.Get(ctx, accountID, productID)
	if err == productstore.ErrNotFound {
		uierrors.RenderNotFound(w, "")
		return models.Product{}, false
	}
	if err != nil {
		h.ErrLog.Internal(w, "repository load", err)
		return models.Product{}, false
	}
	return p, true
}
