// internal/app/features/dataconnections/handler.go
package dataconnections

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	dataconnectionstore "github.com/mlanders/datahub/internal/app/store/dataconnections"
	productstore "github.com/mlanders/datahub/internal/app/store/products"
	"github.com/mlanders/datahub/internal/app/system/auth"
	"github.com/mlanders/datahub/internal/app/system/authz"
	"github.com/mlanders/datahub/internal/app/system/gates"
	"github.com/mlanders/datahub/internal/app/system/normalize"
	"github.com/mlanders/datahub/internal/app/system/timeouts"
	"github.com/mlanders/datahub/internal/app/system/webutil"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Handler serves data connections, the admin-managed storage backends that
// product mirrors point at. Reads are redacted unless the caller may view
// credentials.
type Handler struct {
	Connections *dataconnectionstore.Store
	Products    *productstore.Store
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Connections: dataconnectionstore.New(db),
		Products:    productstore.New(db),
		ErrLog:      errLog,
		Log:         logger,
	}
}

type connectionRequest struct {
	DataConnectionID    string                       `json:"data_connection_id"`
	Name                string                       `json:"name"`
	ReadOnly            bool                         `json:"read_only"`
	AllowedVisibilities []models.ProductVisibility   `json:"allowed_visibilities,omitempty"`
	RequiredFlag        models.AccountFlag           `json:"required_flag,omitempty"`
	Details             models.DataConnectionDetails `json:"details"`
	Authentication      *models.DataConnectionAuth   `json:"authentication,omitempty"`
}

func (r *connectionRequest) validate() string {
	for _, v := range r.AllowedVisibilities {
		if !v.IsValid() {
			return "unknown visibility: " + string(v)
		}
	}
	if r.RequiredFlag != "" && !r.RequiredFlag.IsValid() {
		return "unknown flag: " + string(r.RequiredFlag)
	}
	return ""
}

// Create handles POST /data-connections.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	id, err := normalize.ID(req.DataConnectionID)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	name, err := normalize.Name(req.Name)
	if err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		uierrors.RenderBadRequest(w, msg)
		return
	}

	conn := models.DataConnection{
		DataConnectionID:    id,
		Name:                name,
		ReadOnly:            req.ReadOnly,
		AllowedVisibilities: req.AllowedVisibilities,
		RequiredFlag:        req.RequiredFlag,
		Details:             req.Details,
		Authentication:      req.Authentication,
	}
	if !gates.Authorize(w, r, &conn, authz.ActionCreateDataConnection) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Connections.Create(ctx, conn)
	if err == dataconnectionstore.ErrDuplicateConnection {
		uierrors.RenderConflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.Internal(w, "data connection create", err)
		return
	}
	// The creator is an admin, so nothing is stripped here in practice,
	// but the redaction pass keeps the invariant in one place.
	webutil.RespondJSON(w, http.StatusCreated, authz.RedactDataConnection(auth.CurrentSession(r), &created))
}

// Get handles GET /data-connections/{connectionID}. Non-admins can see a
// connection only through products that mirror it, and never credentials.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	conn, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &conn, authz.ActionGetDataConnection) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, authz.RedactDataConnection(auth.CurrentSession(r), &conn))
}

// List handles GET /data-connections. Admin only; the full inventory is
// nobody else's business.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := gates.RequireAdmin(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	conns, err := h.Connections.List(ctx)
	if err != nil {
		h.ErrLog.Internal(w, "data connection list", err)
		return
	}

	redacted := make([]models.DataConnection, 0, len(conns))
	for i := range conns {
		redacted = append(redacted, *authz.RedactDataConnection(session, &conns[i]))
	}
	webutil.RespondJSON(w, http.StatusOK, map[string][]models.DataConnection{"data_connections": redacted})
}

// Update handles PUT /data-connections/{connectionID}. Omitting
// authentication keeps the stored credentials.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		uierrors.RenderBadRequest(w, msg)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	conn, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &conn, authz.ActionPutDataConnection) {
		return
	}

	err := h.Connections.Update(ctx, conn.DataConnectionID, models.DataConnection{
		Name:                req.Name,
		ReadOnly:            req.ReadOnly,
		AllowedVisibilities: req.AllowedVisibilities,
		RequiredFlag:        req.RequiredFlag,
		Details:             req.Details,
		Authentication:      req.Authentication,
	})
	if err != nil {
		h.ErrLog.Internal(w, "data connection update", err)
		return
	}

	updated, err := h.Connections.GetByID(ctx, conn.DataConnectionID)
	if err != nil {
		h.ErrLog.Internal(w, "data connection reload", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, authz.RedactDataConnection(auth.CurrentSession(r), &updated))
}

// Delete handles DELETE /data-connections/{connectionID}. A connection
// still mirrored by any product cannot go away.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	conn, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &conn, authz.ActionDeleteDataConnection) {
		return
	}

	err := h.Connections.Delete(ctx, conn.DataConnectionID)
	if err == dataconnectionstore.ErrConnectionInUse {
		uierrors.RenderConflict(w, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.Internal(w, "data connection delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the connection and populates MirroredBy so the decision
// engine can grant membership-based reads without further I/O.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.DataConnection, bool) {
	connectionID := chi.URLParam(r, "connectionID")
	conn, err := h.Connections.GetByID(ctx, connectionID)
	if err == dataconnectionstore.ErrNotFound {
		uierrors.RenderNotFound(w, "")
		return models.DataConnection{}, false
	}
	if err != nil {
		h.ErrLog.Internal(w, "data connection load", err)
		return models.DataConnection{}, false
	}

	mirroring, err := h.Products.ListByDataConnection(ctx, conn.DataConnectionID)
	if err != nil {
		h.ErrLog.Internal(w, "data connection mirrors", err)
		return models.DataConnection{}, false
	}
	conn.MirroredBy = make([]models.ProductRef, 0, len(mirroring))
	for i := range mirroring {
		conn.MirroredBy = append(conn.MirroredBy, mirroring[i].Ref())
	}
	return conn, true
}
