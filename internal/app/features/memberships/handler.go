// internal/app/features/memberships/handler.go
package memberships

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	membershipstore "github.com/mlanders/datahub/internal/app/store/memberships"
	"github.com/mlanders/datahub/internal/app/system/authz"
	"github.com/mlanders/datahub/internal/app/system/gates"
	"github.com/mlanders/datahub/internal/app/system/timeouts"
	"github.com/mlanders/datahub/internal/app/system/webutil"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Handler serves the membership lifecycle: invite, accept, reject, revoke,
// reinvite, and role changes. State rules live in the store; who may drive
// each transition is decided here against the policy engine.
type Handler struct {
	Memberships *membershipstore.Store
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Memberships: membershipstore.New(db),
		ErrLog:      errLog,
		Log:         logger,
	}
}

type inviteRequest struct {
	AccountID           string                `json:"account_id"`
	MembershipAccountID string                `json:"membership_account_id"`
	ProductID           string                `json:"product_id,omitempty"`
	Role                models.MembershipRole `json:"role"`
}

// Invite handles POST /memberships. The grantor must hold maintainers or
// better in the scope being granted.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if !req.Role.IsValid() {
		uierrors.RenderBadRequest(w, "unknown role")
		return
	}
	if req.AccountID == "" || req.MembershipAccountID == "" {
		uierrors.RenderBadRequest(w, "account_id and membership_account_id are required")
		return
	}

	prospective := models.Membership{
		AccountID:           req.AccountID,
		MembershipAccountID: req.MembershipAccountID,
		ProductID:           req.ProductID,
		Role:                req.Role,
	}
	if !gates.Authorize(w, r, &prospective, authz.ActionInviteMembership) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	m, err := h.Memberships.Invite(ctx, req.AccountID, req.MembershipAccountID, req.ProductID, req.Role)
	if err != nil {
		h.renderStoreError(w, "membership invite", err)
		return
	}
	webutil.RespondJSON(w, http.StatusCreated, m)
}

// Get handles GET /memberships/{membershipID}. Visible to the member, the
// granting scope's maintainers, and admins; 404 for everyone else.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	m, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.AuthorizeHidden(w, r, &m, authz.ActionGetMembership) {
		return
	}
	webutil.RespondJSON(w, http.StatusOK, m)
}

// Accept handles POST /memberships/{membershipID}/accept. Only the invited
// member may accept.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, authz.ActionAcceptMembership, h.Memberships.Accept)
}

// Reject handles POST /memberships/{membershipID}/reject. Only the invited
// member may reject; the result is the same revoked state a revoke leaves.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, authz.ActionRejectMembership, h.Memberships.Reject)
}

// Revoke handles POST /memberships/{membershipID}/revoke, driven by the
// granting scope's maintainers.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, authz.ActionRevokeMembership, h.Memberships.Revoke)
}

// Reinvite handles POST /memberships/{membershipID}/reinvite: a revoked
// membership goes back to invited with its role and scope untouched (role
// changes go through PUT /role). Guarded by the same privilege as a fresh
// invite.
func (h *Handler) Reinvite(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, authz.ActionInviteMembership, h.Memberships.Reinvite)
}

type updateRoleRequest struct {
	Role models.MembershipRole `json:"role"`
}

// UpdateRole handles PUT /memberships/{membershipID}/role.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		uierrors.RenderBadRequest(w, err.Error())
		return
	}
	if !req.Role.IsValid() {
		uierrors.RenderBadRequest(w, "unknown role")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	m, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &m, authz.ActionUpdateMembershipRole) {
		return
	}

	updated, err := h.Memberships.UpdateRole(ctx, m.MembershipID, req.Role)
	if err != nil {
		h.renderStoreError(w, "membership role update", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action authz.Action,
	apply func(context.Context, string) (models.Membership, error)) {

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	m, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !gates.Authorize(w, r, &m, action) {
		return
	}

	updated, err := apply(ctx, m.MembershipID)
	if err != nil {
		h.renderStoreError(w, "membership transition", err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Membership, bool) {
	membershipID := chi.URLParam(r, "membershipID")
	m, err := h.Memberships.GetByID(ctx, membershipID)
	if err == membershipstore.ErrNotFound {
		uierrors.RenderNotFound(w, "")
		return models.Membership{}, false
	}
	if err != nil {
		h.ErrLog.Internal(w, "membership load", err)
		return models.Membership{}, false
	}
	return m, true
}

func (h *Handler) renderStoreError(w http.ResponseWriter, op string, err error) {
	switch err {
	case membershipstore.ErrNotFound:
		uierrors.RenderNotFound(w, "")
	case membershipstore.ErrDuplicateActiveMembership, membershipstore.ErrIllegalTransition:
		uierrors.RenderConflict(w, err.Error())
	case membershipstore.ErrMemberNotIndividual, membershipstore.ErrGrantorNotOrganization:
		uierrors.RenderBadRequest(w, err.Error())
	default:
		h.ErrLog.Internal(w, op, err)
	}
}
