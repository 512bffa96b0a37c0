// Package gates turns authorization decisions into HTTP responses.
//
// Handlers load the resource, then call one gate. A failed gate writes the
// right error payload and returns false; the handler just returns. The
// status split follows who the caller is, not what they asked for: an
// anonymous caller gets 401, an authenticated one gets 403.
package gates

import (
	"net/http"

	uierrors "github.com/mlanders/datahub/internal/app/features/errors"
	"github.com/mlanders/datahub/internal/app/system/auth"
	"github.com/mlanders/datahub/internal/app/system/authz"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Authorize checks the decision engine for (session, resource, action) and
// renders the appropriate error when it denies. Returns true to proceed.
func Authorize(w http.ResponseWriter, r *http.Request, resource any, action authz.Action) bool {
	session := auth.CurrentSession(r)
	if authz.IsAuthorized(session, resource, action) {
		return true
	}
	if session.IsAnonymous() {
		uierrors.RenderUnauthorized(w, "")
		return false
	}
	uierrors.RenderForbidden(w, "")
	return false
}

// AuthorizeHidden is Authorize for resources whose existence should not
// leak: a deny renders 404 instead of 403 so probing an ID reveals nothing.
func AuthorizeHidden(w http.ResponseWriter, r *http.Request, resource any, action authz.Action) bool {
	session := auth.CurrentSession(r)
	if authz.IsAuthorized(session, resource, action) {
		return true
	}
	uierrors.RenderNotFound(w, "")
	return false
}

// RequireAccount ensures the caller is signed in with a resolved account.
// Used for operations with no target resource to authorize against yet,
// like listings filtered to the caller.
func RequireAccount(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	session := auth.CurrentSession(r)
	if session.IsAnonymous() {
		uierrors.RenderUnauthorized(w, "")
		return nil, false
	}
	if !session.HasAccount() {
		uierrors.RenderForbidden(w, "no account for this identity")
		return nil, false
	}
	if session.Disabled() {
		uierrors.RenderForbidden(w, "")
		return nil, false
	}
	return session, true
}

// RequireAdmin ensures the caller is an enabled admin.
func RequireAdmin(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	session, ok := RequireAccount(w, r)
	if !ok {
		return nil, false
	}
	if !session.IsAdmin() {
		uierrors.RenderForbidden(w, "")
		return nil, false
	}
	return session, true
}
