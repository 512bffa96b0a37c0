// internal/app/system/authz/authz.go

// Package authz is the authorization decision engine. IsAuthorized is pure:
// it reads only its arguments, performs no I/O, and returns a plain allow or
// deny for every (session, resource, action) triple. Unknown actions,
// mismatched resource types, and nil resources all deny.
//
// Evaluation order, fixed for every action:
//
//  1. a disabled principal is denied everything, admin or not
//  2. an (enabled) admin principal is allowed everything
//  3. a disabled target denies all actions except the disable actions
//     themselves, so admins are not the only ones who can see the deny
//     and owners can still be walked through re-enable flows
//  4. the per-action rule decides
//
// Callers load the resource first and authorize second; a missing resource
// is the caller's not-found, never an authz concern.
package authz

import (
	"github.com/mlanders/datahub/internal/domain/models"
)

// IsAuthorized reports whether the session's principal may perform action on
// resource. A nil session is the anonymous principal. A nil resource denies.
func IsAuthorized(session *models.Session, resource any, action Action) bool {
	if resource == nil {
		return false
	}
	if session.Disabled() {
		return false
	}
	if session.IsAdmin() {
		return true
	}
	if targetDisabled(resource) && action != ActionDisableAccount && action != ActionDisableRepository {
		return false
	}

	switch action {
	case ActionCreateAccount:
		if a, ok := resource.(*models.Account); ok {
			return createAccount(session, a)
		}
	case ActionGetAccount, ActionPutAccount, ActionListAccount:
		if a, ok := resource.(*models.Account); ok {
			return manageAccount(session, a)
		}
	case ActionDisableAccount:
		if a, ok := resource.(*models.Account); ok {
			return manageAccount(session, a)
		}
	case ActionGetAccountFlags, ActionPutAccountFlags:
		// Flags are capability grants; only admins touch them, and admins
		// were already allowed above.
		return false
	case ActionGetAccountProfile:
		// Profiles are public, even to anonymous principals.
		return true
	case ActionPutAccountProfile:
		if a, ok := resource.(*models.Account); ok {
			return putAccountProfile(session, a)
		}
	case ActionListAccountMemberships, ActionListAccountAPIKeys:
		if a, ok := resource.(*models.Account); ok {
			return hasPrivilege(session, a.AccountID, "", models.RoleMaintainers)
		}

	case ActionInviteMembership, ActionRevokeMembership, ActionUpdateMembershipRole:
		if m, ok := resource.(*models.Membership); ok {
			return hasPrivilege(session, m.MembershipAccountID, m.ProductID, models.RoleMaintainers)
		}
	case ActionAcceptMembership, ActionRejectMembership:
		if m, ok := resource.(*models.Membership); ok {
			return session.HasAccount() && session.AccountID() == m.AccountID
		}
	case ActionGetMembership:
		if m, ok := resource.(*models.Membership); ok {
			if session.HasAccount() && session.AccountID() == m.AccountID {
				return true
			}
			return hasPrivilege(session, m.MembershipAccountID, m.ProductID, models.RoleMaintainers)
		}

	case ActionCreateRepository:
		if p, ok := resource.(*models.Product); ok {
			return createRepository(session, p)
		}
	case ActionGetRepository, ActionReadRepositoryData:
		if p, ok := resource.(*models.Product); ok {
			if p.Visibility != models.VisibilityRestricted {
				return true
			}
			return hasPrivilege(session, p.AccountID, p.ProductID, models.RoleReadData)
		}
	case ActionListRepository:
		if p, ok := resource.(*models.Product); ok {
			if p.Visibility == models.VisibilityPublic {
				return true
			}
			return hasPrivilege(session, p.AccountID, p.ProductID, models.RoleReadData)
		}
	case ActionPutRepository, ActionDisableRepository,
		ActionListRepositoryAPIKeys, ActionListRepositoryMemberships:
		if p, ok := resource.(*models.Product); ok {
			return hasPrivilege(session, p.AccountID, p.ProductID, models.RoleMaintainers)
		}
	case ActionWriteRepositoryData:
		if p, ok := resource.(*models.Product); ok {
			return hasPrivilege(session, p.AccountID, p.ProductID, models.RoleWriteData)
		}

	case ActionCreateAPIKey, ActionGetAPIKey, ActionRevokeAPIKey:
		if k, ok := resource.(*models.APIKey); ok {
			return hasPrivilege(session, k.AccountID, k.ProductID, models.RoleMaintainers)
		}

	case ActionCreateDataConnection, ActionPutDataConnection,
		ActionDeleteDataConnection, ActionViewDataConnectionCredentials:
		// Admin-only; already handled above.
		return false
	case ActionGetDataConnection:
		if d, ok := resource.(*models.DataConnection); ok {
			return getDataConnection(session, d)
		}
	case ActionUseDataConnection:
		if d, ok := resource.(*models.DataConnection); ok {
			return useDataConnection(session, d)
		}
	}
	return false
}

// createAccount gates account creation by kind. Anyone without an account
// may register an individual one; organizations need the capability flag;
// service accounts are provisioned by admins only.
func createAccount(session *models.Session, a *models.Account) bool {
	switch a.Kind {
	case models.AccountKindIndividual:
		return !session.HasAccount()
	case models.AccountKindOrganization:
		return session.HasAccount() && session.Account.HasFlag(models.FlagCreateOrganizations)
	}
	return false
}

// manageAccount allows the account itself, or org-wide maintainers of an
// organization account.
func manageAccount(session *models.Session, a *models.Account) bool {
	if !session.HasAccount() {
		return false
	}
	if session.AccountID() == a.AccountID {
		return true
	}
	if a.Kind == models.AccountKindOrganization {
		return hasPrivilege(session, a.AccountID, "", models.RoleMaintainers)
	}
	return false
}

// putAccountProfile allows the account itself, or org-wide owners of an
// organization account. Profiles speak for the org, so maintainers don't
// qualify.
func putAccountProfile(session *models.Session, a *models.Account) bool {
	if !session.HasAccount() {
		return false
	}
	if session.AccountID() == a.AccountID {
		return true
	}
	if a.Kind == models.AccountKindOrganization {
		return hasPrivilege(session, a.AccountID, "", models.RoleOwners)
	}
	return false
}

// createRepository requires the capability flag, then ownership of the
// target account (self, or org-wide maintainer of the organization).
func createRepository(session *models.Session, p *models.Product) bool {
	if !session.HasAccount() || !session.Account.HasFlag(models.FlagCreateRepositories) {
		return false
	}
	if session.AccountID() == p.AccountID {
		return true
	}
	return hasPrivilege(session, p.AccountID, "", models.RoleMaintainers)
}

// getDataConnection grants read of a connection's non-credential fields to
// principals with read access on any product that mirrors it. Callers
// populate d.MirroredBy before asking.
func getDataConnection(session *models.Session, d *models.DataConnection) bool {
	for _, ref := range d.MirroredBy {
		if hasPrivilege(session, ref.AccountID, ref.ProductID, models.RoleReadData) {
			return true
		}
	}
	return false
}

// useDataConnection gates selecting the connection for a new product mirror.
func useDataConnection(session *models.Session, d *models.DataConnection) bool {
	if d.ReadOnly {
		return false
	}
	if !session.HasAccount() {
		return false
	}
	if d.RequiredFlag != "" && !session.Account.HasFlag(d.RequiredFlag) {
		return false
	}
	return true
}

// hasPrivilege reports whether the session holds at least minRole on the
// product (ownerID, productID), or on ownerID org-wide when productID is "".
//
// Owning the account is the top of the privilege order. Beyond that, only
// memberships in the member state grant privilege: an unaccepted invitation
// grants nothing, and a revoked membership grants nothing.
func hasPrivilege(session *models.Session, ownerID, productID string, minRole models.MembershipRole) bool {
	if !session.HasAccount() {
		return false
	}
	if session.AccountID() == ownerID {
		return true
	}
	for i := range session.Memberships {
		m := &session.Memberships[i]
		if m.State != models.MembershipMember {
			continue
		}
		if !m.Role.AtLeast(minRole) {
			continue
		}
		if m.GrantsOn(ownerID, productID) {
			return true
		}
	}
	return false
}

// targetDisabled reports whether the resource is a disabled account,
// product, or API key. Data connections and memberships have no disabled
// bit; revoked memberships are handled by the transition rules instead.
func targetDisabled(resource any) bool {
	switch r := resource.(type) {
	case *models.Account:
		return r != nil && r.Disabled
	case *models.Product:
		return r != nil && r.Disabled
	case *models.APIKey:
		return r != nil && r.Disabled
	}
	return false
}
