// internal/domain/models/membership.go
package models

import "time"

// MembershipRole is an ordered privilege level granted by a membership.
// Lower ordinal means more privileged: owners > maintainers > write_data > read_data.
type MembershipRole string

const (
	RoleOwners      MembershipRole = "owners"
	RoleMaintainers MembershipRole = "maintainers"
	RoleWriteData   MembershipRole = "write_data"
	RoleReadData    MembershipRole = "read_data"
)

// roleOrdinal maps each role to its privilege ordinal (0 = most privileged).
var roleOrdinal = map[MembershipRole]int{
	RoleOwners:      0,
	RoleMaintainers: 1,
	RoleWriteData:   2,
	RoleReadData:    3,
}

// IsValid reports whether r is a known membership role.
func (r MembershipRole) IsValid() bool {
	_, ok := roleOrdinal[r]
	return ok
}

// AtLeast reports whether r is at least as privileged as min.
// Unknown roles never satisfy any threshold.
func (r MembershipRole) AtLeast(min MembershipRole) bool {
	ro, ok := roleOrdinal[r]
	if !ok {
		return false
	}
	mo, ok := roleOrdinal[min]
	if !ok {
		return false
	}
	return ro <= mo
}

// MembershipState is the lifecycle state of a membership.
type MembershipState string

const (
	MembershipInvited MembershipState = "invited"
	MembershipMember  MembershipState = "member"
	MembershipRevoked MembershipState = "revoked"
)

// IsValid reports whether s is a known membership state.
func (s MembershipState) IsValid() bool {
	switch s {
	case MembershipInvited, MembershipMember, MembershipRevoked:
		return true
	}
	return false
}

// IsActive reports whether the state counts against the at-most-one-active
// membership invariant. Invited and Member are active; Revoked is not.
func (s MembershipState) IsActive() bool {
	return s == MembershipInvited || s == MembershipMember
}

// CanTransitionTo encodes the legal lifecycle transitions:
//
//	invited -> member   (accept, by the invited account)
//	invited -> revoked  (reject by invited account, or revoke by org admin)
//	member  -> revoked  (revoke only)
//	revoked -> invited  (re-invitation)
func (s MembershipState) CanTransitionTo(next MembershipState) bool {
	switch s {
	case MembershipInvited:
		return next == MembershipMember || next == MembershipRevoked
	case MembershipMember:
		return next == MembershipRevoked
	case MembershipRevoked:
		return next == MembershipInvited
	}
	return false
}

// Membership grants a role from an individual account to an organization
// account, optionally narrowed to a single product within that organization.
// A membership without a ProductID is organization-wide and applies to every
// product the organization owns.
type Membership struct {
	MembershipID string `bson:"membership_id" json:"membership_id"`

	// AccountID is the member (always an individual account).
	AccountID string `bson:"account_id" json:"account_id"`

	// MembershipAccountID is the organization account granting access.
	MembershipAccountID string `bson:"membership_account_id" json:"membership_account_id"`

	// ProductID scopes the membership to one product when present.
	ProductID string `bson:"product_id,omitempty" json:"product_id,omitempty"`

	Role  MembershipRole  `bson:"role" json:"role"`
	State MembershipState `bson:"state" json:"state"`

	// StateChanged records the time of the last state transition.
	StateChanged time.Time `bson:"state_changed" json:"state_changed"`
}

// IsActive reports whether the membership counts as active (invited or member).
func (m *Membership) IsActive() bool {
	return m.State.IsActive()
}

// GrantsOn reports whether this membership's scope covers the product
// (ownerID, productID). An organization-wide membership covers every product
// owned by the organization; a product-scoped one covers only its product.
// Role and state are not considered here; callers check those separately.
func (m *Membership) GrantsOn(ownerID, productID string) bool {
	if m.MembershipAccountID != ownerID {
		return false
	}
	return m.ProductID == "" || m.ProductID == productID
}
