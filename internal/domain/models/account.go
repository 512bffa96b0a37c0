// internal/domain/models/account.go
package models

import "time"

// AccountKind distinguishes the three identities an account can represent.
type AccountKind string

const (
	AccountKindIndividual   AccountKind = "individual"
	AccountKindOrganization AccountKind = "organization"
	AccountKindService      AccountKind = "service"
)

// IsValid reports whether k is a known account kind.
func (k AccountKind) IsValid() bool {
	switch k {
	case AccountKindIndividual, AccountKindOrganization, AccountKindService:
		return true
	}
	return false
}

// AccountFlag is a capability flag assignable to individual accounts.
// Only admins may alter flags on any account.
type AccountFlag string

const (
	FlagAdmin               AccountFlag = "admin"
	FlagCreateOrganizations AccountFlag = "create_organizations"
	FlagCreateRepositories  AccountFlag = "create_repositories"
)

// IsValid reports whether f is a known account flag.
func (f AccountFlag) IsValid() bool {
	switch f {
	case FlagAdmin, FlagCreateOrganizations, FlagCreateRepositories:
		return true
	}
	return false
}

// AccountProfile is the publicly visible portion of an account.
// Profile reads are open to everyone, including anonymous principals.
type AccountProfile struct {
	Bio      string `bson:"bio,omitempty" json:"bio,omitempty"`
	Location string `bson:"location,omitempty" json:"location,omitempty"`
	URL      string `bson:"url,omitempty" json:"url,omitempty"`
}

// Account represents a user, organization, or service identity.
//
// Disabled accounts are kept, never deleted; they become invisible to
// non-admin principals and cannot authenticate for write actions.
type Account struct {
	AccountID string      `bson:"account_id" json:"account_id"`
	Kind      AccountKind `bson:"kind" json:"kind"`
	Name      string      `bson:"name" json:"name"`
	NameCI    string      `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped

	// IdentityID binds an individual account to exactly one external
	// identity record. Empty for organization and service accounts.
	IdentityID string `bson:"identity_id,omitempty" json:"-"`

	Disabled bool          `bson:"disabled" json:"disabled"`
	Flags    []AccountFlag `bson:"flags" json:"flags"`

	Profile AccountProfile `bson:"profile" json:"profile"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasFlag reports whether the account carries the given capability flag.
func (a *Account) HasFlag(f AccountFlag) bool {
	if a == nil {
		return false
	}
	for _, have := range a.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the account carries the admin flag.
func (a *Account) IsAdmin() bool {
	return a.HasFlag(FlagAdmin)
}
