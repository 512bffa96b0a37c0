// internal/domain/models/session.go
package models

// Session is the per-request principal: an authenticated identity plus its
// resolved account and that account's membership records. A nil *Session is
// a valid anonymous principal. A session with an identity but no account is
// an identity still onboarding (no account created yet).
//
// Sessions are never persisted; the auth package resolves one per request
// from a session cookie or an API key.
type Session struct {
	IdentityID  string
	Account     *Account
	Memberships []Membership
}

// IsAnonymous reports whether the session carries no identity at all.
func (s *Session) IsAnonymous() bool {
	return s == nil || s.IdentityID == ""
}

// HasAccount reports whether the session resolved to an account.
func (s *Session) HasAccount() bool {
	return s != nil && s.Account != nil
}

// AccountID returns the session account's ID, or "" when there is none.
func (s *Session) AccountID() string {
	if !s.HasAccount() {
		return ""
	}
	return s.Account.AccountID
}

// IsAdmin reports whether the session's account carries the admin flag.
func (s *Session) IsAdmin() bool {
	return s.HasAccount() && s.Account.IsAdmin()
}

// Disabled reports whether the session's account exists and is disabled.
func (s *Session) Disabled() bool {
	return s.HasAccount() && s.Account.Disabled
}
