// internal/app/system/authz/redact.go
package authz

import (
	"github.com/mlanders/datahub/internal/domain/models"
)

// Redaction runs after authorization: a principal allowed to read a resource
// may still not be allowed to see every field of it. Handlers call these
// helpers on the way out, never before the authorization decision.

// Redact returns the resource as the session's principal may see it,
// dispatching to the type-specific helper. Resources without sensitive
// fields pass through unchanged.
func Redact(session *models.Session, resource any) any {
	switch res := resource.(type) {
	case *models.DataConnection:
		return RedactDataConnection(session, res)
	case *models.APIKey:
		return RedactAPIKey(res)
	case []models.APIKey:
		return RedactAPIKeys(res)
	default:
		return resource
	}
}

// RedactDataConnection returns a copy of d suitable for the session's
// principal. Credentials survive only for principals allowed to view them;
// everyone else gets the connection with Authentication stripped.
func RedactDataConnection(session *models.Session, d *models.DataConnection) *models.DataConnection {
	out := *d
	if !IsAuthorized(session, d, ActionViewDataConnectionCredentials) {
		out.Authentication = nil
	}
	return &out
}

// RedactAPIKey strips secret material from an API key. Every read path
// returns this projection; the plaintext secret appears exactly once, in
// the create response.
func RedactAPIKey(k *models.APIKey) models.RedactedAPIKey {
	return k.Redacted()
}

// RedactAPIKeys redacts a slice of keys for list responses.
func RedactAPIKeys(keys []models.APIKey) []models.RedactedAPIKey {
	out := make([]models.RedactedAPIKey, 0, len(keys))
	for i := range keys {
		out = append(out, keys[i].Redacted())
	}
	return out
}
