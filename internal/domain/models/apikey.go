// internal/domain/models/apikey.go
package models

import "time"

// APIKey is a long-lived credential scoped to an account or to one product.
//
// The plaintext secret is returned exactly once, in the create response, and
// is never retrievable again: only a bcrypt hash is persisted, and every
// subsequent read returns the Redacted projection.
type APIKey struct {
	AccessKeyID string `bson:"access_key_id" json:"access_key_id"`

	AccountID string `bson:"account_id" json:"account_id"`
	ProductID string `bson:"product_id,omitempty" json:"product_id,omitempty"`

	Name     string    `bson:"name" json:"name"`
	Disabled bool      `bson:"disabled" json:"disabled"`
	Expires  time.Time `bson:"expires" json:"expires"`

	// SecretAccessKey carries the live secret only between generation and
	// the create response. Never persisted.
	SecretAccessKey string `bson:"-" json:"secret_access_key,omitempty"`

	// SecretHash is the bcrypt hash used to verify presented secrets.
	// Never serialized to clients.
	SecretHash []byte `bson:"secret_hash" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// RedactedAPIKey is the projection of an APIKey with all secret material
// omitted. List and get operations always return this shape.
type RedactedAPIKey struct {
	AccessKeyID string    `json:"access_key_id"`
	AccountID   string    `json:"account_id"`
	ProductID   string    `json:"product_id,omitempty"`
	Name        string    `json:"name"`
	Disabled    bool      `json:"disabled"`
	Expires     time.Time `json:"expires"`
	CreatedAt   time.Time `json:"created_at"`
}

// Redacted returns the key with secret material stripped.
func (k *APIKey) Redacted() RedactedAPIKey {
	return RedactedAPIKey{
		AccessKeyID: k.AccessKeyID,
		AccountID:   k.AccountID,
		ProductID:   k.ProductID,
		Name:        k.Name,
		Disabled:    k.Disabled,
		Expires:     k.Expires,
		CreatedAt:   k.CreatedAt,
	}
}

// Expired reports whether the key has passed its expiry at time now.
func (k *APIKey) Expired(now time.Time) bool {
	return !k.Expires.IsZero() && now.After(k.Expires)
}
