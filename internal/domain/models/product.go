// internal/domain/models/product.go
package models

import "time"

// ProductVisibility controls who can discover and fetch a product.
type ProductVisibility string

const (
	// VisibilityPublic products are listed and readable by everyone.
	VisibilityPublic ProductVisibility = "public"
	// VisibilityUnlisted products are readable by everyone who has the
	// direct link but are excluded from public listings.
	VisibilityUnlisted ProductVisibility = "unlisted"
	// VisibilityRestricted products are visible only to principals with
	// product access (membership or ownership).
	VisibilityRestricted ProductVisibility = "restricted"
)

// IsValid reports whether v is a known visibility.
func (v ProductVisibility) IsValid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityRestricted:
		return true
	}
	return false
}

// ProductMirror describes one storage location of a product's data,
// backed by a named data connection.
type ProductMirror struct {
	DataConnectionID string `bson:"data_connection_id" json:"data_connection_id"`
	Prefix           string `bson:"prefix" json:"prefix"`
}

// Product (a.k.a. repository) is a data set owned by an account.
//
// An individual-owned product is controlled solely by its owner (plus
// admins); an organization-owned product is additionally controlled by the
// organization's owner/maintainer memberships and by product-scoped
// memberships.
type Product struct {
	AccountID string `bson:"account_id" json:"account_id"`
	ProductID string `bson:"product_id" json:"product_id"`

	Title   string `bson:"title" json:"title"`
	TitleCI string `bson:"title_ci" json:"-"`

	Visibility ProductVisibility `bson:"visibility" json:"visibility"`
	Disabled   bool              `bson:"disabled" json:"disabled"`
	Featured   bool              `bson:"featured" json:"featured"`

	// Mirrors maps mirror names to storage locations. PrimaryMirror names
	// the entry data-plane writes go to.
	Mirrors       map[string]ProductMirror `bson:"mirrors,omitempty" json:"mirrors,omitempty"`
	PrimaryMirror string                   `bson:"primary_mirror,omitempty" json:"primary_mirror,omitempty"`

	// MirrorConnectionIDs is a flat, indexed copy of the connection IDs in
	// Mirrors, maintained by the store on every write so connections can be
	// looked up without unwinding the map.
	MirrorConnectionIDs []string `bson:"mirror_connection_ids,omitempty" json:"-"`

	Published time.Time `bson:"published" json:"published"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ProductRef identifies a product without carrying its full record.
type ProductRef struct {
	AccountID string `bson:"account_id" json:"account_id"`
	ProductID string `bson:"product_id" json:"product_id"`
}

// Ref returns the product's reference.
func (p *Product) Ref() ProductRef {
	return ProductRef{AccountID: p.AccountID, ProductID: p.ProductID}
}

// MirrorsConnection reports whether any mirror of the product is backed by
// the given data connection.
func (p *Product) MirrorsConnection(dataConnectionID string) bool {
	for _, m := range p.Mirrors {
		if m.DataConnectionID == dataConnectionID {
			return true
		}
	}
	return false
}
