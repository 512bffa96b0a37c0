// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mlanders/datahub/internal/domain/models"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAccount inserts an account of the given kind. The account ID doubles
// as its display name. Flags are optional.
func (f *Fixtures) CreateAccount(ctx context.Context, accountID string, kind models.AccountKind, flags ...models.AccountFlag) models.Account {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Account{
		AccountID: accountID,
		Kind:      kind,
		Name:      accountID,
		NameCI:    text.Fold(accountID),
		Flags:     flags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == models.AccountKindIndividual {
		a.IdentityID = "ident-" + accountID
	}

	if _, err := f.db.Collection("accounts").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("create test account: %v", err)
	}
	return a
}

// CreateIndividual inserts an individual account.
func (f *Fixtures) CreateIndividual(ctx context.Context, accountID string, flags ...models.AccountFlag) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, accountID, models.AccountKindIndividual, flags...)
}

// CreateOrganization inserts an organization account.
func (f *Fixtures) CreateOrganization(ctx context.Context, accountID string) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, accountID, models.AccountKindOrganization)
}

// CreateMembership inserts a membership in the given role and state.
// Pass productID "" for an organization-wide membership.
func (f *Fixtures) CreateMembership(ctx context.Context, accountID, orgID, productID string, role models.MembershipRole, state models.MembershipState) models.Membership {
	f.t.Helper()

	m := models.Membership{
		MembershipID:        uuid.NewString(),
		AccountID:           accountID,
		MembershipAccountID: orgID,
		ProductID:           productID,
		Role:                role,
		State:               state,
		StateChanged:        time.Now().UTC(),
	}
	if _, err := f.db.Collection("memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("create test membership: %v", err)
	}
	return m
}

// CreateProduct inserts a product with the given visibility.
func (f *Fixtures) CreateProduct(ctx context.Context, ownerID, productID string, vis models.ProductVisibility) models.Product {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Product{
		AccountID:  ownerID,
		ProductID:  productID,
		Title:      productID,
		TitleCI:    text.Fold(productID),
		Visibility: vis,
		Published:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("products").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("create test product: %v", err)
	}
	return p
}

// CreateDataConnection inserts a data connection with S3 access-key
// credentials.
func (f *Fixtures) CreateDataConnection(ctx context.Context, id string) models.DataConnection {
	f.t.Helper()

	d := models.DataConnection{
		DataConnectionID: id,
		Name:             id,
		Details: models.DataConnectionDetails{
			Provider:   models.ProviderS3,
			Bucket:     "test-bucket",
			Region:     "us-east-1",
			BasePrefix: id + "/",
		},
		Authentication: &models.DataConnectionAuth{
			Type:            models.AuthS3AccessKey,
			AccessKeyID:     "AKIATEST",
			SecretAccessKey: "test-secret",
		},
	}
	if _, err := f.db.Collection("data_connections").InsertOne(ctx, d); err != nil {
		f.t.Fatalf("create test data connection: %v", err)
	}
	return d
}
