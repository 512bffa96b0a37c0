// internal/app/store/accounts/fetcher.go
package accountstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/mlanders/datahub/internal/domain/models"
)

// Fetcher builds per-request sessions for the auth middleware. It re-reads
// the account and its memberships on every request so disables, flag
// changes, and revocations are effective immediately.
type Fetcher struct {
	accounts    *mongo.Collection
	memberships *mongo.Collection
	apiKeys     *mongo.Collection
}

// NewFetcher constructs a Fetcher over the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{
		accounts:    db.Collection("accounts"),
		memberships: db.Collection("memberships"),
		apiKeys:     db.Collection("api_keys"),
	}
}

// SessionByIdentity resolves a cookie identity into a session. An identity
// with no account yet gets a session with a nil Account so onboarding flows
// can distinguish "signed in, no account" from anonymous.
func (f *Fetcher) SessionByIdentity(ctx context.Context, identityID string) (*models.Session, error) {
	sess := &models.Session{IdentityID: identityID}

	var a models.Account
	err := f.accounts.FindOne(ctx, bson.M{"identity_id": identityID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return sess, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Account = &a

	memberships, err := f.activeMemberships(ctx, a.AccountID)
	if err != nil {
		return nil, err
	}
	sess.Memberships = memberships
	return sess, nil
}

// SessionByAPIKey verifies the presented secret and builds a session for
// the key's account. Unknown keys, disabled or expired keys, and wrong
// secrets all return (nil, nil): the request proceeds anonymous rather
// than revealing which part failed.
func (f *Fetcher) SessionByAPIKey(ctx context.Context, accessKeyID, secret string) (*models.Session, error) {
	var key models.APIKey
	err := f.apiKeys.FindOne(ctx, bson.M{"access_key_id": accessKeyID}).Decode(&key)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if key.Disabled || key.Expired(time.Now().UTC()) {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword(key.SecretHash, []byte(secret)) != nil {
		return nil, nil
	}

	var a models.Account
	err = f.accounts.FindOne(ctx, bson.M{"account_id": key.AccountID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	memberships, err := f.activeMemberships(ctx, a.AccountID)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		IdentityID:  "api-key:" + accessKeyID,
		Account:     &a,
		Memberships: memberships,
	}, nil
}

// activeMemberships loads the invited and member rows for an account.
// Revoked rows grant nothing and would only bloat the session.
func (f *Fetcher) activeMemberships(ctx context.Context, accountID string) ([]models.Membership, error) {
	cur, err := f.memberships.Find(ctx, bson.M{
		"account_id": accountID,
		"state":      bson.M{"$in": bson.A{models.MembershipInvited, models.MembershipMember}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var memberships []models.Membership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}
