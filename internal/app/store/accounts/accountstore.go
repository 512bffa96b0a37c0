// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mlanders/datahub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound         = errors.New("account not found")
	ErrDuplicateAccount = errors.New("an account with this ID or name already exists")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("accounts")}
}

// Create inserts a new account. The caller supplies a normalized AccountID;
// NameCI is derived here so lookups always agree with what was stored.
func (s *Store) Create(ctx context.Context, a models.Account) (models.Account, error) {
	now := time.Now().UTC()
	a.NameCI = text.Fold(a.Name)
	if a.Flags == nil {
		a.Flags = []models.AccountFlag{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Account{}, ErrDuplicateAccount
		}
		return models.Account{}, err
	}
	return a, nil
}

func (s *Store) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	var a models.Account
	err := s.c.FindOne(ctx, bson.M{"account_id": accountID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return a, nil
}

// GetByIdentity returns the account bound to an external identity, if any.
func (s *Store) GetByIdentity(ctx context.Context, identityID string) (models.Account, error) {
	var a models.Account
	err := s.c.FindOne(ctx, bson.M{"identity_id": identityID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return a, nil
}

// Update modifies the account's mutable fields and refreshes UpdatedAt.
// AccountID, Kind, IdentityID, Flags, and Disabled are not touched here;
// they have dedicated operations.
func (s *Store) Update(ctx context.Context, accountID string, a models.Account) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if a.Name != "" {
		set["name"] = a.Name
		set["name_ci"] = text.Fold(a.Name)
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateAccount
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile replaces the public profile. Sanitization happens in the
// feature layer before this is called.
func (s *Store) UpdateProfile(ctx context.Context, accountID string, p models.AccountProfile) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID}, bson.M{"$set": bson.M{
		"profile":    p,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDisabled flips the disabled bit. Accounts are never deleted.
func (s *Store) SetDisabled(ctx context.Context, accountID string, disabled bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID}, bson.M{"$set": bson.M{
		"disabled":   disabled,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFlags replaces the account's capability flags. Admin-only at the
// feature layer.
func (s *Store) SetFlags(ctx context.Context, accountID string, flags []models.AccountFlag) error {
	if flags == nil {
		flags = []models.AccountFlag{}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID}, bson.M{"$set": bson.M{
		"flags":      flags,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns enabled accounts of the given kind (or all kinds when kind
// is ""), folded-name ordered, after the cursor. Disabled accounts are
// visible only when includeDisabled is set (admin listings).
func (s *Store) List(ctx context.Context, kind models.AccountKind, includeDisabled bool, afterNameCI string, limit int64) ([]models.Account, error) {
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	if !includeDisabled {
		filter["disabled"] = false
	}
	if afterNameCI != "" {
		filter["name_ci"] = bson.M{"$gt": afterNameCI}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "account_id", Value: 1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var accounts []models.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
