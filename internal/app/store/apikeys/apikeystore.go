// internal/app/store/apikeys/apikeystore.go
package apikeystore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/mlanders/datahub/internal/domain/models"
)

// Store persists API keys. The plaintext secret exists only in the return
// value of Create; the database holds a bcrypt hash.
type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound     = errors.New("api key not found")
	ErrDuplicateKey = errors.New("an api key with this access key ID already exists")
	ErrBadSecret    = errors.New("secret does not match")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("api_keys")}
}

// Create generates the key pair, stores the hashed secret, and returns the
// key with the plaintext secret populated. This is the only time the
// secret is available.
func (s *Store) Create(ctx context.Context, accountID, productID, name string, expires time.Time) (models.APIKey, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return models.APIKey{}, err
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return models.APIKey{}, err
	}

	key := models.APIKey{
		AccessKeyID:     "dk_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AccountID:       accountID,
		ProductID:       productID,
		Name:            name,
		Expires:         expires,
		SecretAccessKey: secret,
		SecretHash:      hash,
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, key); err != nil {
		if wafflemongo.IsDup(err) {
			return models.APIKey{}, ErrDuplicateKey
		}
		return models.APIKey{}, err
	}
	return key, nil
}

func (s *Store) GetByID(ctx context.Context, accessKeyID string) (models.APIKey, error) {
	var key models.APIKey
	err := s.c.FindOne(ctx, bson.M{"access_key_id": accessKeyID}).Decode(&key)
	if err == mongo.ErrNoDocuments {
		return models.APIKey{}, ErrNotFound
	}
	if err != nil {
		return models.APIKey{}, err
	}
	return key, nil
}

// VerifySecret checks a presented secret against the stored hash. Disabled
// and expired keys fail verification regardless of the secret.
func (s *Store) VerifySecret(ctx context.Context, accessKeyID, secret string) (models.APIKey, error) {
	key, err := s.GetByID(ctx, accessKeyID)
	if err != nil {
		return models.APIKey{}, err
	}
	if key.Disabled || key.Expired(time.Now().UTC()) {
		return models.APIKey{}, ErrBadSecret
	}
	if bcrypt.CompareHashAndPassword(key.SecretHash, []byte(secret)) != nil {
		return models.APIKey{}, ErrBadSecret
	}
	return key, nil
}

// Revoke disables a key. Keys are never deleted so the audit trail of what
// existed stays intact.
func (s *Store) Revoke(ctx context.Context, accessKeyID string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"access_key_id": accessKeyID}, bson.M{"$set": bson.M{"disabled": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByAccount returns the account-scoped keys (no product) for an account.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]models.APIKey, error) {
	return s.list(ctx, bson.M{"account_id": accountID, "product_id": bson.M{"$exists": false}})
}

// ListByProduct returns the keys scoped to one product.
func (s *Store) ListByProduct(ctx context.Context, accountID, productID string) ([]models.APIKey, error) {
	return s.list(ctx, bson.M{"account_id": accountID, "product_id": productID})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.APIKey, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var keys []models.APIKey
	if err := cur.All(ctx, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}
