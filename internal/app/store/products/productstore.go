// internal/app/store/products/productstore.go
package productstore

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
	ErrNotFound         = errors.New("repository not found")
	ErrDuplicateProduct = errors.New("a repository with this ID already exists for the account")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("products")}
}

// mirrorConnectionIDs flattens the mirror map into the indexed lookup field.
func mirrorConnectionIDs(mirrors map[string]models.ProductMirror) []string {
	if len(mirrors) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(mirrors))
	ids := make([]string, 0, len(mirrors))
	for _, m := range mirrors {
		if _, ok := seen[m.DataConnectionID]; ok {
			continue
		}
		seen[m.DataConnectionID] = struct{}{}
		ids = append(ids, m.DataConnectionID)
	}
	return ids
}

// Create inserts a new product under (p.AccountID, p.ProductID).
func (s *Store) Create(ctx context.Context, p models.Product) (models.Product, error) {
	now := time.Now().UTC()
	p.TitleCI = text.Fold(p.Title)
	p.MirrorConnectionIDs = mirrorConnectionIDs(p.Mirrors)
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Published.IsZero() {
		p.Published = now
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Product{}, ErrDuplicateProduct
		}
		return models.Product{}, err
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, accountID, productID string) (models.Product, error) {
	var p models.Product
	err := s.c.FindOne(ctx, bson.M{"account_id": accountID, "product_id": productID}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// Update modifies the product's mutable fields and refreshes UpdatedAt.
// A non-nil Mirrors replaces the whole mirror map and re-derives the
// connection lookup field.
func (s *Store) Update(ctx context.Context, accountID, productID string, p models.Product) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Title != "" {
		set["title"] = p.Title
		set["title_ci"] = text.Fold(p.Title)
	}
	if p.Visibility != "" {
		set["visibility"] = p.Visibility
	}
	if p.Mirrors != nil {
		set["mirrors"] = p.Mirrors
		set["mirror_connection_ids"] = mirrorConnectionIDs(p.Mirrors)
	}
	if p.PrimaryMirror != "" {
		set["primary_mirror"] = p.PrimaryMirror
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID, "product_id": productID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDisabled flips the disabled bit. Products are never deleted.
func (s *Store) SetDisabled(ctx context.Context, accountID, productID string, disabled bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID, "product_id": productID}, bson.M{"$set": bson.M{
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

// SetFeatured marks or unmarks a product for the featured listing.
func (s *Store) SetFeatured(ctx context.Context, accountID, productID string, featured bool) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"account_id": accountID, "product_id": productID}, bson.M{"$set": bson.M{
		"featured":   featured,
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

// ListPublic returns enabled public products, folded-title ordered, after
// the cursor.
func (s *Store) ListPublic(ctx context.Context, afterTitleCI string, limit int64) ([]models.Product, error) {
	filter := bson.M{
		"visibility": models.VisibilityPublic,
		"disabled":   false,
	}
	if afterTitleCI != "" {
		filter["title_ci"] = bson.M{"$gt": afterTitleCI}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "title_ci", Value: 1}, {Key: "product_id", Value: 1}}).
		SetLimit(limit)
	return s.find(ctx, filter, opts)
}

// ListByAccount returns an account's products. Disabled products are
// included only when includeDisabled is set; visibility filtering is the
// caller's job since it depends on the principal.
func (s *Store) ListByAccount(ctx context.Context, accountID string, includeDisabled bool) ([]models.Product, error) {
	filter := bson.M{"account_id": accountID}
	if !includeDisabled {
		filter["disabled"] = false
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "title_ci", Value: 1}}))
}

// ListByDataConnection returns every product with a mirror on the given
// connection, enabled or not. Used for the connection in-use check and to
// populate DataConnection.MirroredBy before authorization.
func (s *Store) ListByDataConnection(ctx context.Context, dataConnectionID string) ([]models.Product, error) {
	return s.find(ctx, bson.M{"mirror_connection_ids": dataConnectionID}, nil)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Product, error) {
	var cur *mongo.Cursor
	var err error
	if opts != nil {
		cur, err = s.c.Find(ctx, filter, opts)
	} else {
		cur, err = s.c.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var products []models.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}
