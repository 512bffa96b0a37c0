// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The memberships index is the one that carries an invariant: the partial
unique index on (account_id, membership_account_id, product_id) restricted
to active states is what guarantees at most one live membership per scope,
even under concurrent invites.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureAccounts(ctx, db); err != nil {
		problems = append(problems, "accounts: "+err.Error())
	}
	if err := ensureMemberships(ctx, db); err != nil {
		problems = append(problems, "memberships: "+err.Error())
	}
	if err := ensureProducts(ctx, db); err != nil {
		problems = append(problems, "products: "+err.Error())
	}
	if err := ensureAPIKeys(ctx, db); err != nil {
		problems = append(problems, "api_keys: "+err.Error())
	}
	if err := ensureDataConnections(ctx, db); err != nil {
		problems = append(problems, "data_connections: "+err.Error())
	}
	if err := ensureOAuthStates(ctx, db); err != nil {
		problems = append(problems, "oauth_states: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			// An index with the same keys under another name or options
			// already exists; drop by our name and retry once.
			if strings.Contains(err.Error(), "IndexOptionsConflict") && name != "" {
				if _, dropErr := coll.Indexes().DropOne(ctx, name); dropErr != nil {
					zap.L().Warn("drop conflicting index failed",
						zap.String("collection", coll.Name()),
						zap.String("name", name),
						zap.Error(dropErr))
				}
				if _, err2 := coll.Indexes().CreateOne(ctx, m); err2 == nil {
					continue
				}
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func ensureAccounts(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("accounts")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_accounts_id"),
		},
		// Display names are globally unique after case/diacritics folding.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_accounts_nameci"),
		},
		// One account per external identity. Partial so organization and
		// service accounts (no identity) don't collide on the missing field.
		{
			Keys: bson.D{{Key: "identity_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_accounts_identity").
				SetPartialFilterExpression(bson.M{"identity_id": bson.M{"$exists": true}}),
		},
		// Listing: kind + folded name with a stable tiebreak.
		{
			Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "disabled", Value: 1},
				{Key: "name_ci", Value: 1},
				{Key: "account_id", Value: 1},
			},
			Options: options.Index().SetName("idx_accounts_kind_disabled_nameci_id"),
		},
	})
}

func ensureMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "membership_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_memberships_id"),
		},
		// At most one ACTIVE membership per (member, org, product scope).
		// Revoked rows fall outside the partial filter, so re-inviting after
		// a revoke inserts cleanly while a second live invite conflicts.
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "membership_account_id", Value: 1},
				{Key: "product_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_memberships_active_scope").
				SetPartialFilterExpression(bson.M{"state": bson.M{"$in": bson.A{"invited", "member"}}}),
		},
		// A member's memberships (session building, account pages).
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "state", Value: 1},
			},
			Options: options.Index().SetName("idx_memberships_account_state"),
		},
		// An organization's memberships, org-wide and per product.
		{
			Keys: bson.D{
				{Key: "membership_account_id", Value: 1},
				{Key: "product_id", Value: 1},
				{Key: "state", Value: 1},
			},
			Options: options.Index().SetName("idx_memberships_org_product_state"),
		},
	})
}

func ensureProducts(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("products")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "product_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_products_owner_id"),
		},
		// Public listing: visibility + folded title with stable tiebreak.
		{
			Keys: bson.D{
				{Key: "visibility", Value: 1},
				{Key: "disabled", Value: 1},
				{Key: "title_ci", Value: 1},
				{Key: "product_id", Value: 1},
			},
			Options: options.Index().SetName("idx_products_vis_disabled_titleci_id"),
		},
		// Which products mirror a given connection (delete-in-use check,
		// connection read authorization).
		{
			Keys:    bson.D{{Key: "mirror_connection_ids", Value: 1}},
			Options: options.Index().SetName("idx_products_mirror_connections"),
		},
	})
}

func ensureAPIKeys(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("api_keys")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "access_key_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_apikeys_id"),
		},
		{
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "product_id", Value: 1},
			},
			Options: options.Index().SetName("idx_apikeys_account_product"),
		},
	})
}

func ensureDataConnections(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("data_connections")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "data_connection_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_dataconnections_id"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("oauth_states")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauthstates_state"),
		},
		// TTL cleanup for abandoned logins.
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_oauthstates_expires"),
		},
	})
}
