// internal/app/store/dataconnections/dataconnectionstore.go
package dataconnectionstore

import (
	"context"
	"errors"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mlanders/datahub/internal/domain/models"
)

type Store struct {
	c        *mongo.Collection
	products *mongo.Collection
}

var (
	ErrNotFound            = errors.New("data connection not found")
	ErrDuplicateConnection = errors.New("a data connection with this ID already exists")
	ErrConnectionInUse     = errors.New("data connection is mirrored by one or more repositories")
)

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("data_connections"),
		products: db.Collection("products"),
	}
}

func (s *Store) Create(ctx context.Context, d models.DataConnection) (models.DataConnection, error) {
	if _, err := s.c.InsertOne(ctx, d); err != nil {
		if wafflemongo.IsDup(err) {
			return models.DataConnection{}, ErrDuplicateConnection
		}
		return models.DataConnection{}, err
	}
	return d, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.DataConnection, error) {
	var d models.DataConnection
	err := s.c.FindOne(ctx, bson.M{"data_connection_id": id}).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return models.DataConnection{}, ErrNotFound
	}
	if err != nil {
		return models.DataConnection{}, err
	}
	return d, nil
}

// Update replaces the connection's mutable fields. Credentials are only
// rewritten when a new Authentication value is provided, so an update that
// omits them cannot wipe stored secrets.
func (s *Store) Update(ctx context.Context, id string, d models.DataConnection) error {
	set := bson.M{
		"read_only":            d.ReadOnly,
		"allowed_visibilities": d.AllowedVisibilities,
		"required_flag":        d.RequiredFlag,
	}
	if d.Name != "" {
		set["name"] = d.Name
	}
	if d.Details.Provider != "" {
		set["details"] = d.Details
	}
	if d.Authentication != nil {
		set["authentication"] = d.Authentication
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"data_connection_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a connection that no product mirrors. The in-use check and
// delete are not atomic; the products index makes the window small, and a
// dangling mirror reference fails loudly at use time rather than silently.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.products.CountDocuments(ctx, bson.M{"mirror_connection_ids": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrConnectionInUse
	}

	res, err := s.c.DeleteOne(ctx, bson.M{"data_connection_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all connections, ID ordered.
func (s *Store) List(ctx context.Context) ([]models.DataConnection, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "data_connection_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var conns []models.DataConnection
	if err := cur.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}
