package credential

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore reads credential records from a MongoDB collection shaped as
// {api_key, expired_date, usage, ...owner metadata}.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{coll: client.Database(database).Collection(collection)}
}

func (s *MongoStore) FindCredential(ctx context.Context, token string) (*AccessCredential, error) {
	// Project away the storage identifier; only credential fields matter here.
	opts := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 0}})

	var cred AccessCredential
	err := s.coll.FindOne(ctx, bson.D{{Key: "api_key", Value: token}}, opts).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &cred, nil
}

func (s *MongoStore) ConsumeUsage(ctx context.Context, token string) error {
	// The usage > 0 filter makes the decrement conditional on quota remaining,
	// so concurrent consumers cannot drive the counter negative.
	filter := bson.D{
		{Key: "api_key", Value: token},
		{Key: "usage", Value: bson.D{{Key: "$gt", Value: 0}}},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "usage", Value: -1}}}}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("consume usage: %w", err)
	}
	if res.ModifiedCount == 0 {
		return ErrQuotaExceeded
	}
	return nil
}
