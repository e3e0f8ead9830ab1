package session

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store using a Mongo collection (one record per key).
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoStore{col: col}
}

func (m *MongoStore) Get(ctx context.Context, key string) (string, error) {
	var r Record
	if err := m.col.FindOne(ctx, bson.M{"key": key}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", err
	}
	if r.expired(time.Now().UTC()) {
		_ = m.Delete(ctx, key)
		return "", nil
	}
	return r.Token, nil
}

func (m *MongoStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	now := time.Now().UTC()
	set := bson.M{"key": key, "token": token, "createdAt": now}
	update := bson.M{"$set": set}
	if ttl > 0 {
		set["expiresAt"] = now.Add(ttl)
	} else {
		update["$unset"] = bson.M{"expiresAt": ""}
	}
	_, err := m.col.UpdateOne(ctx, bson.M{"key": key}, update, options.Update().SetUpsert(true))
	return err
}

func (m *MongoStore) Delete(ctx context.Context, key string) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"key": key})
	return err
}
