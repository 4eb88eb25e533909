package db

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	if uri == "" {
		uri = os.Getenv("MONGODB_URI")
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
	}
	if dbName == "" {
		dbName = os.Getenv("MONGODB_DATABASE")
	}

	if dbName == "" {
		return nil, errors.New("database name required (set dbName or MONGODB_DATABASE)")
	}

	clientOpts := options.Client().ApplyURI(uri).
		SetMaxPoolSize(100)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, err
	}

	store := &MongoStore{
		Client: client,
		DB:     client.Database(dbName),
	}
	return store, nil
}

// EnsureIndexes creates the indexes the conversation queries rely on:
// the per-room timestamp walk, the participant filter on rooms, and the
// uniqueness of account identifiers.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	messageIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	if _, err := m.DB.Collection("messages").Indexes().CreateMany(idxCtx, messageIdx); err != nil {
		return err
	}

	roomIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}}},
	}
	if _, err := m.DB.Collection("rooms").Indexes().CreateMany(idxCtx, roomIdx); err != nil {
		return err
	}

	unique := options.Index().SetUnique(true)
	userIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := m.DB.Collection("users").Indexes().CreateMany(idxCtx, userIdx); err != nil {
		return err
	}

	tokenIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}},
	}
	_, err := m.DB.Collection("refresh_tokens").Indexes().CreateMany(idxCtx, tokenIdx)
	return err
}

func (m *MongoStore) Close(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(disconnectCtx)
}

func (m *MongoStore) Ping(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return errors.New("mongo client is nil")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.Client.Ping(pingCtx, nil)
}
