package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DB provides the database connection.
type DB struct {
	// The connected client and the application database handle.
	Client *mongo.Client
	Mongo  *mongo.Database
	// Connection info string containing host, port and credentials.
	ConnectionInfo string
	// Name of the application database.
	Name string
}

// NewDB returns a new instance of DB.
func NewDB(connectionInfo, name string) *DB {
	return &DB{
		ConnectionInfo: connectionInfo,
		Name:           name,
	}
}

// Open opens a new database connection and verifies it with a ping.
func Open(db *DB) error {
	if db.ConnectionInfo == "" {
		return fmt.Errorf("connectionInfo required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(db.ConnectionInfo))
	if err != nil {
		return fmt.Errorf("err opening mongo connection: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("err pinging mongo: %w", err)
	}
	db.Client = client
	db.Mongo = client.Database(db.Name)
	return nil
}

// EnsureIndexes creates the indexes the application relies on. The unique
// index on email makes registration race-safe, and the unique indexes on
// userId are what turns a concurrent duplicate follow into a duplicate-key
// error instead of a second edge-list document.
func EnsureIndexes(db *DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}

	if _, err := db.Mongo.Collection("users").Indexes().CreateOne(ctx, unique("email")); err != nil {
		return fmt.Errorf("err creating users index: %w", err)
	}
	if _, err := db.Mongo.Collection("following").Indexes().CreateOne(ctx, unique("userId")); err != nil {
		return fmt.Errorf("err creating following index: %w", err)
	}
	if _, err := db.Mongo.Collection("followers").Indexes().CreateOne(ctx, unique("userId")); err != nil {
		return fmt.Errorf("err creating followers index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func Close(db *DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
