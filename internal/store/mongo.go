package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gradient-IIITS/TrackMail-UserService/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// codeNamespaceExists is returned by create on an existing collection.
const codeNamespaceExists = 48

// Mongo stores users as flat documents in the Users collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger logger.Logger
}

func NewMongo(ctx context.Context, uri, database string, log logger.Logger) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty mongodb connection string", ErrNotConfigured)
	}
	if database == "" {
		database = DefaultDatabase
	}

	log.Info("Connecting to database", logger.String("database", database))

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	if err := ensureCollection(ctx, db, UsersCollection); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info("Connected to database",
		logger.String("database", database),
		logger.String("collection", UsersCollection))

	return &Mongo{
		client: client,
		coll:   db.Collection(UsersCollection),
		logger: log,
	}, nil
}

// ensureCollection creates name in db unless it already exists.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	if len(names) > 0 {
		return nil
	}

	err = db.CreateCollection(ctx, name)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

func (m *Mongo) InsertUser(ctx context.Context, u *User) error {
	if _, err := m.coll.InsertOne(ctx, userDocument(u)); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	m.logger.DebugCtx(ctx, "Inserted user document",
		logger.String("collection", UsersCollection),
		logger.String("user_id", u.ID))
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// userDocument lays u out flat, extra fields alongside the named ones.
func userDocument(u *User) bson.M {
	doc := make(bson.M, len(u.Extra)+7)
	for k, v := range u.Extra {
		if ReservedKey(k) {
			continue
		}
		doc[k] = v
	}
	doc["_id"] = u.ID
	doc["username"] = u.Username
	doc["first_name"] = u.FirstName
	doc["last_name"] = u.LastName
	doc["email"] = u.Email
	doc["password"] = u.PasswordHash
	doc["created_at"] = u.CreatedAt
	return doc
}
