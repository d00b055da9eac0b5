package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adwski/liveide-collab/backend/model"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultDatabase       = "liveide"
	defaultCollection     = "users"
)

var ErrNotInitialized = errors.New("mongo client not initialized")

type Config struct {
	URI        string
	Database   string
	Collection string
}

// userDoc is the subset of the account document the roster needs.
type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email,omitempty"`
	AvatarURL string             `bson:"avatarUrl,omitempty"`
}

func (d *userDoc) user() model.User {
	return model.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		AvatarURL: d.AvatarURL,
	}
}

// Directory reads and upserts user documents by display name.
type Directory struct {
	raw *mongo.Client
	col *mongo.Collection
}

func NewDirectory(ctx context.Context, cfg Config) (*Directory, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err = c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	col := c.Database(cfg.Database).Collection(cfg.Collection)
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	})
	return &Directory{raw: c, col: col}, nil
}

// Ensure returns the user document for name, inserting it if absent.
func (d *Directory) Ensure(ctx context.Context, name string) (model.User, error) {
	if d == nil || d.col == nil {
		return model.User{}, ErrNotInitialized
	}
	var doc userDoc
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	err := d.col.FindOneAndUpdate(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{"name": name, "createdAt": time.Now().UTC()}},
		opts,
	).Decode(&doc)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to upsert user %q: %w", name, err)
	}
	return doc.user(), nil
}

func (d *Directory) List(ctx context.Context) ([]model.User, error) {
	if d == nil || d.col == nil {
		return nil, ErrNotInitialized
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{"name": 1, "email": 1, "avatarUrl": 1})
	cur, err := d.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	out := make([]model.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].user())
	}
	return out, nil
}

func (d *Directory) Close(ctx context.Context) error {
	if d == nil || d.raw == nil {
		return nil
	}
	return d.raw.Disconnect(ctx)
}
