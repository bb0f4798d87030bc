// Package mongo keeps accounts as documents of the accounts collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/store"
)

const (
	database   = "chainbot"
	collection = "accounts"
)

// Mongo implements store.Store on a MongoDB database
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connected to uri
func New(ctx context.Context, uri string) (*Mongo, error) {
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err = c.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	m := &Mongo{c: c}

	// username is the lookup key, enforce it in the database as well
	_, err = m.accounts().Indexes().CreateOne(connectCtx, mgo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("could not create username index: %w", err)
	}

	logger.Info("Connected to mongo DB")
	return m, nil
}

func (m *Mongo) accounts() *mgo.Collection {
	return m.c.Database(database).Collection(collection)
}

// Close will close the database connection. Must be called at termination time.
func (m *Mongo) Close() error {
	return m.c.Disconnect(context.Background())
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.c.Ping(ctx, nil)
}

func (m *Mongo) Load(ctx context.Context, username string) (models.Account, error) {
	var account models.Account

	err := m.accounts().FindOne(ctx, bson.M{"username": username}).Decode(&account)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return models.Account{}, store.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("could not load account %s: %w", username, err)
	}
	if !account.Valid() {
		return models.Account{}, fmt.Errorf("%w: %s", store.ErrInvalidAccount, username)
	}

	return account, nil
}

// Save upserts the account document
func (m *Mongo) Save(ctx context.Context, account models.Account) error {
	_, err := m.accounts().UpdateOne(ctx,
		bson.M{"username": account.Username},
		bson.D{
			{
				Key: "$set", Value: bson.D{
					{Key: "address", Value: account.Address},
					{Key: "publicKey", Value: account.PublicKey},
					{Key: "privateKey", Value: account.PrivateKey},
					{Key: "username", Value: account.Username},
				},
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save account %s: %w", account.Username, err)
	}

	return nil
}

func (m *Mongo) Accounts(ctx context.Context) ([]models.Account, error) {
	cursor, err := m.accounts().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("could not list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("could not decode accounts: %w", err)
	}

	return accounts, nil
}
