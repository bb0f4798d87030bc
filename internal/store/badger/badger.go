// Package badger keeps accounts in an embedded BadgerDB, for deployments
// without a Redis server.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/store"
)

var prefix = []byte("account:")

func key(username string) []byte {
	return append(append([]byte{}, prefix...), username...)
}

// Badger implements store.Store on a BadgerDB directory
type Badger struct {
	db *badger.DB
}

// New opens the database in dir. An empty dir keeps everything in memory.
func New(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open badger DB in %q: %w", dir, err)
	}

	return &Badger{db: db}, nil
}

// Close flushes and closes the database. Must be called at termination time.
func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger DB is closed")
	}
	return nil
}

func (b *Badger) Load(_ context.Context, username string) (models.Account, error) {
	var account models.Account

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &account)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
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

func (b *Badger) Save(_ context.Context, account models.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("could not encode account %s: %w", account.Username, err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(account.Username), data)
	})
	if err != nil {
		return fmt.Errorf("could not save account %s: %w", account.Username, err)
	}

	return nil
}

// Accounts iterates over every stored account in key order
func (b *Badger) Accounts(context.Context) ([]models.Account, error) {
	var accounts []models.Account

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var account models.Account
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &account)
			})
			if err != nil {
				return fmt.Errorf("could not decode %s: %w", iter.Item().Key(), err)
			}
			accounts = append(accounts, account)
		}
		return nil
	})

	return accounts, err
}

// badgerLogger routes badger's internal messages to the application logger
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug("badger: "+format, args...)
}
