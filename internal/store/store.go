// Package store defines the account persistence used by the bot.
// Implementations own the durable copy of every account; callers hold
// transient copies only.
package store

import (
	"context"
	"errors"

	"github.com/kelsos/chainbot/internal/models"
)

// Store persists accounts keyed by username
type Store interface {
	// Load returns ErrAccountNotFound when username has no stored account
	Load(ctx context.Context, username string) (models.Account, error)
	Save(ctx context.Context, account models.Account) error
	Ping(ctx context.Context) error
	Close() error
}

// Lister is implemented by stores that can enumerate their accounts
type Lister interface {
	Accounts(ctx context.Context) ([]models.Account, error)
}

// Errors returned
var (
	ErrAccountNotFound = errors.New("account was not found in store")
	ErrInvalidAccount  = errors.New("stored account is incomplete")
)
