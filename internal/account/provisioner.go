// Package account resolves chat usernames to chain accounts, minting a new
// identity the first time a username is seen.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelsos/chainbot/internal/lockmap"
	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/store"
)

// KeyGenerator mints a fresh address and key pair
type KeyGenerator interface {
	Generate(ctx context.Context) (models.KeyPair, error)
}

// ProvisioningError is returned when an account could be neither loaded nor created
type ProvisioningError struct {
	Username string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("could not provision account for %s: %v", e.Username, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Provisioner implements get-or-create over a store and a key generator.
// Resolution of one username is serialized, so a new username is generated
// and persisted exactly once no matter how many callers race for it.
type Provisioner struct {
	store     store.Store
	generator KeyGenerator
	locks     *lockmap.Lockmap
	onCreate  func(models.Account)
}

func NewProvisioner(s store.Store, generator KeyGenerator) *Provisioner {
	return &Provisioner{
		store:     s,
		generator: generator,
		locks:     lockmap.New(64),
	}
}

// OnCreate registers a callback invoked after a new account is persisted
func (p *Provisioner) OnCreate(fn func(models.Account)) {
	p.onCreate = fn
}

// Resolve returns the account of username, creating it on first use
func (p *Provisioner) Resolve(ctx context.Context, username string) (models.Account, error) {
	if username == "" {
		return models.Account{}, &ProvisioningError{Username: username, Err: errors.New("empty username")}
	}

	if err := p.locks.Lock(ctx, username); err != nil {
		return models.Account{}, &ProvisioningError{Username: username, Err: err}
	}
	defer p.locks.Unlock(username)

	account, err := p.store.Load(ctx, username)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return models.Account{}, &ProvisioningError{Username: username, Err: err}
	}

	keys, err := p.generator.Generate(ctx)
	if err != nil {
		return models.Account{}, &ProvisioningError{Username: username, Err: err}
	}

	account = models.NewAccount(username, keys)
	if err := p.store.Save(ctx, account); err != nil {
		return models.Account{}, &ProvisioningError{Username: username, Err: err}
	}

	logger.Info("Created account %s for %s", account.Address, username)
	if p.onCreate != nil {
		p.onCreate(account)
	}

	return account, nil
}
