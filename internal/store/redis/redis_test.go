package redis

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/store"
)

var _ store.Store = (*Redis)(nil)
var _ store.Lister = (*Redis)(nil)

func newTestStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	r, err := New(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r, mr
}

func TestSaveAndLoad(t *testing.T) {
	r, mr := newTestStore(t)
	ctx := context.Background()

	_, err := r.Load(ctx, "U1")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	account := models.Account{Address: "a1", PublicKey: "pub", PrivateKey: "priv", Username: "U1"}
	require.NoError(t, r.Save(ctx, account))

	loaded, err := r.Load(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, account, loaded)

	// same hash layout as HMSET username {address, publicKey, privateKey, username}
	assert.Equal(t, "pub", mr.HGet("U1", "publicKey"))
}

func TestLoadIncompleteHash(t *testing.T) {
	r, mr := newTestStore(t)
	mr.HSet("U2", "publicKey", "pub")

	_, err := r.Load(context.Background(), "U2")
	assert.ErrorIs(t, err, store.ErrInvalidAccount)
}

func TestAccounts(t *testing.T) {
	r, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, models.Account{Address: "a1", PublicKey: "p1", PrivateKey: "k1", Username: "U1"}))
	require.NoError(t, r.Save(ctx, models.Account{Address: "a2", PublicKey: "p2", PrivateKey: "k2", Username: "U2"}))
	require.NoError(t, mr.Set("unrelated", "value"))
	mr.HSet("partial", "address", "a3")

	accounts, err := r.Accounts(ctx)
	require.NoError(t, err)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })

	require.Len(t, accounts, 2)
	assert.Equal(t, "U1", accounts[0].Username)
	assert.Equal(t, "U2", accounts[1].Username)
}

func TestNewInvalidURL(t *testing.T) {
	_, err := New(context.Background(), "http://not-redis")
	assert.Error(t, err)
}
