package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/chainbot/internal/keys"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/store"
)

type memStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	saves    int
	loadErr  error
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]models.Account{}}
}

func (m *memStore) Load(_ context.Context, username string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return models.Account{}, m.loadErr
	}
	account, ok := m.accounts[username]
	if !ok {
		return models.Account{}, store.ErrAccountNotFound
	}
	return account, nil
}

func (m *memStore) Save(_ context.Context, account models.Account) error {
	// widen the window between load and save
	time.Sleep(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.accounts[account.Username] = account
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

type countingGenerator struct {
	calls atomic.Int64
	err   error
}

func (g *countingGenerator) Generate(context.Context) (models.KeyPair, error) {
	n := g.calls.Add(1)
	if g.err != nil {
		return models.KeyPair{}, g.err
	}
	return models.KeyPair{
		Address:    fmt.Sprintf("%040x", n),
		PublicKey:  fmt.Sprintf("pub-%d", n),
		PrivateKey: fmt.Sprintf("priv-%d", n),
	}, nil
}

func TestResolveCreatesOnce(t *testing.T) {
	s := newMemStore()
	gen := &countingGenerator{}
	p := NewProvisioner(s, gen)

	var created []models.Account
	p.OnCreate(func(a models.Account) { created = append(created, a) })

	const callers = 50
	results := make([]models.Account, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := p.Resolve(context.Background(), "U1")
			assert.NoError(t, err)
			results[i] = account
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), gen.calls.Load())
	assert.Equal(t, 1, s.saves)
	assert.Len(t, created, 1)
	for _, account := range results {
		assert.Equal(t, results[0], account)
	}
	assert.Equal(t, "U1", results[0].Username)
}

func TestResolveKnownUserSkipsGenerator(t *testing.T) {
	s := newMemStore()
	stored := models.Account{Address: "a1", PublicKey: "pub", PrivateKey: "priv", Username: "U1"}
	s.accounts["U1"] = stored
	gen := &countingGenerator{}

	account, err := NewProvisioner(s, gen).Resolve(context.Background(), "U1")
	require.NoError(t, err)

	assert.Equal(t, stored, account)
	assert.Zero(t, gen.calls.Load())
	assert.Zero(t, s.saves)
}

func TestResolveDistinctUsers(t *testing.T) {
	s := newMemStore()
	gen := &countingGenerator{}
	p := NewProvisioner(s, gen)

	a, err := p.Resolve(context.Background(), "U1")
	require.NoError(t, err)
	b, err := p.Resolve(context.Background(), "U2")
	require.NoError(t, err)

	assert.NotEqual(t, a.Address, b.Address)
	assert.Equal(t, int64(2), gen.calls.Load())
}

func TestResolveGeneratorFailureWritesNothing(t *testing.T) {
	s := newMemStore()
	genErr := &keys.GenerationError{Reason: "expected 3 output lines, got 0"}
	p := NewProvisioner(s, &countingGenerator{err: genErr})

	_, err := p.Resolve(context.Background(), "U1")

	var provErr *ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "U1", provErr.Username)

	var gotGenErr *keys.GenerationError
	assert.ErrorAs(t, err, &gotGenErr)
	assert.Zero(t, s.saves)
	assert.Empty(t, s.accounts)
}

func TestResolveStoreFailures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("load", func(t *testing.T) {
		s := newMemStore()
		s.loadErr = boom
		gen := &countingGenerator{}

		_, err := NewProvisioner(s, gen).Resolve(context.Background(), "U1")
		var provErr *ProvisioningError
		require.ErrorAs(t, err, &provErr)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, gen.calls.Load(), "an unreadable store must not trigger generation")
	})

	t.Run("save", func(t *testing.T) {
		s := newMemStore()
		s.saveErr = boom

		_, err := NewProvisioner(s, &countingGenerator{}).Resolve(context.Background(), "U1")
		var provErr *ProvisioningError
		require.ErrorAs(t, err, &provErr)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty username", func(t *testing.T) {
		_, err := NewProvisioner(newMemStore(), &countingGenerator{}).Resolve(context.Background(), "")
		var provErr *ProvisioningError
		assert.ErrorAs(t, err, &provErr)
	})
}

type blockingStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Load(ctx context.Context, username string) (models.Account, error) {
	close(b.entered)
	<-b.release
	return b.memStore.Load(ctx, username)
}

func TestResolveWaitHonoursContext(t *testing.T) {
	s := &blockingStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
	gen := &countingGenerator{}
	p := NewProvisioner(s, gen)

	first := make(chan error, 1)
	go func() {
		_, err := p.Resolve(context.Background(), "U1")
		first <- err
	}()
	<-s.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Resolve(ctx, "U1")
	var provErr *ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	close(s.release)
	require.NoError(t, <-first)
	assert.Equal(t, int64(1), gen.calls.Load())
}
