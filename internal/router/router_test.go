package router

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kelsos/chainbot/internal/chain"
	"github.com/kelsos/chainbot/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const botID = "UBOT"

type fakeChat struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (c *fakeChat) BotID() string { return botID }

func (c *fakeChat) SendMessage(text, channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeChat) replies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type fakeResolver struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	calls    int
	err      error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{accounts: map[string]models.Account{}}
}

func (r *fakeResolver) Resolve(_ context.Context, username string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return models.Account{}, r.err
	}
	if account, ok := r.accounts[username]; ok {
		return account, nil
	}
	account := models.Account{
		Address:    fmt.Sprintf("%040x", len(r.accounts)+1),
		PublicKey:  "pub" + username,
		PrivateKey: "priv" + username,
		Username:   username,
	}
	r.accounts[username] = account
	return account, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeLedger is an in-memory token contract
type fakeLedger struct {
	mu         sync.Mutex
	balances   map[string]uint64
	height     uint64
	calls      int
	balanceErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[string]uint64{}}
}

func (l *fakeLedger) Balance(_ context.Context, account models.Account) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.balanceErr != nil {
		return 0, l.balanceErr
	}
	return l.balances[account.Address], nil
}

func (l *fakeLedger) Transfer(_ context.Context, from, to models.Account, amount uint64) (*models.TransferResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.balances[from.Address] < amount {
		return nil, &chain.Error{Method: chain.MethodTransfer, Err: errors.New("insufficient funds")}
	}
	l.balances[from.Address] -= amount
	l.balances[to.Address] += amount
	l.height++

	result := &models.TransferResult{BlockHeight: models.Number(l.height)}
	result.TransactionReceipt.Txhash = base64.StdEncoding.EncodeToString([]byte{0xbe, 0xef, byte(l.height)})
	return result, nil
}

func (l *fakeLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type testEnv struct {
	router   *Router
	chat     *fakeChat
	resolver *fakeResolver
	ledger   *fakeLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		chat:     &fakeChat{},
		resolver: newFakeResolver(),
		ledger:   newFakeLedger(),
	}
	env.router = New(env.resolver).ProvisionOnSight(true)
	require.NoError(t, NewCommands(env.ledger, env.resolver, 100).Register(env.router))
	return env
}

func (e *testEnv) account(t *testing.T, username string) models.Account {
	t.Helper()
	account, err := e.resolver.Resolve(context.Background(), username)
	require.NoError(t, err)
	return account
}

func (e *testEnv) fund(t *testing.T, username string, amount uint64) {
	t.Helper()
	account := e.account(t, username)
	e.ledger.mu.Lock()
	e.ledger.balances[account.Address] = amount
	e.ledger.mu.Unlock()
}

func (e *testEnv) dispatch(text, user string) error {
	return e.router.Dispatch(context.Background(), e.chat, Message{Text: text, User: user, Channel: "C1"})
}

func TestAddress(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.dispatch("Get my address", "U1"))
	assert.Equal(t, []string{"<@U1> pubU1"}, env.chat.replies())
}

func TestBalanceReply(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "U1", 42)

	require.NoError(t, env.dispatch("get my balance", "U1"))
	assert.Equal(t, []string{"<@U1> pubU1 has 42 magic internet money"}, env.chat.replies())
}

func TestPullRequestAward(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, botID, 1000)

	require.NoError(t, env.dispatch("hey, I opened a pull request!", "U1"))

	assert.Equal(t, []string{
		"Transfering 100 to <@U1> pubU1",
		"Transaction beef01 committed to block 1",
		"<@U1> pubU1 has 100 magic internet money",
		"<@UBOT> pubUBOT now has 900 magic internet money",
	}, env.chat.replies())
}

func TestTransfer(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "U1", 500)
	env.account(t, "U2")

	require.NoError(t, env.dispatch("please send 30 to <@U2>", "U1"))

	assert.Equal(t, []string{
		"Transfering 30 from <@U1> pubU1 to <@U2> pubU2",
		"Transaction beef01 committed to block 1",
		"<@U1> pubU1 now has 470 magic internet money",
		"<@U2> pubU2 now has 30 magic internet money",
	}, env.chat.replies())

	u1, u2 := env.account(t, "U1"), env.account(t, "U2")
	assert.Equal(t, uint64(500), env.ledger.balances[u1.Address]+env.ledger.balances[u2.Address])
}

func TestTransferCreatesRecipient(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "U1", 10)

	require.NoError(t, env.dispatch("transfer 10 to <@UNEW>", "U1"))

	_, ok := env.resolver.accounts["UNEW"]
	assert.True(t, ok)
	assert.Contains(t, env.chat.replies(), "<@UNEW> pubUNEW now has 10 magic internet money")
}

func TestTransferPattern(t *testing.T) {
	env := newTestEnv(t)

	for _, text := range []string{
		"t 5 to <@U2>",
		"transfer five to <@U2>",
		"send 5 to U2",
	} {
		require.NoError(t, env.dispatch(text, "U1"), text)
	}
	assert.Empty(t, env.chat.replies())
	assert.Zero(t, env.ledger.callCount())
}

func TestTransferVerbIgnoresCase(t *testing.T) {
	for _, text := range []string{"Transfer 5 to <@U2>", "SEND 5 to <@U2>"} {
		t.Run(text, func(t *testing.T) {
			env := newTestEnv(t)
			env.fund(t, "U1", 5)

			require.NoError(t, env.dispatch(text, "U1"))

			replies := env.chat.replies()
			require.NotEmpty(t, replies)
			assert.Equal(t, "Transfering 5 from <@U1> pubU1 to <@U2> pubU2", replies[0])
			assert.Contains(t, replies, "<@U2> pubU2 now has 5 magic internet money")
		})
	}
}

func TestIgnoredMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"bot message subtype", Message{Text: "get my balance", User: "U1", Channel: "C1", Subtype: SubtypeBotMessage}},
		{"own message", Message{Text: "get my balance", User: botID, Channel: "C1"}},
		{"own message with subtype", Message{Text: "I opened a pull request", User: botID, Channel: "C1", Subtype: "thread_broadcast"}},
		{"no author", Message{Text: "get my balance", Channel: "C1", Subtype: "message_changed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			require.NoError(t, env.router.Dispatch(context.Background(), env.chat, tt.msg))

			assert.Empty(t, env.chat.replies())
			assert.Zero(t, env.resolver.callCount())
			assert.Zero(t, env.ledger.callCount())
		})
	}
}

func TestProvisionOnSight(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.dispatch("good morning", "U7"))
	assert.Contains(t, env.resolver.accounts, "U7")
	assert.Empty(t, env.chat.replies())

	env.router.ProvisionOnSight(false)
	require.NoError(t, env.dispatch("good morning", "U8"))
	assert.NotContains(t, env.resolver.accounts, "U8")
}

func TestChainFailureStopsWithoutReply(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.balanceErr = &chain.Error{Method: chain.MethodGetBalance, Err: chain.ErrMalformedOutput}

	err := env.dispatch("get my balance", "U1")

	var chainErr *chain.Error
	require.ErrorAs(t, err, &chainErr)
	assert.ErrorIs(t, err, chain.ErrMalformedOutput)
	assert.Empty(t, env.chat.replies())

	// the router keeps serving
	env.ledger.balanceErr = nil
	require.NoError(t, env.dispatch("get my address", "U1"))
	assert.Equal(t, []string{"<@U1> pubU1"}, env.chat.replies())
}

func TestResolveFailure(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.err = errors.New("store down")

	err := env.dispatch("get my address", "U1")
	assert.Error(t, err)
	assert.Empty(t, env.chat.replies())
}

func TestBindingsRunInOrderAndStopOnError(t *testing.T) {
	resolver := newFakeResolver()
	r := New(resolver)
	chat := &fakeChat{}

	var ran []string
	record := func(name string, err error) HandlerFunc {
		return func(context.Context, *Request) error {
			ran = append(ran, name)
			return err
		}
	}

	require.NoError(t, r.Handle("first", `hello`, record("first", nil)))
	require.NoError(t, r.Handle("unmatched", `goodbye`, record("unmatched", nil)))
	require.NoError(t, r.Handle("second", `(?i)HELLO`, record("second", nil)))

	require.NoError(t, r.Dispatch(context.Background(), chat, Message{Text: "hello", User: "U1"}))
	assert.Equal(t, []string{"first", "second"}, ran)

	ran = nil
	boom := errors.New("boom")
	require.NoError(t, r.Handle("third", `hello`, record("third", nil)))
	r.bindings[0].handler = record("first", boom)

	err := r.Dispatch(context.Background(), chat, Message{Text: "hello", User: "U1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first"}, ran)
}

func TestRequestCarriesAccountsAndGroups(t *testing.T) {
	resolver := newFakeResolver()
	r := New(resolver)

	var got *Request
	require.NoError(t, r.Handle("echo", `echo (\w+)`, func(_ context.Context, req *Request) error {
		got = req
		return nil
	}))

	require.NoError(t, r.Dispatch(context.Background(), &fakeChat{}, Message{Text: "echo hi", User: "U1", Channel: "C9"}))

	require.NotNil(t, got)
	assert.Equal(t, "U1", got.Sender.Username)
	assert.Equal(t, botID, got.Bot.Username)
	assert.Equal(t, []string{"echo hi", "hi"}, got.Match)
	assert.Equal(t, "C9", got.Message.Channel)
}

func TestInvalidPattern(t *testing.T) {
	assert.Error(t, New(newFakeResolver()).Handle("bad", `(`, nil))
}

type countingObserver struct {
	commands map[string]int
}

func (o *countingObserver) ObserveCommand(command string, err error) {
	key := command
	if err != nil {
		key += ":error"
	}
	o.commands[key]++
}

func TestObserver(t *testing.T) {
	env := newTestEnv(t)
	obs := &countingObserver{commands: map[string]int{}}
	env.router.WithObserver(obs)

	require.NoError(t, env.dispatch("get my address", "U1"))
	env.ledger.balanceErr = errors.New("boom")
	assert.Error(t, env.dispatch("get my balance", "U1"))

	assert.Equal(t, map[string]int{"address": 1, "balance:error": 1}, obs.commands)
}
