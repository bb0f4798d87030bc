// Package chain talks to the token contract through the chain client binary.
//
// Every call builds a fresh ContractCall or SendTransaction, serialises it to JSON,
// hands it to the binary together with the caller's keys and decodes the first
// line the binary prints. Callers only see the Client interface, so the process
// based implementation can be swapped for a network client.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/process"
)

const (
	ProtocolVersion = 1
	VirtualChainID  = 0
	ContractName    = "BenchmarkToken"

	MethodGetBalance = "getBalance"
	MethodTransfer   = "transfer"
)

// Client queries balances and submits transfers
type Client interface {
	Balance(ctx context.Context, account models.Account) (uint64, error)
	Transfer(ctx context.Context, from, to models.Account, amount uint64) (*models.TransferResult, error)
}

// Observer is notified after every chain call
type Observer interface {
	ObserveChainCall(method string, elapsed time.Duration, err error)
}

var ErrMalformedOutput = errors.New("malformed chain client output")

// Error wraps every failure of a chain call
type Error struct {
	Method string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("chain call %s failed: %v", e.Method, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ProcessClient implements Client by running the chain client binary
type ProcessClient struct {
	runner   process.Runner
	observer Observer
}

func NewProcessClient(runner process.Runner) *ProcessClient {
	return &ProcessClient{runner: runner}
}

// WithObserver registers an observer for call outcomes
func (c *ProcessClient) WithObserver(observer Observer) *ProcessClient {
	c.observer = observer
	return c
}

func contract() models.Contract {
	return models.Contract{
		ProtocolVersion: ProtocolVersion,
		VirtualChainID:  VirtualChainID,
		ContractName:    ContractName,
	}
}

func targetAddress(account models.Account) (models.MethodArgument, error) {
	raw, err := DecodeAddress(account.Address)
	if err != nil {
		return models.MethodArgument{}, fmt.Errorf("account %s has an invalid address: %w", account.Username, err)
	}
	return models.BytesArgument("targetAddress", raw), nil
}

// Balance returns the token balance of account
func (c *ProcessClient) Balance(ctx context.Context, account models.Account) (balance uint64, err error) {
	defer c.observe(MethodGetBalance, time.Now(), &err)

	target, err := targetAddress(account)
	if err != nil {
		return 0, &Error{Method: MethodGetBalance, Err: err}
	}

	call := models.ContractCall{
		Contract:   contract(),
		MethodName: MethodGetBalance,
		Arguments:  []models.MethodArgument{target},
	}

	var result models.CallResult
	if err := c.invoke(ctx, &result, "--call-method", call, "--public-key", account.PublicKey); err != nil {
		return 0, &Error{Method: MethodGetBalance, Err: err}
	}

	if len(result.OutputArguments) == 0 {
		return 0, &Error{Method: MethodGetBalance, Err: fmt.Errorf("%w: no OutputArguments", ErrMalformedOutput)}
	}

	balance, ok := result.OutputArguments[0].Uint64()
	if !ok {
		return 0, &Error{
			Method: MethodGetBalance,
			Err:    fmt.Errorf("%w: output argument is %s, not uint64", ErrMalformedOutput, result.OutputArguments[0].Type()),
		}
	}

	logger.Debug("Balance of %s is %d", account.Username, balance)
	return balance, nil
}

// Transfer moves amount tokens from one account to another, signed with the sender's keys
func (c *ProcessClient) Transfer(ctx context.Context, from, to models.Account, amount uint64) (result *models.TransferResult, err error) {
	defer c.observe(MethodTransfer, time.Now(), &err)

	target, err := targetAddress(to)
	if err != nil {
		return nil, &Error{Method: MethodTransfer, Err: err}
	}

	tx := models.SendTransaction{
		Contract:   contract(),
		MethodName: MethodTransfer,
		Arguments: []models.MethodArgument{
			models.Uint64Argument("amount", amount),
			target,
		},
	}

	logger.Info("Transferring %d from %s to %s", amount, from.Username, to.Username)

	result = &models.TransferResult{}
	if err := c.invoke(ctx, result, "--send-transaction", tx,
		"--public-key", from.PublicKey, "--private-key", from.PrivateKey); err != nil {
		return nil, &Error{Method: MethodTransfer, Err: err}
	}

	if result.TransactionReceipt.Txhash == "" {
		return nil, &Error{Method: MethodTransfer, Err: fmt.Errorf("%w: no transaction hash", ErrMalformedOutput)}
	}

	return result, nil
}

// invoke runs the binary with flag <payload json> followed by extra and decodes
// the first output line into out.
func (c *ProcessClient) invoke(ctx context.Context, out interface{}, flag string, payload interface{}, extra ...string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling %s payload: %w", flag, err)
	}

	args := append([]string{flag, string(body)}, extra...)
	lines, err := c.runner.Run(ctx, args...)
	if err != nil {
		return err
	}

	if len(lines) == 0 || lines[0] == "" {
		return fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	if err := json.Unmarshal([]byte(lines[0]), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return nil
}

func (c *ProcessClient) observe(method string, start time.Time, err *error) {
	if c.observer != nil {
		c.observer.ObserveChainCall(method, time.Since(start), *err)
	}
}
