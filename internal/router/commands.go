package router

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/kelsos/chainbot/internal/chain"
	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
)

const (
	PatternAddress     = `(?i)^get my address$`
	PatternBalance     = `(?i)^get my balance$`
	PatternPullRequest = `(?i)I opened a pull request`
	PatternTransfer    = `(?i:transfer|send) (\d+) to <@(\w+)>`
)

// Commands implements the token commands on top of a chain client
type Commands struct {
	client   chain.Client
	resolver Resolver
	award    uint64
}

func NewCommands(client chain.Client, resolver Resolver, award uint64) *Commands {
	return &Commands{client: client, resolver: resolver, award: award}
}

// Register binds the commands to r in their matching order
func (c *Commands) Register(r *Router) error {
	bindings := []struct {
		name    string
		pattern string
		handler HandlerFunc
	}{
		{"address", PatternAddress, c.Address},
		{"balance", PatternBalance, c.Balance},
		{"pull_request", PatternPullRequest, c.PullRequest},
		{"transfer", PatternTransfer, c.Transfer},
	}

	for _, b := range bindings {
		if err := r.Handle(b.name, b.pattern, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *Commands) Address(_ context.Context, req *Request) error {
	return req.Reply(req.Sender.Mention())
}

func (c *Commands) Balance(ctx context.Context, req *Request) error {
	balance, err := c.client.Balance(ctx, req.Sender)
	if err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("%s has %d magic internet money", req.Sender.Mention(), balance))
}

// PullRequest awards the sender from the bot's own account
func (c *Commands) PullRequest(ctx context.Context, req *Request) error {
	if err := req.Reply(fmt.Sprintf("Transfering %d to %s", c.award, req.Sender.Mention())); err != nil {
		return err
	}

	if err := c.transfer(ctx, req, req.Bot, req.Sender, c.award); err != nil {
		return err
	}

	balances, err := c.balances(ctx, req.Sender, req.Bot)
	if err != nil {
		return err
	}

	if err := req.Reply(fmt.Sprintf("%s has %d magic internet money", req.Sender.Mention(), balances[0])); err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("%s now has %d magic internet money", req.Bot.Mention(), balances[1]))
}

// Transfer moves tokens from the sender to the mentioned user
func (c *Commands) Transfer(ctx context.Context, req *Request) error {
	amount, err := strconv.ParseUint(req.Match[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", req.Match[1], err)
	}

	recipient, err := c.resolver.Resolve(ctx, req.Match[2])
	if err != nil {
		return err
	}

	if err := req.Reply(fmt.Sprintf("Transfering %d from %s to %s",
		amount, req.Sender.Mention(), recipient.Mention())); err != nil {
		return err
	}

	if err := c.transfer(ctx, req, req.Sender, recipient, amount); err != nil {
		return err
	}

	balances, err := c.balances(ctx, req.Sender, recipient)
	if err != nil {
		return err
	}

	if err := req.Reply(fmt.Sprintf("%s now has %d magic internet money", req.Sender.Mention(), balances[0])); err != nil {
		return err
	}
	return req.Reply(fmt.Sprintf("%s now has %d magic internet money", recipient.Mention(), balances[1]))
}

func (c *Commands) transfer(ctx context.Context, req *Request, from, to models.Account, amount uint64) error {
	result, err := c.client.Transfer(ctx, from, to, amount)
	if err != nil {
		return err
	}

	hash, err := chain.HashToHex(result.TransactionReceipt.Txhash)
	if err != nil {
		return &chain.Error{Method: chain.MethodTransfer, Err: err}
	}

	logger.Info("Transaction %s committed to block %d", hash, result.BlockHeight)
	return req.Reply(fmt.Sprintf("Transaction %s committed to block %d", hash, result.BlockHeight))
}

// balances reads all balances concurrently and returns them in argument order
func (c *Commands) balances(ctx context.Context, accounts ...models.Account) ([]uint64, error) {
	balances := make([]uint64, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			balance, err := c.client.Balance(gctx, account)
			balances[i] = balance
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}
