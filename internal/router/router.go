// Package router matches chat messages against ordered command bindings.
//
// Bindings are not exclusive: every pattern that matches a message runs, in the
// order the bindings were added. Before a handler runs, the accounts of the
// sender and of the bot are resolved concurrently so handlers only deal with
// ready accounts.
package router

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/models"
)

// SubtypeBotMessage marks messages posted by integrations
const SubtypeBotMessage = "bot_message"

// Message is an inbound chat message
type Message struct {
	Text    string
	User    string
	Channel string
	Subtype string
}

// Chat is the outbound side of a chat transport
type Chat interface {
	BotID() string
	SendMessage(text, channel string) error
}

// Resolver returns the account of a username, creating it when needed
type Resolver interface {
	Resolve(ctx context.Context, username string) (models.Account, error)
}

// Observer is notified after every handler run
type Observer interface {
	ObserveCommand(command string, err error)
}

// Request is what a handler gets for one matched binding
type Request struct {
	Chat    Chat
	Message Message
	Sender  models.Account
	Bot     models.Account
	// Match holds the whole match followed by the capture groups
	Match []string
}

// Reply posts text to the channel the message came from
func (r *Request) Reply(text string) error {
	if err := r.Chat.SendMessage(text, r.Message.Channel); err != nil {
		return fmt.Errorf("error sending reply: %w", err)
	}
	return nil
}

type HandlerFunc func(ctx context.Context, req *Request) error

type binding struct {
	name    string
	pattern *regexp.Regexp
	handler HandlerFunc
}

type Router struct {
	resolver         Resolver
	bindings         []binding
	provisionOnSight bool
	observer         Observer
}

func New(resolver Resolver) *Router {
	return &Router{resolver: resolver}
}

// ProvisionOnSight makes Dispatch resolve the sender of every accepted
// message, even when no binding matches
func (r *Router) ProvisionOnSight(enabled bool) *Router {
	r.provisionOnSight = enabled
	return r
}

func (r *Router) WithObserver(observer Observer) *Router {
	r.observer = observer
	return r
}

// Handle appends a binding. Bindings run in the order they are added.
func (r *Router) Handle(name, pattern string, handler HandlerFunc) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern for %s: %w", name, err)
	}
	r.bindings = append(r.bindings, binding{name: name, pattern: re, handler: handler})
	return nil
}

// Accepts reports whether msg should be processed at all. Integration
// messages and the bot's own messages are dropped.
func Accepts(chat Chat, msg Message) bool {
	if msg.Subtype == SubtypeBotMessage {
		return false
	}
	if msg.User == "" || msg.User == chat.BotID() {
		return false
	}
	return true
}

// Dispatch runs every binding matching msg. The first handler error stops the
// remaining bindings and is returned; replies already sent stay sent.
func (r *Router) Dispatch(ctx context.Context, chat Chat, msg Message) error {
	if !Accepts(chat, msg) {
		logger.Debug("Ignoring message from %q with subtype %q", msg.User, msg.Subtype)
		return nil
	}

	if r.provisionOnSight {
		if _, err := r.resolver.Resolve(ctx, msg.User); err != nil {
			return err
		}
	}

	for _, b := range r.bindings {
		match := b.pattern.FindStringSubmatch(msg.Text)
		if match == nil {
			continue
		}

		logger.Debug("Message from %s matched %s", msg.User, b.name)

		req, err := r.request(ctx, chat, msg, match)
		if err == nil {
			err = b.handler(ctx, req)
		}
		if r.observer != nil {
			r.observer.ObserveCommand(b.name, err)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}

	return nil
}

func (r *Router) request(ctx context.Context, chat Chat, msg Message, match []string) (*Request, error) {
	req := &Request{Chat: chat, Message: msg, Match: match}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		account, err := r.resolver.Resolve(gctx, msg.User)
		req.Sender = account
		return err
	})
	g.Go(func() error {
		account, err := r.resolver.Resolve(gctx, chat.BotID())
		req.Bot = account
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return req, nil
}
