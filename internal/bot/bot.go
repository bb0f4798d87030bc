// Package bot connects a chat transport to the command router.
package bot

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/router"
)

// Transport is a chat connection. Run delivers inbound messages to inbox
// until ctx is done or the connection fails, and never sends after returning.
type Transport interface {
	router.Chat
	Run(ctx context.Context, inbox chan<- router.Message) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, chat router.Chat, msg router.Message) error
}

type Observer interface {
	ObserveMessage(err error)
}

type Bot struct {
	transport   Transport
	dispatcher  Dispatcher
	maxInFlight int
	observer    Observer
}

func New(transport Transport, dispatcher Dispatcher, maxInFlight int) *Bot {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Bot{
		transport:   transport,
		dispatcher:  dispatcher,
		maxInFlight: maxInFlight,
	}
}

func (b *Bot) WithObserver(observer Observer) *Bot {
	b.observer = observer
	return b
}

// Run serves messages until the transport stops. Each message is handled on
// its own goroutine, at most maxInFlight at a time. A failed message is logged
// and does not stop the bot.
func (b *Bot) Run(ctx context.Context) error {
	inbox := make(chan router.Message)
	transportErr := make(chan error, 1)

	go func() {
		err := b.transport.Run(ctx, inbox)
		close(inbox)
		transportErr <- err
	}()

	var handlers errgroup.Group
	handlers.SetLimit(b.maxInFlight)

	for msg := range inbox {
		msg := msg
		handlers.Go(func() error {
			b.handle(ctx, msg)
			return nil
		})
	}

	_ = handlers.Wait()

	err := <-transportErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bot) handle(ctx context.Context, msg router.Message) {
	id := uuid.NewString()
	logger.Debug("[%s] message from %s in %s", id, msg.User, msg.Channel)

	err := b.dispatcher.Dispatch(ctx, b.transport, msg)
	if err != nil {
		logger.Error("[%s] failed handling message from %s: %v", id, msg.User, err)
	}

	if b.observer != nil {
		b.observer.ObserveMessage(err)
	}
}
