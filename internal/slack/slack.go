// Package slack is the Slack real-time messaging transport of the bot.
package slack

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/slack-go/slack"

	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/router"
)

var ErrInvalidAuth = errors.New("slack rejected the token")

// conn is the part of *slack.RTM the transport uses
type conn interface {
	ManageConnection()
	Disconnect() error
	NewOutgoingMessage(text string, channelID string, options ...slack.RTMsgOption) *slack.OutgoingMessage
	SendMessage(msg *slack.OutgoingMessage)
}

type Transport struct {
	conn   conn
	events <-chan slack.RTMEvent

	mu    sync.RWMutex
	botID string
}

// New prepares an RTM connection for token. Nothing is dialled until Run.
func New(token string) *Transport {
	rtm := slack.New(token).NewRTM()
	return &Transport{conn: rtm, events: rtm.IncomingEvents}
}

// BotID is the user id of the bot, known once the connection is established
func (t *Transport) BotID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.botID
}

func (t *Transport) SendMessage(text, channel string) error {
	if channel == "" {
		return fmt.Errorf("no channel for message %q", text)
	}
	t.conn.SendMessage(t.conn.NewOutgoingMessage(text, channel))
	return nil
}

// Run connects and forwards message events to inbox until ctx is done or
// Slack rejects the credentials.
func (t *Transport) Run(ctx context.Context, inbox chan<- router.Message) error {
	go t.conn.ManageConnection()
	defer func() {
		if err := t.conn.Disconnect(); err != nil {
			logger.Debug("Slack disconnect: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-t.events:
			if !ok {
				return nil
			}
			msg, forward, err := t.handleEvent(event)
			if err != nil {
				return err
			}
			if !forward {
				continue
			}
			select {
			case inbox <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (t *Transport) handleEvent(event slack.RTMEvent) (router.Message, bool, error) {
	switch ev := event.Data.(type) {
	case *slack.ConnectedEvent:
		if ev.Info != nil && ev.Info.User != nil {
			t.mu.Lock()
			t.botID = ev.Info.User.ID
			t.mu.Unlock()
			logger.Info("Connected to Slack as %s (%s)", ev.Info.User.Name, ev.Info.User.ID)
		}
	case *slack.MessageEvent:
		return router.Message{
			Text:    ev.Text,
			User:    ev.User,
			Channel: ev.Channel,
			Subtype: ev.SubType,
		}, true, nil
	case *slack.InvalidAuthEvent:
		return router.Message{}, false, ErrInvalidAuth
	case *slack.RTMError:
		logger.Warn("Slack RTM error: %s", ev.Error())
	case *slack.ConnectionErrorEvent:
		logger.Warn("Slack connection error (attempt %d): %v", ev.Attempt, ev.ErrorObj)
	}
	return router.Message{}, false, nil
}
