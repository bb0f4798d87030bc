// Package tui is a terminal chat transport for talking to the bot locally.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/chainbot/internal/router"
)

const (
	ConsoleChannel = "console"
	ConsoleBotID   = "chainbot"
)

// Console implements the bot transport on top of a bubbletea program. Lines
// typed by the user become messages from user; bot replies land in the
// transcript.
type Console struct {
	user    string
	program *tea.Program
	lines   chan string
	done    chan struct{}
}

func NewConsole(user, logFile string, opts ...tea.ProgramOption) *Console {
	c := &Console{
		user:  user,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	c.program = tea.NewProgram(NewModel(user, logFile, c.submit), opts...)
	return c
}

func (c *Console) submit(text string) {
	select {
	case c.lines <- text:
	case <-c.done:
	}
}

func (c *Console) BotID() string {
	return ConsoleBotID
}

func (c *Console) SendMessage(text, _ string) error {
	c.program.Send(Reply{Text: text})
	return nil
}

// ObserveMessage shows the outcome of a handled message in the transcript
func (c *Console) ObserveMessage(err error) {
	c.program.Send(Handled{Err: err})
}

// Run shows the console until the user quits or ctx is done
func (c *Console) Run(ctx context.Context, inbox chan<- router.Message) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for {
			select {
			case <-ctx.Done():
				c.program.Quit()
				return
			case text := <-c.lines:
				msg := router.Message{Text: text, User: c.user, Channel: ConsoleChannel}
				select {
				case inbox <- msg:
				case <-ctx.Done():
					c.program.Quit()
					return
				}
			}
		}
	}()

	_, err := c.program.Run()
	close(c.done)
	cancel()
	<-forwarded

	if err != nil {
		return fmt.Errorf("failed to run console: %w", err)
	}
	return nil
}
