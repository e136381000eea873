package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/vmunix/swiper/internal/memory"
)

// CLI talks to a single local user, one message per line.
type CLI struct {
	user string
	in   io.Reader
	log  *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewCLI creates a terminal transport for user.
func NewCLI(user string, in io.Reader, out io.Writer, log *slog.Logger) *CLI {
	return &CLI{user: user, in: in, out: out, log: log.With("component", "cli")}
}

// Ref returns the session the terminal user talks as.
func (c *CLI) Ref() memory.SessionRef {
	return memory.SessionRef{Type: TypeCLI, ID: c.user}
}

// Send prints message.
func (c *CLI) Send(_ context.Context, _ string, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, message)
	return err
}

// Run reads lines until "quit", "exit", end of input or ctx is cancelled.
func (c *CLI) Run(ctx context.Context, to Acceptor) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		case line := <-lines:
			line = strings.TrimSpace(line)
			switch strings.ToLower(line) {
			case "":
				continue
			case "quit", "exit":
				c.log.Debug("quit")
				return nil
			}
			if err := to.Accept(ctx, c.Ref(), line); err != nil {
				c.log.Warn("message not accepted", "error", err)
			}
		}
	}
}
