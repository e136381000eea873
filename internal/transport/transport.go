// Package transport connects chat front ends to the dispatcher: the local
// terminal and a long-polling chat bridge.
package transport

import (
	"context"

	"github.com/vmunix/swiper/internal/memory"
)

// Session types.
const (
	TypeCLI  = "cli"
	TypeChat = "chat"
)

// Acceptor receives inbound messages.
type Acceptor interface {
	Accept(ctx context.Context, ref memory.SessionRef, msg string) error
}
