// Package marketstream implements the MarketDataStream state machine:
// Disconnected -> Connecting -> Subscribing -> Streaming -> (Disconnected
// on error), reconnecting with jittered exponential backoff and
// resubscribing the full token set on every reconnect.
package marketstream

import (
	"context"

	"github.com/polyarb/polyarb/pkg/types"
)

// State is a stream's position in the connection state machine.
type State int

const (
	Disconnected State = iota
	Connecting
	Subscribing
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Stream is the capability the rest of the system depends on: connect,
// maintain a subscription set, and emit sequenced messages per token.
// Messages for a given token arrive in sequence order; across tokens no
// ordering is implied. The caller is the message loop's only reader and
// is expected to be the OrderBookCache's single writer.
type Stream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, tokenIDs []types.TokenId) error
	Unsubscribe(ctx context.Context, tokenIDs []types.TokenId) error
	Messages() <-chan *types.StreamMessage
	State() State
	Close() error
}
