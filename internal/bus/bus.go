// Package bus is the in-process event bus the pipeline publishes progress on.
// Publishing never blocks: a slow consumer loses messages, the pipeline does not wait.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haricheung/grantflow/internal/types"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// Bus fans run events out to per-type subscribers and to a single tap.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[types.MessageType][]chan types.Message
	tapCh       chan types.Message
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Bus. A nil logger discards drop warnings.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		subscribers: make(map[types.MessageType][]chan types.Message),
		tapCh:       make(chan types.Message, tapBufSize),
		logger:      logger,
		now:         time.Now,
	}
}

// Publish fans out msg to all subscribers of msg.Type and to the tap.
// Missing ID and Timestamp are filled in.
//
// Expectations:
//   - Never blocks; a full subscriber or tap channel drops the message with a warning
//   - Every subscriber of msg.Type receives its own copy
func (b *Bus) Publish(msg types.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	subs := b.subscribers[msg.Type]
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			b.logger.Warn("[BUS] subscriber channel full; message dropped", "type", msg.Type, "stage", msg.Stage)
		}
	}

	select {
	case b.tapCh <- msg:
	default:
		b.logger.Warn("[BUS] tap channel full; message dropped", "type", msg.Type)
	}
}

// Subscribe returns a channel that delivers messages of type t.
// Each call creates a new independent subscriber.
func (b *Bus) Subscribe(t types.MessageType) <-chan types.Message {
	ch := make(chan types.Message, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[t] = append(b.subscribers[t], ch)
	b.mu.Unlock()
	return ch
}

// Tap returns the channel that sees every published message. Only one
// consumer should read it; every call returns the same channel.
func (b *Bus) Tap() <-chan types.Message {
	return b.tapCh
}
