package replication

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/internal/services/events"
)

// Transport delivers messages to connected clients. Implementations must
// not block: pushes are fire-and-forget and the next full push heals a
// dropped one.
type Transport interface {
	SendTo(playerID uuid.UUID, msg Message)
	Broadcast(msg Message)
}

// Fanout delivers every message through each transport in order.
type Fanout []Transport

func (f Fanout) SendTo(playerID uuid.UUID, msg Message) {
	for _, t := range f {
		t.SendTo(playerID, msg)
	}
}

func (f Fanout) Broadcast(msg Message) {
	for _, t := range f {
		t.Broadcast(msg)
	}
}

type outbound struct {
	playerID uuid.UUID
	msg      Message
}

// PubSub mirrors messages onto redis pub/sub from a background goroutine.
// Messages are dropped when the buffer is full or after Close.
type PubSub struct {
	broadcaster *events.Broadcaster
	logger      *slog.Logger
	queue       chan outbound
	done        chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewPubSub starts the publishing goroutine. Call Close to stop it.
func NewPubSub(b *events.Broadcaster, buffer int, logger *slog.Logger) *PubSub {
	p := &PubSub{
		broadcaster: b,
		logger:      logger,
		queue:       make(chan outbound, buffer),
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *PubSub) SendTo(playerID uuid.UUID, msg Message) {
	p.enqueue(outbound{playerID: playerID, msg: msg})
}

func (p *PubSub) Broadcast(msg Message) {
	p.enqueue(outbound{msg: msg})
}

func (p *PubSub) enqueue(o outbound) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Debug("Pub/sub closed, dropping message", "type", o.msg.Type)
		return
	}
	select {
	case p.queue <- o:
	default:
		p.logger.Warn("Pub/sub buffer full, dropping message", "type", o.msg.Type)
	}
}

// Close flushes queued messages and stops the publisher. It is safe to
// call more than once.
func (p *PubSub) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *PubSub) run() {
	defer close(p.done)
	ctx := context.Background()
	for o := range p.queue {
		var err error
		if o.playerID == uuid.Nil {
			err = p.broadcaster.PublishToWorld(ctx, o.msg)
		} else {
			err = p.broadcaster.PublishToPlayer(ctx, o.playerID, o.msg)
		}
		if err != nil {
			p.logger.Debug("Pub/sub publish failed", "type", o.msg.Type, "error", err)
		}
	}
}
