package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/safety"
)

const (
	// DefaultQueueSize is each channel's bounded FIFO depth.
	DefaultQueueSize = 256
	// DefaultRatePerMinute is each channel's message budget.
	DefaultRatePerMinute = 20
	// starvationWindow is how long a message waits on an empty token bucket
	// before it starts coalescing with later ones of the same type.
	starvationWindow = 5 * time.Second
	// DefaultSendTimeout bounds one chat send.
	DefaultSendTimeout = 10 * time.Second
)

// Role decides which events a channel receives. The admin channel gets
// everything including command acknowledgements; notify-only channels get
// trade and analysis events.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleNotifyOnly Role = "notify"
)

// Sink delivers one rendered message to a chat channel.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// Bus fans pipeline events out to chat channels. Each channel owns a
// bounded FIFO and a delivery goroutine, so a slow channel can never block
// publishers or its siblings. Queue overflow drops the oldest event and
// injects one synthetic NotifierOverflow marker.
type Bus struct {
	mu       sync.RWMutex
	channels []*Channel
}

// Channel is one chat destination with its queue and rate limit.
type Channel struct {
	name    string
	role    Role
	sink    Sink
	limiter *safety.RateLimiter

	mu          sync.Mutex
	queue       []Event
	overflowed  bool
	wake        chan struct{}
	done        chan struct{}
	maxQueue    int
	sendTimeout time.Duration
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// AddChannel registers a chat channel and returns it. ratePerMinute <= 0
// uses the default budget.
func (b *Bus) AddChannel(name string, role Role, sink Sink, ratePerMinute int) *Channel {
	if ratePerMinute <= 0 {
		ratePerMinute = DefaultRatePerMinute
	}
	c := &Channel{
		name:        name,
		role:        role,
		sink:        sink,
		limiter:     safety.PerMinute("notifier:"+name, ratePerMinute),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		maxQueue:    DefaultQueueSize,
		sendTimeout: DefaultSendTimeout,
	}

	b.mu.Lock()
	b.channels = append(b.channels, c)
	b.mu.Unlock()
	return c
}

// Publish enqueues the event on every channel whose role accepts it.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.channels {
		if event.Ack && c.role != RoleAdmin {
			continue
		}
		c.enqueue(event)
	}
}

// Publishf builds and publishes an event with a formatted message.
func (b *Bus) Publishf(t Type, format string, args ...interface{}) {
	b.Publish(Event{Type: t, Message: fmt.Sprintf(format, args...)})
}

// Ack publishes a command acknowledgement; only the admin channel sees it.
func (b *Bus) Ack(format string, args ...interface{}) {
	b.Publish(Event{Type: OrderSubmitted, Ack: true, Message: fmt.Sprintf(format, args...)})
}

// Start launches one delivery goroutine per channel. It returns after
// spawning; cancel ctx and call Drain to stop.
func (b *Bus) Start(ctx context.Context) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.channels {
		go c.run(ctx)
	}
}

// Drain waits until every channel's queue is flushed or the deadline
// passes; afterwards remaining events are dropped.
func (b *Bus) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	b.mu.RLock()
	channels := b.channels
	b.mu.RUnlock()

	for _, c := range channels {
		for {
			c.mu.Lock()
			empty := len(c.queue) == 0
			c.mu.Unlock()
			if empty || time.Now().After(deadline) {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// enqueue appends to the FIFO, dropping the oldest entry when full. The
// first drop of an overflow episode injects a NotifierOverflow marker.
func (c *Channel) enqueue(event Event) {
	c.mu.Lock()
	if len(c.queue) >= c.maxQueue {
		// Make room for the incoming event, plus the synthetic marker on the
		// first drop of an overflow episode, without exceeding the bound.
		need := 1
		if !c.overflowed {
			need = 2
		}
		drop := len(c.queue) - c.maxQueue + need
		if drop > len(c.queue) {
			drop = len(c.queue)
		}
		c.queue = c.queue[drop:]
		if !c.overflowed {
			c.overflowed = true
			c.queue = append(c.queue, Event{
				Type:      NotifierOverflow,
				Timestamp: time.Now(),
				Message:   fmt.Sprintf("notifier queue for %s overflowed, oldest events dropped", c.name),
			})
		}
	} else if len(c.queue) < c.maxQueue/2 {
		c.overflowed = false
	}
	c.queue = append(c.queue, event)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Channel) dequeue() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Event{}, false
	}
	event := c.queue[0]
	c.queue = c.queue[1:]
	return event, true
}

// run delivers events serially. When the token bucket stays empty past the
// starvation window, queued events coalesce by type into summary messages.
func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	for {
		event, ok := c.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
				continue
			}
		}

		allowed, err := c.limiter.WaitTimeout(ctx, starvationWindow)
		if err != nil {
			return
		}
		if allowed {
			c.send(ctx, event.Message)
			continue
		}

		// Starved: absorb the backlog and deliver one message per type.
		batch := map[Type][]Event{event.Type: {event}}
		order := []Type{event.Type}
		for {
			next, more := c.dequeue()
			if !more {
				break
			}
			if _, seen := batch[next.Type]; !seen {
				order = append(order, next.Type)
			}
			batch[next.Type] = append(batch[next.Type], next)
		}

		for _, t := range order {
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			c.send(ctx, coalesce(t, batch[t]))
		}
	}
}

func (c *Channel) send(ctx context.Context, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	// Delivery is best-effort; a failed send is dropped, not retried, so
	// one dead channel cannot stall the pipeline.
	_ = c.sink.Send(sendCtx, text)
}

// coalesce merges same-type events into one message carrying the count and
// the most recent body.
func coalesce(t Type, batch []Event) string {
	if len(batch) == 1 {
		return batch[0].Message
	}
	last := batch[len(batch)-1]
	return fmt.Sprintf("[%s x%d] %s", t, len(batch), last.Message)
}
