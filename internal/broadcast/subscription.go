package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
)

// ErrClosed is returned by Next once a closed subscription is drained.
var ErrClosed = errors.New("subscription closed")

// Subscription is a private, unbounded delivery queue. Publishers never block
// on a slow reader.
type Subscription struct {
	mu     sync.Mutex
	queue  []event.Event
	notify chan struct{}
	closed bool

	unsubscribe func(*Subscription)
	once        sync.Once
}

func newSubscription(backlog []event.Event, unsubscribe func(*Subscription)) *Subscription {
	s := &Subscription{
		queue:       backlog,
		notify:      make(chan struct{}, 1),
		unsubscribe: unsubscribe,
	}
	if len(backlog) > 0 {
		s.notify <- struct{}{}
	}
	return s
}

func (s *Subscription) push(ev event.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available, ctx is done, or the subscription
// is closed and empty.
func (s *Subscription) Next(ctx context.Context) (event.Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close stops delivery. Events already queued can still be read.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe(s)
		}
		s.shut()
	})
}

func (s *Subscription) shut() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}
