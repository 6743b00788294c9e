// Package broadcast keeps the event logs of the current tournament run and
// fans them out to live subscribers. A subscriber always receives the full
// log first and then every later event, with nothing lost or repeated.
package broadcast

import (
	"sync"

	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
)

const (
	scopeAll   = "all"
	scopeMatch = "match"
)

type Broadcaster struct {
	mu       sync.Mutex
	log      []event.TournamentEvent
	games    map[string][]event.GameEvent
	allSubs  map[*Subscription]struct{}
	gameSubs map[string]map[*Subscription]struct{}
	closed   bool
	metrics  *metrics.Metrics
}

func New(m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		games:    map[string][]event.GameEvent{},
		allSubs:  map[*Subscription]struct{}{},
		gameSubs: map[string]map[*Subscription]struct{}{},
		metrics:  m,
	}
}

// Publish appends ev to the tournament log, and its inner game event to the
// match log for MatchGame, then delivers both to live subscribers.
func (b *Broadcaster) Publish(ev event.TournamentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.log = append(b.log, ev)
	for sub := range b.allSubs {
		sub.push(ev)
	}

	if mg, ok := ev.(event.MatchGame); ok {
		b.games[mg.MatchID] = append(b.games[mg.MatchID], mg.GameEvent)
		for sub := range b.gameSubs[mg.MatchID] {
			sub.push(mg.GameEvent)
		}
	}
}

// Subscribe returns a subscription to every tournament event, starting with
// the whole log so far.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	backlog := make([]event.Event, len(b.log))
	for i, ev := range b.log {
		backlog[i] = ev
	}
	sub := newSubscription(backlog, b.unsubscribeAll)
	if b.closed {
		sub.shut()
		return sub
	}
	b.allSubs[sub] = struct{}{}
	b.metrics.SubscriberAdded(scopeAll)
	return sub
}

// SubscribeMatch returns a subscription to the game events of one match,
// starting with that match's log so far.
func (b *Broadcaster) SubscribeMatch(matchID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	games := b.games[matchID]
	backlog := make([]event.Event, len(games))
	for i, ev := range games {
		backlog[i] = ev
	}
	sub := newSubscription(backlog, func(s *Subscription) { b.unsubscribeMatch(matchID, s) })
	if b.closed {
		sub.shut()
		return sub
	}
	if b.gameSubs[matchID] == nil {
		b.gameSubs[matchID] = map[*Subscription]struct{}{}
	}
	b.gameSubs[matchID][sub] = struct{}{}
	b.metrics.SubscriberAdded(scopeMatch)
	return sub
}

func (b *Broadcaster) unsubscribeAll(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.allSubs[s]; ok {
		delete(b.allSubs, s)
		b.metrics.SubscriberRemoved(scopeAll)
	}
}

func (b *Broadcaster) unsubscribeMatch(matchID string, s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.gameSubs[matchID]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.gameSubs, matchID)
	}
	b.metrics.SubscriberRemoved(scopeMatch)
}

// Reset clears the logs for a new run. Live subscribers stay attached.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = nil
	b.games = map[string][]event.GameEvent{}
}

// Log returns a copy of the tournament log.
func (b *Broadcaster) Log() []event.TournamentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.TournamentEvent, len(b.log))
	copy(out, b.log)
	return out
}

// GameLog returns a copy of one match's game log.
func (b *Broadcaster) GameLog(matchID string) []event.GameEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.GameEvent, len(b.games[matchID]))
	copy(out, b.games[matchID])
	return out
}

// Close ends every subscription and drops later publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.allSubs))
	for s := range b.allSubs {
		subs = append(subs, s)
	}
	for _, m := range b.gameSubs {
		for s := range m {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
