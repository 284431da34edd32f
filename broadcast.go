package sessionkit

import "sync"

const subscriptionBuffer = 8

// Subscription delivers session-state updates to one consumer. The channel
// carries the most recent states; a slow consumer loses intermediate values
// but always observes the latest one.
type Subscription struct {
	id uint64
	ch chan SessionState
}

// States is the receive side of the subscription. It is closed by
// [Manager.Unsubscribe] and [Manager.Close].
func (s *Subscription) States() <-chan SessionState {
	return s.ch
}

// broadcaster owns the published SessionState. Only the Manager and its
// renewal path write it; consumers read snapshots and subscriptions.
type broadcaster struct {
	mu     sync.RWMutex
	state  SessionState
	subs   map[uint64]chan SessionState
	next   uint64
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		state: SessionState{Loading: true},
		subs:  make(map[uint64]chan SessionState),
	}
}

// cloneState detaches the user pointer so consumers can never reach stored
// state through a published value.
func cloneState(s SessionState) SessionState {
	if s.User != nil {
		user := *s.User
		s.User = &user
	}
	return s
}

func (b *broadcaster) Current() SessionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneState(b.state)
}

func (b *broadcaster) publish(s SessionState) {
	s = cloneState(s)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.state = s

	for _, ch := range b.subs {
		send := cloneState(s)
		select {
		case ch <- send:
		default:
			// Full buffer: drop the oldest queued state so the newest
			// always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- send:
			default:
			}
		}
	}
}

func (b *broadcaster) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan SessionState, subscriptionBuffer)
	b.next++
	sub := &Subscription{id: b.next, ch: ch}
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.id] = ch
	// Seed with the current state so subscribers need no separate read.
	ch <- cloneState(b.state)
	return sub
}

func (b *broadcaster) unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(ch)
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
