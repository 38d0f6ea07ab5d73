// ABOUTME: Small typed pub/sub used for client, session, and group event streams
// ABOUTME: Subscriptions are guard objects; releasing one tears down the binding
package events

import "sync"

// Emitter fans a single event stream of type T out to zero or more
// subscribers. Zero value is ready to use.
type Emitter[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int
}

// Subscription is a guard object returned by Emitter.Subscribe. Its
// Release method tears down the binding; calling Release more than
// once is a no-op.
type Subscription struct {
	release func()
	once    sync.Once
}

// Release drops the subscription. Safe to call multiple times.
func (s *Subscription) Release() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// Subscribe registers fn to be called for every future Emit. The
// returned Subscription must be released when the listener is no
// longer interested (e.g. when a client proxy is activated into a
// session, or when it is removed from one).
func (e *Emitter[T]) Subscribe(fn func(T)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.subs[id] = fn

	return &Subscription{release: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}}
}

// Emit calls every current subscriber with event. Subscribers added
// or removed during Emit do not affect the current call's fan-out.
func (e *Emitter[T]) Emit(event T) {
	e.mu.Lock()
	listeners := make([]func(T), 0, len(e.subs))
	for _, fn := range e.subs {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// Listeners reports the current subscriber count. Mainly useful in
// tests asserting a subscription was released.
func (e *Emitter[T]) Listeners() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}
