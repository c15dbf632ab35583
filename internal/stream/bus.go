// Package stream is a small push-based event layer: a multicast Bus plus
// pure combinators (Filter, Map, Merge, Throttle) over any Source.
//
// Delivery is synchronous. A Publish call returns after every subscriber
// registered before it has run, in registration order.
package stream

import (
	"sync"
	"sync/atomic"
)

// Source is anything that can be observed.
type Source[T any] interface {
	Subscribe(fn func(T)) *Subscription
}

// SourceFunc adapts a plain function to Source.
type SourceFunc[T any] func(fn func(T)) *Subscription

func (f SourceFunc[T]) Subscribe(fn func(T)) *Subscription { return f(fn) }

// Subscription is the handle returned by Subscribe. Unsubscribe is safe to
// call more than once and on a nil handle.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription wraps cancel so it runs at most once.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type observer[T any] struct {
	fn     func(T)
	closed atomic.Bool
}

// Bus is a hot multicast channel. There is no replay: late subscribers only
// see events published after they registered.
type Bus[T any] struct {
	mu        sync.Mutex
	observers []*observer[T]
}

// NewBus returns an empty bus.
func NewBus[T any]() *Bus[T] { return &Bus[T]{} }

func (b *Bus[T]) Subscribe(fn func(T)) *Subscription {
	o := &observer[T]{fn: fn}
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
	return NewSubscription(func() {
		o.closed.Store(true)
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, x := range b.observers {
			if x == o {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	})
}

// Publish delivers v to the current subscribers. Observers removed while
// the delivery is in flight are skipped.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	obs := b.observers
	b.mu.Unlock()
	for _, o := range obs {
		if o.closed.Load() {
			continue
		}
		o.fn(v)
	}
}

// Len reports the number of live subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Group collects subscriptions that share a lifetime.
type Group struct {
	mu   sync.Mutex
	subs []*Subscription
	done bool
}

// Add registers s. Adding to a released group unsubscribes s immediately.
func (g *Group) Add(s *Subscription) {
	g.mu.Lock()
	if g.done {
		g.mu.Unlock()
		s.Unsubscribe()
		return
	}
	g.subs = append(g.subs, s)
	g.mu.Unlock()
}

// Unsubscribe releases every subscription in the group.
func (g *Group) Unsubscribe() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.done = true
	g.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}
