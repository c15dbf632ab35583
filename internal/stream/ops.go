package stream

import (
	"sync"
	"time"
)

// Filter re-emits the values of src for which keep returns true.
func Filter[T any](src Source[T], keep func(T) bool) Source[T] {
	return SourceFunc[T](func(fn func(T)) *Subscription {
		return src.Subscribe(func(v T) {
			if keep(v) {
				fn(v)
			}
		})
	})
}

// Map projects every value of src through f.
func Map[T, U any](src Source[T], f func(T) U) Source[U] {
	return SourceFunc[U](func(fn func(U)) *Subscription {
		return src.Subscribe(func(v T) { fn(f(v)) })
	})
}

// Merge interleaves several sources into one, in the order values arrive.
func Merge[T any](srcs ...Source[T]) Source[T] {
	return SourceFunc[T](func(fn func(T)) *Subscription {
		var g Group
		for _, src := range srcs {
			g.Add(src.Subscribe(fn))
		}
		return NewSubscription(g.Unsubscribe)
	})
}

// Timer is the part of *time.Timer that Throttle needs.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred work.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules with the time package.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Throttle coalesces bursts of src. The first value opens a window of the
// given length; values arriving inside the window replace the pending one;
// when the window closes the latest value is emitted. Each subscriber gets
// its own window state. A nil clock means RealClock.
func Throttle[T any](src Source[T], window time.Duration, clock Clock) Source[T] {
	if clock == nil {
		clock = RealClock{}
	}
	return SourceFunc[T](func(fn func(T)) *Subscription {
		var (
			mu     sync.Mutex
			latest T
			timer  Timer
			closed bool
		)
		fire := func() {
			mu.Lock()
			if closed {
				mu.Unlock()
				return
			}
			v := latest
			timer = nil
			mu.Unlock()
			fn(v)
		}
		inner := src.Subscribe(func(v T) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			latest = v
			if timer == nil {
				timer = clock.AfterFunc(window, fire)
			}
		})
		return NewSubscription(func() {
			inner.Unsubscribe()
			mu.Lock()
			defer mu.Unlock()
			closed = true
			if timer != nil {
				timer.Stop()
				timer = nil
			}
		})
	})
}
