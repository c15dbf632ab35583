// Package todos owns the in-memory todo collection. Every mutation is
// announced on a single event bus; the exported streams are views of it.
package todos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/stream"
)

// DefaultThrottle is the window used to coalesce counter updates.
const DefaultThrottle = 30 * time.Millisecond

var (
	ErrDuplicateID = errors.New("duplicate todo id")
	ErrEmptyID     = errors.New("empty todo id")
)

// Loader supplies previously persisted todos.
type Loader interface {
	Load(ctx context.Context) ([]model.Todo, error)
}

// Store is the only writer of the collection.
//
// Handlers subscribed to the store's streams run synchronously inside the
// operation that published the event. They may query the store but must not
// call its mutating methods from the same goroutine.
type Store struct {
	// dispatch serialises an operation's mutation together with the events
	// it publishes, so cascades never interleave.
	dispatch sync.Mutex

	mu         sync.RWMutex
	collection []model.Todo
	filter     model.Filter

	bus    *stream.Bus[model.Event]
	newID  func() string
	clock  stream.Clock
	window time.Duration
	log    *slog.Logger

	Added            stream.Source[model.Todo]
	Removed          stream.Source[model.Todo]
	Updated          stream.Source[model.Todo]
	FilterChanged    stream.Source[model.Event]
	LengthChanged    stream.Source[model.Event]
	CompletedChanged stream.Source[model.Event]

	drivers stream.Group
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(f func() string) Option { return func(s *Store) { s.newID = f } }

// WithClock sets the clock used by the counter throttles.
func WithClock(c stream.Clock) Option { return func(s *Store) { s.clock = c } }

// WithThrottle sets the counter throttle window.
func WithThrottle(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New builds an empty store and starts its counter subscriptions.
func New(opts ...Option) *Store {
	s := &Store{
		filter: model.FilterAll,
		bus:    stream.NewBus[model.Event](),
		newID:  newUUID,
		clock:  stream.RealClock{},
		window: DefaultThrottle,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	var events stream.Source[model.Event] = s.bus
	s.Added = stream.Map(stream.Filter(events, model.Is(model.EventAdded)), model.TodoOf)
	s.Removed = stream.Map(stream.Filter(events, model.Is(model.EventRemoved)), model.TodoOf)
	s.Updated = stream.Map(stream.Filter(events, model.Is(model.EventUpdated)), model.TodoOf)
	s.FilterChanged = stream.Filter(events, model.Is(model.EventFilterChanged))
	s.LengthChanged = stream.Filter(events, model.Is(model.EventLengthChanged))
	s.CompletedChanged = stream.Filter(events, model.Is(model.EventCompleted))

	s.drivers.Add(stream.Throttle(stream.Merge(s.Added, s.Removed), s.window, s.clock).
		Subscribe(func(model.Todo) { s.publishLength() }))
	s.drivers.Add(stream.Throttle(stream.Merge(s.Updated, s.Removed), s.window, s.clock).
		Subscribe(func(model.Todo) { s.publishCompleted() }))
	return s
}

// Events exposes the raw bus.
func (s *Store) Events() stream.Source[model.Event] { return s.bus }

// Close stops the counter subscriptions and any pending throttle timers.
func (s *Store) Close() { s.drivers.Unsubscribe() }

// run executes mutate under the collection lock and then publishes the
// events it returned, all while holding the dispatch lock.
func (s *Store) run(mutate func() []model.Event) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()
	s.mu.Lock()
	events := mutate()
	s.mu.Unlock()
	for _, e := range events {
		s.bus.Publish(e)
	}
}

func (s *Store) publishLength() {
	s.run(func() []model.Event {
		return []model.Event{{Type: model.EventLengthChanged, CountTodos: len(s.collection)}}
	})
}

func (s *Store) publishCompleted() {
	s.run(func() []model.Event {
		return []model.Event{{Type: model.EventCompleted, CountCompleted: s.countCompletedLocked()}}
	})
}

// Initialize replays Add for every todo the loader returns. Records with an
// empty or repeated ID are skipped. A malformed document starts the store
// empty.
func (s *Store) Initialize(ctx context.Context, l Loader) error {
	items, err := l.Load(ctx)
	switch {
	case errors.Is(err, model.ErrMalformed):
		s.log.Warn("ignoring persisted todos", "err", err)
		return nil
	case err != nil:
		return fmt.Errorf("load todos: %w", err)
	}
	for _, t := range items {
		if err := s.Add(t); err != nil {
			s.log.Warn("skipping persisted todo", "id", t.ID, "err", err)
		}
	}
	return nil
}

// Create appends a new incomplete todo and returns it.
func (s *Store) Create(title string) model.Todo {
	t := model.Todo{ID: s.newID(), Title: title}
	s.run(func() []model.Event {
		s.collection = append(s.collection, t)
		return []model.Event{{Type: model.EventAdded, Todo: t}}
	})
	return t
}

// Add appends a pre-built todo. IDs must be non-empty and unique.
func (s *Store) Add(t model.Todo) error {
	if t.ID == "" {
		return ErrEmptyID
	}
	var err error
	s.run(func() []model.Event {
		if s.indexLocked(t.ID) >= 0 {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
			return nil
		}
		s.collection = append(s.collection, t)
		return []model.Event{{Type: model.EventAdded, Todo: t}}
	})
	return err
}

// Remove deletes the todo with id, if any.
func (s *Store) Remove(id string) {
	s.run(func() []model.Event {
		i := s.indexLocked(id)
		if i < 0 {
			return nil
		}
		t := s.collection[i]
		s.collection = slices.Delete(s.collection, i, i+1)
		return []model.Event{{Type: model.EventRemoved, Todo: t}}
	})
}

// Update replaces the title of the todo with id, if any.
func (s *Store) Update(id, title string) {
	s.replace(id, func(t model.Todo) model.Todo { return t.WithTitle(title) })
}

// Toggle flips the completed flag of the todo with id, if any.
func (s *Store) Toggle(id string) {
	s.replace(id, func(t model.Todo) model.Todo { return t.WithCompleted(!t.Completed) })
}

func (s *Store) replace(id string, change func(model.Todo) model.Todo) {
	s.run(func() []model.Event {
		i := s.indexLocked(id)
		if i < 0 {
			return nil
		}
		t := change(s.collection[i])
		s.collection[i] = t
		return []model.Event{{Type: model.EventUpdated, Todo: t}}
	})
}

// ToggleAll sets every todo's completed flag to done, publishing one update
// per todo that actually changed.
func (s *Store) ToggleAll(done bool) {
	s.run(func() []model.Event {
		var events []model.Event
		for i, t := range s.collection {
			if t.Completed == done {
				continue
			}
			t = t.WithCompleted(done)
			s.collection[i] = t
			events = append(events, model.Event{Type: model.EventUpdated, Todo: t})
		}
		return events
	})
}

// ClearCompleted removes every completed todo.
func (s *Store) ClearCompleted() {
	s.run(func() []model.Event {
		var events []model.Event
		kept := s.collection[:0:0]
		for _, t := range s.collection {
			if t.Completed {
				events = append(events, model.Event{Type: model.EventRemoved, Todo: t})
				continue
			}
			kept = append(kept, t)
		}
		s.collection = kept
		return events
	})
}

func (s *Store) ShowAll()        { s.Show(model.FilterAll) }
func (s *Store) ShowIncomplete() { s.Show(model.FilterIncomplete) }
func (s *Store) ShowCompleted()  { s.Show(model.FilterCompleted) }

// Show records f as the current filter, publishes filterChanged and then one
// added event per matching todo so stream consumers can rebuild from empty.
func (s *Store) Show(f model.Filter) {
	if !f.Valid() {
		return
	}
	s.run(func() []model.Event {
		s.filter = f
		events := []model.Event{{Type: model.EventFilterChanged, Filter: f}}
		for _, t := range s.collection {
			if f.Match(t) {
				events = append(events, model.Event{Type: model.EventAdded, Todo: t})
			}
		}
		return events
	})
}

// Reload brings the collection in line with what l returns: todos that
// disappeared are removed, new ones added at the end, changed ones replaced.
// A malformed document leaves the collection as it is.
func (s *Store) Reload(ctx context.Context, l Loader) error {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()
	items, err := l.Load(ctx)
	switch {
	case errors.Is(err, model.ErrMalformed):
		s.log.Warn("keeping todos, persisted copy is unreadable", "err", err)
		return nil
	case err != nil:
		return fmt.Errorf("reload todos: %w", err)
	}

	next := make(map[string]model.Todo, len(items))
	var order []string
	for _, t := range items {
		if t.ID == "" {
			continue
		}
		if _, dup := next[t.ID]; dup {
			s.log.Warn("skipping persisted todo", "id", t.ID, "err", ErrDuplicateID)
			continue
		}
		next[t.ID] = t
		order = append(order, t.ID)
	}

	var events []model.Event
	s.mu.Lock()
	kept := s.collection[:0:0]
	seen := make(map[string]bool, len(s.collection))
	for _, t := range s.collection {
		n, ok := next[t.ID]
		if !ok {
			events = append(events, model.Event{Type: model.EventRemoved, Todo: t})
			continue
		}
		seen[t.ID] = true
		if n != t {
			events = append(events, model.Event{Type: model.EventUpdated, Todo: n})
		}
		kept = append(kept, n)
	}
	for _, id := range order {
		if seen[id] {
			continue
		}
		kept = append(kept, next[id])
		events = append(events, model.Event{Type: model.EventAdded, Todo: next[id]})
	}
	s.collection = kept
	s.mu.Unlock()

	for _, e := range events {
		s.bus.Publish(e)
	}
	if len(events) > 0 {
		s.log.Debug("reloaded todos", "changes", len(events))
	}
	return nil
}

// Todos returns a copy of the collection in display order.
func (s *Store) Todos() []model.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.collection)
}

// Get returns the todo with id.
func (s *Store) Get(id string) (model.Todo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.collection[i], true
	}
	return model.Todo{}, false
}

// Filter returns the current filter.
func (s *Store) Filter() model.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Visible returns the todos matching the current filter.
func (s *Store) Visible() []model.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Todo, 0, len(s.collection))
	for _, t := range s.collection {
		if s.filter.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of todos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collection)
}

// CountCompleted returns the number of completed todos.
func (s *Store) CountCompleted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countCompletedLocked()
}

func (s *Store) countCompletedLocked() int {
	n := 0
	for _, t := range s.collection {
		if t.Completed {
			n++
		}
	}
	return n
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.collection, func(t model.Todo) bool { return t.ID == id })
}
