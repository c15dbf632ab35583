// Package app is the operation surface shared by every front end: it
// normalises user input before it reaches the todo store and scopes the
// subscriptions an inline edit needs.
package app

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/route"
	"github.com/Makepad-fr/tada/internal/stream"
	"github.com/Makepad-fr/tada/internal/todos"
)

// ErrNotFound is returned when an edit targets a todo that does not exist.
var ErrNotFound = errors.New("todo not found")

type Controller struct {
	store *todos.Store
	log   *slog.Logger
}

func New(s *todos.Store, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{store: s, log: log}
}

// Store returns the underlying store.
func (c *Controller) Store() *todos.Store { return c.store }

// Create adds a todo titled with the trimmed text. Blank text creates
// nothing.
func (c *Controller) Create(text string) (model.Todo, bool) {
	title := strings.TrimSpace(text)
	if title == "" {
		return model.Todo{}, false
	}
	return c.store.Create(title), true
}

// Commit finishes an edit: blank text deletes the todo, anything else
// becomes its new title.
func (c *Controller) Commit(id, text string) {
	title := strings.TrimSpace(text)
	if title == "" {
		c.store.Remove(id)
		return
	}
	c.store.Update(id, title)
}

func (c *Controller) Toggle(id string)    { c.store.Toggle(id) }
func (c *Controller) Remove(id string)    { c.store.Remove(id) }
func (c *Controller) ToggleAll(done bool) { c.store.ToggleAll(done) }
func (c *Controller) ClearCompleted()     { c.store.ClearCompleted() }

// Route applies a hash fragment such as "#/active".
func (c *Controller) Route(hash string) bool {
	ok := route.Dispatch(c.store, hash)
	if !ok {
		c.log.Debug("ignoring unknown route", "hash", hash)
	}
	return ok
}

// EndReason says why an edit session finished.
type EndReason int

const (
	Saved EndReason = iota + 1
	Canceled
	Removed
)

// EditSession tracks one inline edit. It follows the todo while open:
// outside updates refresh Original, and removal ends the session. All of
// its subscriptions are released however it ends.
type EditSession struct {
	c  *Controller
	id string

	mu       sync.Mutex
	original string
	reason   EndReason
	done     chan struct{}
	subs     stream.Group
}

// BeginEdit opens a session on id.
func (c *Controller) BeginEdit(id string) (*EditSession, error) {
	t, ok := c.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	e := &EditSession{c: c, id: id, original: t.Title, done: make(chan struct{})}
	e.subs.Add(c.store.Removed.Subscribe(func(t model.Todo) {
		if t.ID == id {
			e.end(Removed)
		}
	}))
	e.subs.Add(c.store.Updated.Subscribe(func(t model.Todo) {
		if t.ID != id {
			return
		}
		e.mu.Lock()
		e.original = t.Title
		e.mu.Unlock()
	}))
	// The todo may have vanished between Get and Subscribe.
	if _, ok := c.store.Get(id); !ok {
		e.end(Removed)
	}
	return e, nil
}

// ID is the todo being edited.
func (e *EditSession) ID() string { return e.id }

// Original is the todo's current stored title.
func (e *EditSession) Original() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.original
}

// Done is closed when the session ends.
func (e *EditSession) Done() <-chan struct{} { return e.done }

// Reason is zero while the session is open.
func (e *EditSession) Reason() EndReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// Save commits text and ends the session. Blank text deletes the todo.
// Saving a finished session does nothing.
func (e *EditSession) Save(text string) {
	if !e.end(Saved) {
		return
	}
	e.c.Commit(e.id, text)
}

// Blur is what happens when focus leaves the editor: the text is saved.
func (e *EditSession) Blur(text string) { e.Save(text) }

// Cancel discards the edit.
func (e *EditSession) Cancel() { e.end(Canceled) }

// end releases the subscriptions once; it reports whether this call did it.
func (e *EditSession) end(r EndReason) bool {
	e.mu.Lock()
	if e.reason != 0 {
		e.mu.Unlock()
		return false
	}
	e.reason = r
	close(e.done)
	e.mu.Unlock()
	e.subs.Unsubscribe()
	return true
}
