// Package store persists the todo collection as one JSON document under a
// namespaced key in a key/value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/stream"
)

// DefaultNamespace is the key the collection is stored under.
const DefaultNamespace = "todos-tada"

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is a durable key/value backend.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Document is the persisted layout.
type Document struct {
	Collection []model.Todo `json:"collection"`
}

// Encode renders todos as a Document.
func Encode(todos []model.Todo) ([]byte, error) {
	if todos == nil {
		todos = []model.Todo{}
	}
	b, err := json.MarshalIndent(Document{Collection: todos}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return b, nil
}

// Decode parses a Document. A document without a collection decodes to no
// todos; unparsable input returns an error wrapping model.ErrMalformed.
func Decode(b []byte) ([]model.Todo, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformed, err)
	}
	return doc.Collection, nil
}

// Collection is what the Persister needs from the todo store.
type Collection interface {
	Todos() []model.Todo
}

// Streams are the change feeds that trigger a save.
type Streams struct {
	Added, Removed, Updated stream.Source[model.Todo]
}

// Persister loads the collection at startup and rewrites it on change.
type Persister struct {
	kv  KV
	key string
	log *slog.Logger

	subs stream.Group
}

// NewPersister stores the collection under key in kv.
func NewPersister(kv KV, key string, log *slog.Logger) *Persister {
	if key == "" {
		key = DefaultNamespace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Persister{kv: kv, key: key, log: log}
}

// Key returns the namespaced key.
func (p *Persister) Key() string { return p.key }

// Load returns the persisted todos. A missing key yields no todos and no
// error; a document that does not parse yields an error wrapping
// model.ErrMalformed.
func (p *Persister) Load(ctx context.Context) ([]model.Todo, error) {
	b, err := p.kv.Get(ctx, p.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", p.key, err)
	}
	todos, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.key, err)
	}
	return todos, nil
}

// Save writes todos under the key.
func (p *Persister) Save(ctx context.Context, todos []model.Todo) error {
	b, err := Encode(todos)
	if err != nil {
		return err
	}
	if err := p.kv.Put(ctx, p.key, b); err != nil {
		return fmt.Errorf("write %s: %w", p.key, err)
	}
	return nil
}

// Attach saves the whole collection every time one of the streams fires.
// Failures are logged; the in-memory collection stays authoritative.
func (p *Persister) Attach(c Collection, s Streams) {
	save := func(model.Todo) {
		if err := p.Save(context.Background(), c.Todos()); err != nil {
			p.log.Error("persist todos", "err", err)
		}
	}
	for _, src := range []stream.Source[model.Todo]{s.Added, s.Removed, s.Updated} {
		if src != nil {
			p.subs.Add(src.Subscribe(save))
		}
	}
}

// Close releases the subscriptions made by Attach. The KV is not closed.
func (p *Persister) Close() { p.subs.Unsubscribe() }
