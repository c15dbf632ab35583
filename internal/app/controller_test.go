package app

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/stream/streamtest"
	"github.com/Makepad-fr/tada/internal/todos"
)

func newController(t *testing.T) *Controller {
	t.Helper()
	n := 0
	s := todos.New(
		todos.WithClock(streamtest.NewClock()),
		todos.WithIDGenerator(func() string { n++; return strconv.Itoa(n) }),
	)
	t.Cleanup(s.Close)
	return New(s, nil)
}

func TestCreateTrims(t *testing.T) {
	c := newController(t)
	if _, ok := c.Create("   "); ok {
		t.Error("blank text created a todo")
	}
	td, ok := c.Create("  buy milk \n")
	if !ok || td.Title != "buy milk" {
		t.Errorf("Create = %+v, %v", td, ok)
	}
	if c.Store().Len() != 1 {
		t.Errorf("Len = %d", c.Store().Len())
	}
}

func TestCommitEmptyRemoves(t *testing.T) {
	c := newController(t)
	td, _ := c.Create("a")
	var updated, removed int
	c.Store().Updated.Subscribe(func(model.Todo) { updated++ })
	c.Store().Removed.Subscribe(func(model.Todo) { removed++ })

	c.Commit(td.ID, "   ")

	if updated != 0 || removed != 1 {
		t.Errorf("updated=%d removed=%d, want 0 and 1", updated, removed)
	}
	if c.Store().Len() != 0 {
		t.Errorf("todo survived empty edit")
	}
}

// busLen counts handlers on the store's bus. Every derived stream
// subscribes there, so it also counts session subscriptions.
func busLen(c *Controller) int {
	type lener interface{ Len() int }
	return c.Store().Events().(lener).Len()
}

func TestEditSessionReleasesOnEveryExit(t *testing.T) {
	c := newController(t)
	a, _ := c.Create("a")
	base := busLen(c)

	exits := map[string]func(e *EditSession){
		"save":   func(e *EditSession) { e.Save("aa") },
		"cancel": func(e *EditSession) { e.Cancel() },
		"blur":   func(e *EditSession) { e.Blur("aaa") },
		"empty":  func(e *EditSession) { e.Save("") },
	}
	for name, exit := range exits {
		if _, ok := c.Store().Get(a.ID); !ok {
			a, _ = c.Create("a")
		}
		e, err := c.BeginEdit(a.ID)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if busLen(c) != base+2 {
			t.Fatalf("%s: session subscribed %d handlers", name, busLen(c)-base)
		}
		exit(e)
		if busLen(c) != base {
			t.Errorf("%s: %d handlers leaked", name, busLen(c)-base)
		}
		select {
		case <-e.Done():
		default:
			t.Errorf("%s: Done not closed", name)
		}
	}
}

func TestEditSessionFollowsStore(t *testing.T) {
	c := newController(t)
	a, _ := c.Create("a")
	e, err := c.BeginEdit(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	c.Store().Update(a.ID, "renamed")
	if e.Original() != "renamed" {
		t.Errorf("Original = %q", e.Original())
	}
	c.Remove(a.ID)
	if e.Reason() != Removed {
		t.Errorf("Reason = %v, want Removed", e.Reason())
	}
	e.Save("ignored")
	if c.Store().Len() != 0 {
		t.Errorf("save after removal resurrected todo")
	}
}

func TestEditOutcomes(t *testing.T) {
	c := newController(t)
	a, _ := c.Create("a")
	b, _ := c.Create("b")

	e, _ := c.BeginEdit(a.ID)
	e.Cancel()
	e.Save("too late")

	e, _ = c.BeginEdit(b.ID)
	e.Blur("  bee ")

	want := []model.Todo{{ID: "1", Title: "a"}, {ID: "2", Title: "bee"}}
	if diff := cmp.Diff(want, c.Store().Todos()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, err := c.BeginEdit("missing"); err != ErrNotFound {
		t.Errorf("BeginEdit(missing) err = %v", err)
	}
}

func TestRoute(t *testing.T) {
	c := newController(t)
	c.Create("a")
	if c.Route("#/bogus") {
		t.Error("unknown route dispatched")
	}
	if !c.Route("#/completed") || c.Store().Filter() != model.FilterCompleted {
		t.Errorf("filter = %q", c.Store().Filter())
	}
	if len(c.Store().Visible()) != 0 {
		t.Errorf("completed view shows incomplete todo")
	}
}
