package ui

import (
	"strconv"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/Makepad-fr/tada/internal/app"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/stream/streamtest"
	"github.com/Makepad-fr/tada/internal/todos"
)

func newTestModel(t *testing.T) (modelTUI, *todos.Store, *streamtest.Clock) {
	t.Helper()
	clk := streamtest.NewClock()
	n := 0
	s := todos.New(todos.WithClock(clk), todos.WithIDGenerator(func() string { n++; return strconv.Itoa(n) }))
	t.Cleanup(s.Close)
	m := newModel(app.New(s, nil))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(modelTUI), s, clk
}

func press(t *testing.T, m modelTUI, keys ...tea.KeyMsg) modelTUI {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(modelTUI)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func titles(s *todos.Store) []string {
	var out []string
	for _, t := range s.Todos() {
		out = append(out, t.Title)
	}
	return out
}

func TestAddTrimsAndRejectsBlank(t *testing.T) {
	m, s, _ := newTestModel(t)
	m = press(t, m, runes("a"), runes(" "), enter)
	if !m.adding || m.inputErr == "" {
		t.Fatalf("blank add should keep the input open with an error")
	}
	m = press(t, m, runes("milk"), enter)
	if m.adding {
		t.Error("input still open after add")
	}
	if diff := cmp.Diff([]string{"milk"}, titles(s)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if len(m.list.Items()) != 1 {
		t.Errorf("list rows = %d", len(m.list.Items()))
	}
}

func TestToggleDeleteAndFilters(t *testing.T) {
	m, s, _ := newTestModel(t)
	s.Create("a")
	s.Create("b")
	m.refresh()

	m = press(t, m, space)
	if td, _ := s.Get("1"); !td.Completed {
		t.Fatalf("space did not toggle the selected todo")
	}
	m = press(t, m, runes("2"))
	if m.filter != model.FilterIncomplete || len(m.list.Items()) != 1 {
		t.Errorf("active view: filter=%q rows=%d", m.filter, len(m.list.Items()))
	}
	m = press(t, m, runes("d"))
	if diff := cmp.Diff([]string{"a"}, titles(s)); diff != "" {
		t.Errorf("after delete (-want +got):\n%s", diff)
	}
	m = press(t, m, runes("1"), runes("c"))
	if s.Len() != 0 || len(m.list.Items()) != 0 {
		t.Errorf("clear completed left %v", titles(s))
	}
}

func TestToggleAll(t *testing.T) {
	m, s, _ := newTestModel(t)
	s.Create("a")
	s.Create("b")
	m = press(t, m, runes("t"))
	if s.CountCompleted() != 2 {
		t.Fatalf("completed = %d", s.CountCompleted())
	}
	press(t, m, runes("t"))
	if s.CountCompleted() != 0 {
		t.Errorf("second toggle-all: completed = %d", s.CountCompleted())
	}
}

func TestEditSaveCancelBlur(t *testing.T) {
	m, s, _ := newTestModel(t)
	s.Create("a")
	s.Create("b")
	m.refresh()

	m = press(t, m, runes("e"), runes("x"), esc)
	if m.edit != nil {
		t.Fatal("esc left the editor open")
	}
	m = press(t, m, runes("e"), runes("!"), enter)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, runes("e"), runes("?"), tab)
	if diff := cmp.Diff([]string{"a!", "b?"}, titles(s)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	m = press(t, m, runes("e"))
	for range "b?" {
		m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m = press(t, m, enter)
	if diff := cmp.Diff([]string{"a!"}, titles(s)); diff != "" {
		t.Errorf("empty edit (-want +got):\n%s", diff)
	}
}

func TestCountersFollowThrottledStreams(t *testing.T) {
	m, s, clk := newTestModel(t)
	var mu sync.Mutex
	var msgs []tea.Msg
	subs := subscribe(s, func(msg tea.Msg) {
		mu.Lock()
		msgs = append(msgs, msg)
		mu.Unlock()
	})
	defer subs.Unsubscribe()

	a := s.Create("a")
	s.Create("b")
	s.Toggle(a.ID)
	clk.Advance(todos.DefaultThrottle)

	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(modelTUI)
	}
	if m.count != 2 || m.completed != 1 {
		t.Errorf("count=%d completed=%d", m.count, m.completed)
	}
	if !strings.Contains(m.View(), "item left") {
		t.Errorf("footer missing counter:\n%s", m.View())
	}
}

func TestForwarderKeepsOrder(t *testing.T) {
	f := newForwarder()
	got := make(chan tea.Msg, 3)
	done := make(chan struct{})
	go func() {
		f.run(func(msg tea.Msg) { got <- msg })
		close(done)
	}()
	for i := 0; i < 3; i++ {
		f.push(i)
	}
	for i := 0; i < 3; i++ {
		if v := <-got; v != i {
			t.Errorf("msg %d = %v", i, v)
		}
	}
	f.close()
	<-done
}
