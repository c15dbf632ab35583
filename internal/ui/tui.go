package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/app"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/route"
	"github.com/Makepad-fr/tada/internal/stream"
	"github.com/Makepad-fr/tada/internal/todos"
)

// listItem adapts model.Todo to bubbles/list.Item
type listItem struct {
	todo model.Todo
}

func (i listItem) Title() string       { return i.todo.Title }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.todo.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)
	box, text := current.Muted.Render(current.BoxUnchecked), it.todo.Title
	if it.todo.Completed {
		box, text = current.Success.Render(current.BoxChecked), current.Done.Render(text)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = current.Selected.Render("> ")
	}
	fmt.Fprint(w, prefix+box+" "+text)
}

// storeMsg carries a store event into the Bubble Tea loop.
type storeMsg struct{ ev model.Event }

var keys = struct {
	add, edit, toggle, remove, toggleAll, clear, all, active, completed, quit key.Binding
}{
	add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	edit:      key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
	toggle:    key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle")),
	remove:    key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
	toggleAll: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle all")),
	clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear completed")),
	all:       key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "all")),
	active:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "active")),
	completed: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "completed")),
	quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type modelTUI struct {
	ctl  *app.Controller
	list list.Model

	// Inline add/edit share one text input.
	ti       textinput.Model
	adding   bool
	edit     *app.EditSession
	inputErr string

	// Counters follow the throttled store streams.
	count, completed int
	filter           model.Filter
}

func newModel(ctl *app.Controller) modelTUI {
	s := ctl.Store()
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetShowTitle(true)
	// Views are chosen with the route keys, not the fuzzy filter.
	l.SetFilteringEnabled(false)
	l.Styles.Title = current.Title
	l.Styles.HelpStyle = current.Help
	l.Styles.PaginationStyle = current.Help
	l.SetStatusBarItemName("item", "items")
	extra := func() []key.Binding {
		return []key.Binding{keys.add, keys.edit, keys.toggle, keys.remove, keys.toggleAll, keys.clear, keys.all, keys.active, keys.completed}
	}
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	m := modelTUI{
		ctl:       ctl,
		list:      l,
		ti:        ti,
		count:     s.Len(),
		completed: s.CountCompleted(),
		filter:    s.Filter(),
	}
	m.refresh()
	return m
}

// refresh re-derives the visible rows from the store.
func (m *modelTUI) refresh() {
	s := m.ctl.Store()
	visible := s.Visible()
	items := make([]list.Item, 0, len(visible))
	for _, t := range visible {
		items = append(items, listItem{todo: t})
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	m.filter = s.Filter()
	m.list.Title = Header(m.count, m.completed)
}

func (m *modelTUI) selected() (model.Todo, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it.todo, ok
}

func (m modelTUI) Init() tea.Cmd { return nil }

func (m modelTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil
	case storeMsg:
		switch msg.ev.Type {
		case model.EventLengthChanged:
			m.count = msg.ev.CountTodos
		case model.EventCompleted:
			m.completed = msg.ev.CountCompleted
		}
		if m.edit != nil && m.edit.Reason() == app.Removed {
			m.closeInput()
		}
		m.refresh()
		return m, nil
	}

	if m.adding || m.edit != nil {
		return m.updateInput(msg)
	}

	km, isKey := msg.(tea.KeyMsg)
	if !isKey {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	switch {
	case key.Matches(km, keys.quit):
		return m, tea.Quit
	case key.Matches(km, keys.add):
		m.adding = true
		m.inputErr = ""
		m.ti.SetValue("")
		m.ti.Placeholder = "What needs to be done?"
		return m, m.ti.Focus()
	case key.Matches(km, keys.edit):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		e, err := m.ctl.BeginEdit(t.ID)
		if err != nil {
			return m, nil
		}
		m.edit = e
		m.inputErr = ""
		m.ti.SetValue(e.Original())
		m.ti.CursorEnd()
		m.ti.Placeholder = "Empty title deletes the item"
		return m, m.ti.Focus()
	case key.Matches(km, keys.toggle):
		if t, ok := m.selected(); ok {
			m.ctl.Toggle(t.ID)
		}
	case key.Matches(km, keys.remove):
		if t, ok := m.selected(); ok {
			m.ctl.Remove(t.ID)
		}
	case key.Matches(km, keys.toggleAll):
		s := m.ctl.Store()
		m.ctl.ToggleAll(s.CountCompleted() < s.Len())
	case key.Matches(km, keys.clear):
		m.ctl.ClearCompleted()
	case key.Matches(km, keys.all):
		m.ctl.Route(route.Href(model.FilterAll))
	case key.Matches(km, keys.active):
		m.ctl.Route(route.Href(model.FilterIncomplete))
	case key.Matches(km, keys.completed):
		m.ctl.Route(route.Href(model.FilterCompleted))
	default:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m modelTUI) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			if m.adding {
				if _, ok := m.ctl.Create(m.ti.Value()); !ok {
					m.inputErr = "Title cannot be empty"
					return m, nil
				}
			} else {
				m.edit.Save(m.ti.Value())
			}
			m.closeInput()
			m.refresh()
			return m, nil
		case "tab":
			// Leaving the field saves an edit and abandons an add.
			if m.edit != nil {
				m.edit.Blur(m.ti.Value())
			}
			m.closeInput()
			m.refresh()
			return m, nil
		case "esc":
			if m.edit != nil {
				m.edit.Cancel()
			}
			m.closeInput()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *modelTUI) closeInput() {
	m.adding = false
	m.edit = nil
	m.inputErr = ""
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m modelTUI) View() string {
	content := m.list.View()
	if m.adding || m.edit != nil {
		bar := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(current.BorderColor).Padding(0, 1)
		title := "Add new item"
		if m.edit != nil {
			title = "Edit item"
		}
		if m.inputErr != "" {
			title += " " + current.Error.Render(m.inputErr)
		}
		content += "\n" + bar.Render(title+"\n"+m.ti.View())
	}
	footer := Counter(m.count-m.completed) + "   " + Filters(m.filter)
	if m.completed > 0 {
		footer += "   " + current.Muted.Render(fmt.Sprintf("c: clear completed (%d)", m.completed))
	}
	return PanelString(content + "\n" + footer)
}

// forwarder hands store events to the program in publish order without
// ever blocking the publisher.
type forwarder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []tea.Msg
	closed bool
}

func newForwarder() *forwarder {
	f := &forwarder{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *forwarder) push(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, msg)
	f.cond.Signal()
}

func (f *forwarder) run(send func(tea.Msg)) {
	for {
		f.mu.Lock()
		for len(f.queue) == 0 && !f.closed {
			f.cond.Wait()
		}
		if f.closed {
			f.mu.Unlock()
			return
		}
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		send(msg)
	}
}

func (f *forwarder) close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// subscribe feeds every derived stream of s into push.
func subscribe(s *todos.Store, push func(tea.Msg)) *stream.Group {
	g := &stream.Group{}
	forTodo := func(typ model.EventType) func(model.Todo) {
		return func(t model.Todo) { push(storeMsg{model.Event{Type: typ, Todo: t}}) }
	}
	forEvent := func(e model.Event) { push(storeMsg{e}) }
	g.Add(s.Added.Subscribe(forTodo(model.EventAdded)))
	g.Add(s.Removed.Subscribe(forTodo(model.EventRemoved)))
	g.Add(s.Updated.Subscribe(forTodo(model.EventUpdated)))
	g.Add(s.FilterChanged.Subscribe(forEvent))
	g.Add(s.LengthChanged.Subscribe(forEvent))
	g.Add(s.CompletedChanged.Subscribe(forEvent))
	return g
}

// RunTUI starts the Bubble Tea list. Changes are persisted by whoever is
// attached to the store, as they happen.
func RunTUI(ctl *app.Controller) error {
	m := newModel(ctl)
	p := tea.NewProgram(m, tea.WithAltScreen())

	fwd := newForwarder()
	subs := subscribe(ctl.Store(), fwd.push)
	defer subs.Unsubscribe()
	go fwd.run(p.Send)
	defer fwd.close()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(modelTUI); ok && fm.edit != nil {
		fm.edit.Cancel()
	}
	return nil
}

// Summary is printed after the TUI exits.
func Summary(s *todos.Store) string {
	return strings.TrimSpace(Counter(s.Len()-s.CountCompleted()) + "  " + Header(s.Len(), s.CountCompleted()))
}
