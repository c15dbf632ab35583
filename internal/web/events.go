package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/stream"
)

// sendBuffer bounds how far a client may lag before it is dropped.
const sendBuffer = 256

const writeWait = 5 * time.Second

// eventMessage is the wire form of a store event.
type eventMessage struct {
	Type           model.EventType `json:"type"`
	Todo           *model.Todo     `json:"todo,omitempty"`
	FilterType     model.Filter    `json:"filterType,omitempty"`
	CountTodos     *int            `json:"countTodos,omitempty"`
	CountCompleted *int            `json:"countCompleted,omitempty"`
}

func toMessage(e model.Event) eventMessage {
	m := eventMessage{Type: e.Type}
	switch e.Type {
	case model.EventAdded, model.EventRemoved, model.EventUpdated:
		t := e.Todo
		m.Todo = &t
	case model.EventFilterChanged:
		m.FilterType = e.Filter
	case model.EventLengthChanged:
		n := e.CountTodos
		m.CountTodos = &n
	case model.EventCompleted:
		n := e.CountCompleted
		m.CountCompleted = &n
	}
	return m
}

// events streams store events to one WebSocket client until either side
// closes. The store subscriptions live exactly as long as the connection.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	out := make(chan eventMessage, sendBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	push := func(e model.Event) {
		select {
		case out <- toMessage(e):
		default:
			once.Do(func() { close(overflow) })
		}
	}

	st := s.ctl.Store()
	var subs stream.Group
	forTodo := func(typ model.EventType) func(model.Todo) {
		return func(t model.Todo) { push(model.Event{Type: typ, Todo: t}) }
	}
	subs.Add(st.Added.Subscribe(forTodo(model.EventAdded)))
	subs.Add(st.Removed.Subscribe(forTodo(model.EventRemoved)))
	subs.Add(st.Updated.Subscribe(forTodo(model.EventUpdated)))
	subs.Add(st.FilterChanged.Subscribe(push))
	subs.Add(st.LengthChanged.Subscribe(push))
	subs.Add(st.CompletedChanged.Subscribe(push))
	defer subs.Unsubscribe()

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Let the client paint its counters before the first change.
	push(model.Event{Type: model.EventLengthChanged, CountTodos: st.Len()})
	push(model.Event{Type: model.EventCompleted, CountCompleted: st.CountCompleted()})

	for {
		select {
		case <-closed:
			return
		case <-overflow:
			s.log.Warn("dropping slow event client", "remote", r.RemoteAddr)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
				time.Now().Add(writeWait))
			return
		case m := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				s.log.Debug("event client write failed", "err", err)
				return
			}
		}
	}
}
