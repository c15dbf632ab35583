package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/tada/internal/app"
	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/stream/streamtest"
	"github.com/Makepad-fr/tada/internal/todos"
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *todos.Store, *streamtest.Clock) {
	t.Helper()
	return newTokenServer(t, func() (string, error) { return token, nil })
}

func newTokenServer(t *testing.T, token TokenSource) (*httptest.Server, *todos.Store, *streamtest.Clock) {
	t.Helper()
	clk := streamtest.NewClock()
	n := 0
	s := todos.New(todos.WithClock(clk), todos.WithIDGenerator(func() string { n++; return strconv.Itoa(n) }))
	t.Cleanup(s.Close)
	srv := httptest.NewServer(New(app.New(s, nil), nil, token).Handler())
	t.Cleanup(srv.Close)
	return srv, s, clk
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestCRUD(t *testing.T) {
	srv, s, _ := newTestServer(t, "")
	api := srv.URL + "/api"

	resp, body := do(t, http.MethodPost, api+"/todos", `{"title":"  buy milk "}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var created model.Todo
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.Title != "buy milk" || created.Completed {
		t.Errorf("created = %+v", created)
	}

	if resp, _ := do(t, http.MethodPost, api+"/todos", `{"title":"   "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank create status = %d", resp.StatusCode)
	}
	if resp, _ := do(t, http.MethodPost, api+"/todos", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json status = %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodPost, api+"/todos/1/toggle", "")
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"completed":true`)) {
		t.Errorf("toggle: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPut, api+"/todos/1", `{"title":"oat milk"}`)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"oat milk"`)) {
		t.Errorf("update: %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, http.MethodPut, api+"/todos/1", `{"title":""}`)
	if resp.StatusCode != http.StatusNoContent || s.Len() != 0 {
		t.Errorf("empty update: status=%d len=%d", resp.StatusCode, s.Len())
	}

	resp, _ = do(t, http.MethodDelete, api+"/todos/1", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete missing: %d", resp.StatusCode)
	}
}

func TestBulkAndRoute(t *testing.T) {
	srv, s, _ := newTestServer(t, "")
	api := srv.URL + "/api"
	s.Create("a")
	s.Create("b")
	s.Create("c")

	var list listResponse
	_, body := do(t, http.MethodPost, api+"/todos/toggle-all", `{"completed":true}`)
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Completed != 3 {
		t.Errorf("completed after toggle-all = %d", list.Completed)
	}
	s.Toggle("2")

	_, body = do(t, http.MethodPost, api+"/route", `{"hash":"#/active"}`)
	list = listResponse{}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Filter != model.FilterIncomplete || list.Route != "#/active" {
		t.Errorf("filter = %q route = %q", list.Filter, list.Route)
	}
	if diff := cmp.Diff([]model.Todo{{ID: "2", Title: "b"}}, list.Todos); diff != "" {
		t.Errorf("active view (-want +got):\n%s", diff)
	}

	do(t, http.MethodPost, api+"/route", `{"hash":"#/unknown"}`)
	if s.Filter() != model.FilterIncomplete {
		t.Errorf("unknown route changed filter to %q", s.Filter())
	}

	_, body = do(t, http.MethodPost, api+"/todos/clear-completed", "")
	list = listResponse{}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Completed != 0 {
		t.Errorf("after clear: total=%d completed=%d", list.Total, list.Completed)
	}
}

func TestToken(t *testing.T) {
	srv, _, _ := newTestServer(t, "sekrit")
	resp, _ := do(t, http.MethodGet, srv.URL+"/api/todos", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/todos", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with token: %d", resp.StatusCode)
	}
}

func TestTokenErrorRejects(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(auth.EnvToken, "")
	k := auth.Keyring{Dir: dir}
	if err := k.SetToken("secret"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "credentials.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	srv, _, _ := newTokenServer(t, func() (string, error) {
		ti, err := k.Token()
		if err != nil || ti == nil {
			return "", err
		}
		return ti.Token, nil
	})

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/todos", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("unreadable credentials: status %d, want 500", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/todos?token=secret", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("request served with unreadable credentials")
	}
}

func TestWrongToken(t *testing.T) {
	srv, _, _ := newTestServer(t, "sekrit")
	for _, q := range []string{"?token=sekri", "?token=sekrit2", "?token="} {
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/todos"+q, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status %d", q, resp.StatusCode)
		}
	}
	resp, _ := do(t, http.MethodGet, srv.URL+"/api/todos?token=sekrit", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("query token: status %d", resp.StatusCode)
	}
}

func readEvent(t *testing.T, c *websocket.Conn) eventMessage {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m eventMessage
	if err := c.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestEventFeed(t *testing.T) {
	srv, s, clk := newTestServer(t, "")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if m := readEvent(t, c); m.Type != model.EventLengthChanged || *m.CountTodos != 0 {
		t.Errorf("first message = %+v", m)
	}
	if m := readEvent(t, c); m.Type != model.EventCompleted || *m.CountCompleted != 0 {
		t.Errorf("second message = %+v", m)
	}

	s.Create("buy milk")
	m := readEvent(t, c)
	if m.Type != model.EventAdded || m.Todo == nil || m.Todo.Title != "buy milk" {
		t.Errorf("added message = %+v", m)
	}
	clk.Advance(todos.DefaultThrottle)
	m = readEvent(t, c)
	if m.Type != model.EventLengthChanged || *m.CountTodos != 1 {
		t.Errorf("length message = %+v", m)
	}

	s.ShowCompleted()
	if m := readEvent(t, c); m.Type != model.EventFilterChanged || m.FilterType != model.FilterCompleted {
		t.Errorf("filter message = %+v", m)
	}
}

func TestEventFeedReleasesSubscriptions(t *testing.T) {
	srv, s, _ := newTestServer(t, "")
	type lener interface{ Len() int }
	bus := s.Events().(lener)
	base := bus.Len()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	readEvent(t, c)
	if bus.Len() != base+6 {
		t.Errorf("subscribed %d handlers, want 6", bus.Len()-base)
	}
	c.Close()

	deadline := time.Now().Add(5 * time.Second)
	for bus.Len() != base && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if bus.Len() != base {
		t.Errorf("%d handlers leaked after close", bus.Len()-base)
	}
}
