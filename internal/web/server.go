// Package web serves the todo store to browser front ends: a small JSON API
// for the operations and a WebSocket feed of store events.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/tada/internal/app"
	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/route"
)

// TokenSource returns the bearer token the API requires, or "" for none.
// An error rejects the request.
type TokenSource func() (string, error)

// Server is the HTTP adapter.
type Server struct {
	ctl      *app.Controller
	log      *slog.Logger
	token    TokenSource
	upgrader websocket.Upgrader
}

func New(ctl *app.Controller, log *slog.Logger, token TokenSource) *Server {
	if log == nil {
		log = slog.Default()
	}
	if token == nil {
		token = func() (string, error) { return "", nil }
	}
	return &Server{
		ctl:   ctl,
		log:   log,
		token: token,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.requireToken)

	api := r.PathPrefix("/api").Subrouter()
	api.Methods(http.MethodGet).Path("/todos").HandlerFunc(s.listTodos)
	api.Methods(http.MethodPost).Path("/todos").HandlerFunc(s.createTodo)
	api.Methods(http.MethodPost).Path("/todos/toggle-all").HandlerFunc(s.toggleAll)
	api.Methods(http.MethodPost).Path("/todos/clear-completed").HandlerFunc(s.clearCompleted)
	api.Methods(http.MethodPut).Path("/todos/{id}").HandlerFunc(s.updateTodo)
	api.Methods(http.MethodPost).Path("/todos/{id}/toggle").HandlerFunc(s.toggleTodo)
	api.Methods(http.MethodDelete).Path("/todos/{id}").HandlerFunc(s.deleteTodo)
	api.Methods(http.MethodPost).Path("/route").HandlerFunc(s.applyRoute)
	api.Methods(http.MethodGet).Path("/events").HandlerFunc(s.events)
	return r
}

// ListenAndServe runs until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("web server listening", "addr", addr)
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Info("handled", "method", r.Method, "url", r.URL.Path, "duration", m.Duration, "status", m.Code)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want, err := s.token()
		if err != nil {
			s.log.Error("token unavailable", "err", err)
			writeError(w, http.StatusInternalServerError, "token unavailable")
			return
		}
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := auth.Bearer(r.Header.Get("Authorization"))
		if !ok {
			// Browsers cannot set headers on a WebSocket handshake.
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type listResponse struct {
	Todos     []model.Todo `json:"todos"`
	Filter    model.Filter `json:"filter"`
	Route     string       `json:"route"`
	Total     int          `json:"total"`
	Completed int          `json:"completed"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type toggleAllRequest struct {
	Completed bool `json:"completed"`
}

type routeRequest struct {
	Hash string `json:"hash"`
}

func (s *Server) list() listResponse {
	st := s.ctl.Store()
	f := st.Filter()
	return listResponse{
		Todos:     st.Visible(),
		Filter:    f,
		Route:     route.Href(f),
		Total:     st.Len(),
		Completed: st.CountCompleted(),
	}
}

func (s *Server) listTodos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.list())
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decode(w, r, &req) {
		return
	}
	t, ok := s.ctl.Create(req.Title)
	if !ok {
		writeError(w, http.StatusBadRequest, "title is empty")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// updateTodo commits an edit; a blank title deletes the todo.
func (s *Server) updateTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req titleRequest
	if !decode(w, r, &req) {
		return
	}
	s.ctl.Commit(id, req.Title)
	if t, ok := s.ctl.Store().Get(id); ok {
		writeJSON(w, http.StatusOK, t)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleTodo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.ctl.Toggle(id)
	t, ok := s.ctl.Store().Get(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	s.ctl.Remove(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleAll(w http.ResponseWriter, r *http.Request) {
	var req toggleAllRequest
	if !decode(w, r, &req) {
		return
	}
	s.ctl.ToggleAll(req.Completed)
	writeJSON(w, http.StatusOK, s.list())
}

func (s *Server) clearCompleted(w http.ResponseWriter, r *http.Request) {
	s.ctl.ClearCompleted()
	writeJSON(w, http.StatusOK, s.list())
}

// applyRoute switches the view; unknown fragments leave it unchanged.
func (s *Server) applyRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decode(w, r, &req) {
		return
	}
	s.ctl.Route(strings.TrimSpace(req.Hash))
	writeJSON(w, http.StatusOK, s.list())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
