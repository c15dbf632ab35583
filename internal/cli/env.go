package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Makepad-fr/tada/internal/app"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logs"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/store/jsonstore"
	"github.com/Makepad-fr/tada/internal/store/sqlitestore"
	"github.com/Makepad-fr/tada/internal/todos"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/watch"
)

// env is everything a subcommand needs, wired in startup order: config,
// logger, backend, store, persisted todos, then the persister.
type env struct {
	cfg       config.Config
	log       *slog.Logger
	closeLog  func() error
	kv        store.KV
	filePath  string // set for the file backend
	persister *store.Persister
	store     *todos.Store
	ctl       *app.Controller
}

func openEnv(ctx context.Context, opt Options, terminal io.Writer) (*env, error) {
	cfg, err := config.Load(opt.ConfigPath)
	if err != nil {
		return nil, err
	}
	ui.SetTheme(cfg.Theme)

	log, closeLog, err := logs.New(logs.Options{Level: cfg.Log.Level, File: cfg.Log.File, Terminal: terminal})
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, closeLog: closeLog}

	switch cfg.Storage.Backend {
	case "sqlite":
		kv, err := sqlitestore.Open(cfg.Storage.Path)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.kv = kv
	default:
		kv, err := jsonstore.Open(cfg.Storage.Dir)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.kv = kv
		e.filePath = kv.Path(cfg.Storage.Namespace)
	}

	e.persister = store.NewPersister(e.kv, cfg.Storage.Namespace, log)
	e.store = todos.New(todos.WithThrottle(cfg.Throttle), todos.WithLogger(log))
	if err := e.store.Initialize(ctx, e.persister); err != nil {
		e.Close()
		return nil, err
	}
	s := e.store
	e.persister.Attach(s, store.Streams{Added: s.Added, Removed: s.Removed, Updated: s.Updated})
	e.ctl = app.New(s, log)

	if opt.Filter != "" && !e.ctl.Route(opt.Filter) {
		e.Close()
		return nil, fmt.Errorf("unknown filter %q (want #/, #/active or #/completed)", opt.Filter)
	}
	return e, nil
}

// watch starts reloading on external writes when the file backend is in use.
func (e *env) watch(ctx context.Context) {
	if !e.cfg.Watch || e.filePath == "" {
		return
	}
	if err := watch.New(e.filePath, e.store, e.persister, e.log).Start(ctx); err != nil {
		e.log.Warn("file watcher disabled", "err", err)
	}
}

func (e *env) Close() {
	if e.persister != nil {
		e.persister.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.kv != nil {
		if err := e.kv.Close(); err != nil {
			e.log.Warn("close storage", "err", err)
		}
	}
	if e.closeLog != nil {
		_ = e.closeLog()
	}
}
