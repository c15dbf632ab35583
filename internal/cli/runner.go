package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/web"
)

// Options tune output behavior from root flags.
type Options struct {
	Group      bool   // list grouped by pending/done
	ConfigPath string // YAML config; empty means ./tada.yaml if present
	Filter     string // hash route applied before the command, e.g. "#/active"
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, opt Options) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		return withEnv(opt, io.Discard, doInteractive)

	case "list":
		return withEnv(opt, nil, func(e *env) int { return doList(e, opt) })

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: todo add <title...>")
			return 2
		}
		return withEnv(opt, nil, func(e *env) int { return doAdd(e, strings.Join(a, " ")) })

	case "done":
		if len(a) != 1 {
			ui.Fail("usage: todo done <index>")
			return 2
		}
		return withIndex(opt, "done", a[0], doToggle)

	case "rm":
		if len(a) != 1 {
			ui.Fail("usage: todo rm <index>")
			return 2
		}
		return withIndex(opt, "rm", a[0], doRemove)

	case "edit":
		if len(a) < 1 {
			ui.Fail("usage: todo edit <index> [title...]")
			return 2
		}
		title := strings.Join(a[1:], " ")
		return withIndex(opt, "edit", a[0], func(e *env, t model.Todo) int { return doEdit(e, t, title) })

	case "toggle-all":
		if len(a) > 1 {
			ui.Fail("usage: todo toggle-all [on|off]")
			return 2
		}
		var target *bool
		if len(a) == 1 {
			b, ok := map[string]bool{"on": true, "off": false}[a[0]]
			if !ok {
				ui.Fail("toggle-all: want on or off, got " + a[0])
				return 2
			}
			target = &b
		}
		return withEnv(opt, nil, func(e *env) int { return doToggleAll(e, target) })

	case "clear":
		return withEnv(opt, nil, doClear)

	case "serve":
		return withEnv(opt, nil, doServe)

	case "auth":
		if len(a) == 0 {
			ui.Fail("usage: todo auth <login|logout|status>")
			return 2
		}
		return doAuth(opt, a[0])
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(os.Stderr)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Printf(`todo - a tiny reactive todo list

Usage:
  todo [-config file] [-filter route] [-group] <subcommand> [args]

Subcommands:
  add <title...>           Add a new item (title can be multiple words)
  ls                       Interactive list (TUI)
  list                     Print items; -filter #/active or #/completed narrows
  done <index>             Toggle done for item at 1-based index
  edit <index> [title...]  Rename item; an empty title removes it
  rm <index>               Remove item at 1-based index
  toggle-all [on|off]      Mark every item done or not done
  clear                    Remove all done items
  serve                    Serve the JSON API and event feed
  auth <login|logout|status>   Token for the served API

Examples:
  todo add "Buy milk"
  todo -filter '#/active' list
  todo done 2
  todo rm 3
`)
}

// -------------- wiring ----------------

func withEnv(opt Options, terminal io.Writer, f func(*env) int) int {
	e, err := openEnv(context.Background(), opt, terminal)
	if err != nil {
		ui.Fail("load: " + err.Error())
		return 1
	}
	defer e.Close()
	return f(e)
}

func withIndex(opt Options, name, arg string, f func(*env, model.Todo) int) int {
	n, err := strconv.Atoi(arg)
	if err != nil {
		ui.Fail(name + ": not a number: " + arg)
		return 2
	}
	return withEnv(opt, nil, func(e *env) int {
		items := e.store.Todos()
		if n < 1 || n > len(items) {
			ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(items), n))
			fmt.Fprintln(os.Stderr, ui.Current().Muted.Render("Hint: run `todo list` to see valid indexes"))
			return 2
		}
		return f(e, items[n-1])
	})
}

// -------------- subcommand impls ----------------

func doInteractive(e *env) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.watch(ctx)
	if err := ui.RunTUI(e.ctl); err != nil {
		ui.Fail("tui: " + err.Error())
		return 1
	}
	fmt.Println(ui.Summary(e.store))
	return 0
}

func doList(e *env, opt Options) int {
	items := e.store.Todos()
	done := e.store.CountCompleted()

	var lines []string
	lines = append(lines, ui.Header(len(items), done))
	lines = append(lines, ui.Current().Muted.Render(ui.ProgressBar(done, len(items), 28)))
	lines = append(lines, "")
	if opt.Group {
		lines = append(lines, ui.GroupLines(items)...)
	} else {
		lines = append(lines, ui.FlatLines(items, e.store.Filter())...)
	}
	lines = append(lines, "")
	lines = append(lines, ui.Counter(len(items)-done)+"   "+ui.Filters(e.store.Filter()))
	ui.Panel(lines)
	return 0
}

func doAdd(e *env, title string) int {
	if _, ok := e.ctl.Create(title); !ok {
		ui.Fail("add: empty title")
		return 2
	}
	ui.OK("added")
	return 0
}

func doToggle(e *env, t model.Todo) int {
	e.ctl.Toggle(t.ID)
	ui.OK("toggled")
	return 0
}

func doRemove(e *env, t model.Todo) int {
	e.ctl.Remove(t.ID)
	ui.OK("removed")
	return 0
}

func doEdit(e *env, t model.Todo, title string) int {
	s, err := e.ctl.BeginEdit(t.ID)
	if err != nil {
		ui.Fail("edit: " + err.Error())
		return 1
	}
	s.Save(title)
	if _, ok := e.store.Get(t.ID); !ok {
		ui.OK("removed")
		return 0
	}
	ui.OK("renamed")
	return 0
}

func doToggleAll(e *env, target *bool) int {
	done := e.store.CountCompleted() < e.store.Len()
	if target != nil {
		done = *target
	}
	e.ctl.ToggleAll(done)
	ui.OK(fmt.Sprintf("%d of %d done", e.store.CountCompleted(), e.store.Len()))
	return 0
}

func doClear(e *env) int {
	before := e.store.Len()
	e.ctl.ClearCompleted()
	ui.OK(fmt.Sprintf("cleared %d", before-e.store.Len()))
	return 0
}

func doServe(e *env) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keyring := auth.Keyring{Dir: e.cfg.AuthDir}
	token := func() (string, error) {
		ti, err := keyring.Token()
		if err != nil || ti == nil {
			return "", err
		}
		return ti.Token, nil
	}
	if _, err := token(); err != nil {
		ui.Fail("serve: " + err.Error())
		return 1
	}
	e.watch(ctx)
	if err := web.New(e.ctl, e.log, token).ListenAndServe(ctx, e.cfg.HTTP.Addr); err != nil {
		ui.Fail("serve: " + err.Error())
		return 1
	}
	return 0
}

// -------------- auth ----------------

func doAuth(opt Options, sub string) int {
	cfg, err := config.Load(opt.ConfigPath)
	if err != nil {
		ui.Fail("config: " + err.Error())
		return 1
	}
	k := auth.Keyring{Dir: cfg.AuthDir}
	switch sub {
	case "login":
		fmt.Print("Paste your token: ")
		var token string
		if _, err := fmt.Scanln(&token); err != nil {
			ui.Fail("read token: " + err.Error())
			return 1
		}
		if err := k.SetToken(token); err != nil {
			ui.Fail("save token: " + err.Error())
			return 1
		}
		ui.OK("logged in")
		return 0
	case "logout":
		ti, _ := k.Token()
		if ti != nil && ti.Source == "env" {
			ui.OK("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
			return 0
		}
		if err := k.DeleteToken(); err != nil {
			ui.Fail("logout: " + err.Error())
			return 1
		}
		ui.OK("logged out")
		return 0
	case "status":
		ti, err := k.Token()
		if err != nil {
			ui.Fail("status: " + err.Error())
			return 1
		}
		if ti == nil {
			fmt.Println(ui.Current().Muted.Render("no token: the API is open"))
			fmt.Println("Run: todo auth login")
			return 0
		}
		fmt.Printf("source: %s\n", ti.Source)
		fmt.Println("env override: " + auth.EnvToken)
		return 0
	}
	ui.Fail("usage: todo auth <login|logout|status>")
	return 2
}
