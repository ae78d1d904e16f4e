package main

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ashureev/careerpath/internal/conversation"
)

var errQuit = errors.New("quit")

type repl struct {
	ctrl *conversation.Controller
	out  *printer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := lines(ctx, in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-input:
			if !ok {
				r.ctrl.Wait()
				return nil
			}
			if err := r.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		err := r.ctrl.HandleInput(ctx, line)
		if errors.Is(err, conversation.ErrEmptyInput) || errors.Is(err, conversation.ErrNoActiveSession) {
			return nil
		}
		return err
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/new":
		r.ctrl.StartNewChat(ctx)
	case "/list", "/history":
		if cmd == "/history" {
			r.ctrl.ToggleHistory()
		}
		r.out.sessions(r.ctrl.Sessions(), r.ctrl.ActiveID())
	case "/open":
		if arg == "" {
			r.out.notice("usage: /open <id>")
			return nil
		}
		sess, fallback := r.ctrl.SelectSession(ctx, r.resolve(arg))
		if fallback {
			r.out.notice("no session " + arg + ", started a new one")
			return nil
		}
		r.out.transcript(sess)
	case "/delete":
		if arg == "" {
			r.out.notice("usage: /delete <id>")
			return nil
		}
		if err := r.ctrl.DeleteSession(ctx, r.resolve(arg)); err != nil {
			r.out.notice(err.Error())
		}
	case "/help":
		r.out.help()
	default:
		r.out.notice("unknown command " + cmd + ", try /help")
	}
	return nil
}

// resolve expands a unique id prefix to the full session id.
func (r *repl) resolve(prefix string) string {
	match := ""
	for _, s := range r.ctrl.Sessions() {
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return prefix
			}
			match = s.ID
		}
	}
	if match == "" {
		return prefix
	}
	return match
}
