package main

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/ashureev/careerpath/internal/conversation"
	"github.com/ashureev/careerpath/internal/domain"
	"github.com/fatih/color"
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// printer renders controller events as terminal lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	bot    *color.Color
	user   *color.Color
	dim    *color.Color
	accent *color.Color
}

func newPrinter(out io.Writer, colored bool) *printer {
	p := &printer{
		out:    out,
		bot:    color.New(color.FgCyan),
		user:   color.New(color.FgGreen),
		dim:    color.New(color.Faint),
		accent: color.New(color.FgYellow, color.Bold),
	}
	for _, c := range []*color.Color{p.bot, p.user, p.dim, p.accent} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// OnEvent implements conversation.Listener.
func (p *printer) OnEvent(e conversation.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case conversation.EventMessage:
		// User lines are already on screen.
		if e.Message != nil && e.Message.Role == domain.RoleBot {
			p.message(*e.Message)
		}
	case conversation.EventComposing:
		if e.Composing {
			p.dim.Fprintln(p.out, "  assistant is typing...")
		}
	case conversation.EventSession:
		if e.Title != "" {
			p.accent.Fprintf(p.out, "== %s [%s] ==\n", e.Title, shortID(e.SessionID))
		}
	case conversation.EventDeleted:
		p.dim.Fprintf(p.out, "  deleted %s\n", shortID(e.SessionID))
	}
}

func (p *printer) message(m domain.Message) {
	if m.Role == domain.RoleUser {
		p.user.Fprint(p.out, "you> ")
		fmt.Fprintln(p.out, m.Content)
		return
	}
	p.bot.Fprint(p.out, "bot> ")
	fmt.Fprintln(p.out, plain(m.Content))
}

func (p *printer) transcript(s domain.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range s.Messages {
		p.message(m)
	}
}

func (p *printer) sessions(list []domain.SessionSummary, activeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(list) == 0 {
		p.dim.Fprintln(p.out, "  no sessions")
		return
	}
	for _, s := range list {
		marker := " "
		if s.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(p.out, "%s %s  %-28s %3d messages  %s\n",
			marker, shortID(s.ID), s.Title, s.MessageCount, s.CreatedAt.Local().Format("Jan 2 15:04"))
	}
}

func (p *printer) notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dim.Fprintln(p.out, "  "+msg)
}

func (p *printer) help() {
	p.notice("/new  /list  /history  /open <id>  /delete <id>  /quit")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// plain strips the HTML the generator is asked to produce.
func plain(s string) string {
	s = strings.NewReplacer("<li>", "\n  - ", "</p>", "\n", "<br>", "\n").Replace(s)
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}
