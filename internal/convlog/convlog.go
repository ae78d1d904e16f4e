// Package convlog writes conversation transcripts as NDJSON, one file per
// session plus an optional rotated global file.
package convlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls conversation logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	// GlobalMaxSizeMB and GlobalMaxBackups bound the rotated global file.
	GlobalMaxSizeMB  int
	GlobalMaxBackups int
	QueueSize        int
}

// Event is one transcript line.
type Event struct {
	Timestamp  string         `json:"ts"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger accepts transcript events. Log never blocks.
type Logger interface {
	Log(Event)
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Log does nothing.
func (Nop) Log(Event) {}

// Close does nothing.
func (Nop) Close() error { return nil }

// NDJSONLogger writes events from a background goroutine.
type NDJSONLogger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}

	files  map[string]*os.File
	global io.WriteCloser

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Int64
}

// New returns a Logger for cfg. A disabled config yields Nop.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &NDJSONLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		files:  make(map[string]*os.File),
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		l.global = &lumberjack.Logger{
			Filename:   cfg.GlobalPath,
			MaxSize:    cfg.GlobalMaxSizeMB,
			MaxBackups: cfg.GlobalMaxBackups,
			Compress:   true,
		}
	}

	go l.run()
	return l, nil
}

// Log queues e. When the queue is full the event is dropped.
func (l *NDJSONLogger) Log(e Event) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if e.Content == "" && e.ContentRaw != "" {
		e.Content = cleanForReadability(e.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns how many events were dropped on a full queue.
func (l *NDJSONLogger) Dropped() int64 {
	return l.dropped.Load()
}

// Close flushes queued events and closes all files.
func (l *NDJSONLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done

		var errs []error
		for _, f := range l.files {
			errs = append(errs, f.Close())
		}
		if l.global != nil {
			errs = append(errs, l.global.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

func (l *NDJSONLogger) run() {
	defer close(l.done)
	for e := range l.queue {
		line, err := json.Marshal(e)
		if err != nil {
			l.logger.Warn("Failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if err := l.writeSession(e.SessionID, line); err != nil {
			l.logger.Warn("Failed to write conversation log", "session_id", e.SessionID, "error", err)
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("Failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *NDJSONLogger) writeSession(sessionID string, line []byte) error {
	name := safeName(sessionID)
	f, ok := l.files[name]
	if !ok {
		var err error
		f, err = os.OpenFile(filepath.Join(l.cfg.Dir, name+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		l.files[name] = f
	}
	_, err := f.Write(line)
	return err
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safeName(id string) string {
	name := unsafeName.ReplaceAllString(id, "_")
	if name == "" || strings.Trim(name, ".") == "" {
		return "unknown"
	}
	return name
}

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	tagPattern  = regexp.MustCompile(`<[^>]+>`)
	spaceRun    = regexp.MustCompile(`[ \t]+`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// cleanForReadability strips escape sequences and markup so the log reads
// as plain text.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
