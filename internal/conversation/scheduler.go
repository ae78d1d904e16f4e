package conversation

import (
	"context"
	"sync"
	"time"
)

// Task is a unit of deferred assistant work for one session.
type Task struct {
	SessionID string
	// Delay is waited before anything else, without the composing indicator.
	Delay time.Duration
	// Paced tasks wait one pacer delay with the composing indicator on.
	Paced bool
	Run   func(ctx context.Context)
}

// Scheduler runs tasks in submission order per session. Tasks of different
// sessions run independently.
type Scheduler struct {
	ctx         context.Context
	cancel      context.CancelFunc
	pacer       Pacer
	onComposing func(sessionID string, on bool)

	mu      sync.Mutex
	queues  map[string][]Task
	running map[string]bool
	closed  bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. onComposing may be nil.
func NewScheduler(pacer Pacer, onComposing func(sessionID string, on bool)) *Scheduler {
	if onComposing == nil {
		onComposing = func(string, bool) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:         ctx,
		cancel:      cancel,
		pacer:       pacer,
		onComposing: onComposing,
		queues:      make(map[string][]Task),
		running:     make(map[string]bool),
	}
}

// Schedule queues t behind any pending tasks of the same session.
// It reports false once the scheduler is closed.
func (s *Scheduler) Schedule(t Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.wg.Add(1)
	s.queues[t.SessionID] = append(s.queues[t.SessionID], t)
	if !s.running[t.SessionID] {
		s.running[t.SessionID] = true
		go s.drain(t.SessionID)
	}
	return true
}

// Pending returns the number of queued tasks for a session.
func (s *Scheduler) Pending(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[sessionID])
}

func (s *Scheduler) drain(sessionID string) {
	for {
		s.mu.Lock()
		q := s.queues[sessionID]
		if len(q) == 0 {
			delete(s.queues, sessionID)
			delete(s.running, sessionID)
			s.mu.Unlock()
			return
		}
		t := q[0]
		s.queues[sessionID] = q[1:]
		s.mu.Unlock()

		s.run(t)
		s.wg.Done()
	}
}

func (s *Scheduler) run(t Task) {
	if t.Delay > 0 && !s.sleep(t.Delay) {
		return
	}
	if t.Paced {
		s.onComposing(t.SessionID, true)
		ok := s.sleep(s.pacer.Next())
		s.onComposing(t.SessionID, false)
		if !ok {
			return
		}
	}
	if s.ctx.Err() != nil || t.Run == nil {
		return
	}
	t.Run(s.ctx)
}

func (s *Scheduler) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Wait blocks until every scheduled task, including tasks scheduled by
// running tasks, has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops accepting tasks, abandons pending delays and waits for
// running tasks to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
