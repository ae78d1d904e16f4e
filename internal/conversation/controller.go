// Package conversation implements the onboarding conversation: it turns
// user input into a profile one step at a time, emits paced assistant
// messages and manages which session is active.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/careerpath/internal/domain"
	"github.com/ashureev/careerpath/internal/gateway"
	"github.com/ashureev/careerpath/internal/greeting"
	"github.com/ashureev/careerpath/internal/ledger"
	"github.com/ashureev/careerpath/internal/session"
)

var (
	// ErrEmptyInput is returned for blank input. Callers may ignore it.
	ErrEmptyInput = errors.New("empty input")
	// ErrNoActiveSession is returned when input arrives with no active session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrNoGenerator is reported when no generation backend is configured.
	ErrNoGenerator = errors.New("no generation backend configured")
)

// Options configures a Controller.
type Options struct {
	Pacer        Pacer
	OpeningDelay time.Duration
	Listener     Listener
	Now          func() time.Time
}

// State is a snapshot of the controller for presentation.
type State struct {
	Session     *domain.Session `json:"session,omitempty"`
	Step        Step            `json:"step"`
	Phase       string          `json:"phase"`
	Profile     domain.Profile  `json:"profile"`
	Composing   bool            `json:"composing"`
	HistoryOpen bool            `json:"historyOpen"`
}

// Controller owns the active session, the step cursor and the working
// profile. All mutation happens under mu; the scheduler's goroutines take
// the same lock before touching state.
type Controller struct {
	sessions     *session.Store
	gen          gateway.Generator
	sched        *Scheduler
	listener     Listener
	now          func() time.Time
	openingDelay time.Duration

	mu          sync.Mutex
	activeID    string
	step        Step
	profile     domain.Profile
	historyOpen bool
	composing   map[string]int

	// epoch changes whenever a session is (re)activated. Work scheduled
	// under an older epoch is stale even if the id matches again.
	epoch uint64
}

// New creates a controller over sessions. gen may be nil, in which case
// every completed profile ends with the apology message.
func New(sessions *session.Store, gen gateway.Generator, opts Options) *Controller {
	if opts.Pacer == nil {
		opts.Pacer = NewRandomPacer(DefaultPacingMin, DefaultPacingMax)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Listener == nil {
		opts.Listener = Listeners(nil)
	}
	if opts.OpeningDelay < 0 {
		opts.OpeningDelay = 0
	}

	c := &Controller{
		sessions:     sessions,
		gen:          gen,
		listener:     opts.Listener,
		now:          opts.Now,
		openingDelay: opts.OpeningDelay,
		composing:    make(map[string]int),
	}
	c.sched = NewScheduler(opts.Pacer, c.setComposing)
	return c
}

// StartNewChat creates an empty session, makes it active and schedules the
// welcome message.
func (c *Controller) StartNewChat(ctx context.Context) domain.Session {
	c.mu.Lock()
	sess := c.startNewChatLocked(ctx)
	c.mu.Unlock()

	c.publish(Event{Type: EventSession, SessionID: sess.ID, Title: sess.Title, Phase: StepName.Phase()})
	return sess
}

func (c *Controller) startNewChatLocked(ctx context.Context) domain.Session {
	sess := domain.NewSession(c.now())
	if err := c.sessions.Prepend(ctx, sess); err != nil {
		slog.Error("Failed to persist new session", "session_id", sess.ID, "error", err)
	}

	c.activeID = sess.ID
	c.epoch++
	c.step = StepName
	c.profile = domain.Profile{}

	welcome := c.emit(sess.ID, c.epoch, WelcomeMessage, nil)
	welcome.Delay = c.openingDelay
	c.sched.Schedule(welcome)

	slog.Info("Started new chat", "session_id", sess.ID)
	return sess
}

// HandleInput accepts one line of user input for the active session.
// The raw text is stored verbatim; the trimmed text is captured into the
// profile.
func (c *Controller) HandleInput(ctx context.Context, text string) error {
	input := strings.TrimSpace(text)
	if input == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	ev, err := c.handleInputLocked(ctx, text, input)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.publish(ev)
	return nil
}

func (c *Controller) handleInputLocked(ctx context.Context, raw, input string) (Event, error) {
	if c.activeID == "" {
		return Event{}, ErrNoActiveSession
	}
	id, epoch := c.activeID, c.epoch

	msg, err := c.appendLocked(ctx, id, domain.RoleUser, raw)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrNoActiveSession, err)
	}

	step := c.step
	switch {
	case step == StepName:
		c.capture(domain.KeyName, input)
		c.step = StepCountry
		c.sched.Schedule(c.emit(id, epoch, NameAcknowledgement(input), nil))

	case step == StepCountry:
		c.capture(domain.KeyCountry, input)
		c.step = StepReligion
		c.sched.Schedule(c.emit(id, epoch, ReligionPrompt, nil))

	case step == StepReligion:
		c.capture(domain.KeyReligion, input)
		hello := greeting.Resolve(c.profile.Country, c.profile.Religion)
		first, _ := ledger.Get(0)
		c.step = StepFirstQuestion
		c.sched.Schedule(c.emit(id, epoch, GreetingMessage(hello, c.profile.Name, first.Render()), nil))

	default:
		i, ok := step.QuestionIndex()
		if !ok {
			slog.Debug("Input recorded without advancing", "session_id", id, "phase", step.Phase())
			break
		}
		q, _ := ledger.Get(i)
		c.capture(q.Key, input)

		if i < ledger.Len()-1 {
			next, _ := ledger.Get(i + 1)
			c.step = step + 1
			c.sched.Schedule(c.emit(id, epoch, next.Render(), nil))
			break
		}

		c.step = StepGenerating
		profile := c.profile
		c.sched.Schedule(c.emit(id, epoch, AnalyzingMessage, nil))
		c.sched.Schedule(Task{
			SessionID: id,
			Run: func(ctx context.Context) {
				c.finalize(ctx, id, epoch, profile)
			},
		})
	}

	slog.Debug("Input handled", "session_id", id, "from", step.Phase(), "to", c.step.Phase())
	return messageEvent(id, msg), nil
}

func (c *Controller) capture(key domain.ProfileKey, value string) {
	if err := c.profile.Set(key, value); err != nil {
		slog.Warn("Ignoring answer for unknown profile key", "key", key, "error", err)
	}
}

// finalize asks the generator for the career path and reports the outcome.
// It is attempted once per completed profile.
func (c *Controller) finalize(ctx context.Context, id string, epoch uint64, p domain.Profile) {
	if !c.isCurrent(id, epoch) {
		slog.Info("Skipping generation for inactive session", "session_id", id)
		return
	}

	text, err := c.generate(ctx, BuildPrompt(p))
	if err != nil {
		slog.Error("Career path generation failed", "session_id", id, "error", err)
		c.sched.Schedule(c.emit(id, epoch, ApologyMessage, c.markDone(id)))
		return
	}

	c.mu.Lock()
	if c.activeID != id || c.epoch != epoch {
		c.mu.Unlock()
		slog.Info("Discarding generated career path for inactive session", "session_id", id)
		return
	}
	sess, err := c.sessions.Get(id)
	if err != nil {
		c.mu.Unlock()
		slog.Warn("Generated career path for missing session", "session_id", id, "error", err)
		return
	}
	sess.Title = domain.CareerPathTitle(p.Name)
	finished := p
	sess.Profile = &finished
	if err := c.sessions.Update(ctx, sess); err != nil {
		slog.Error("Failed to persist finished profile", "session_id", id, "error", err)
	}
	c.mu.Unlock()

	c.publish(Event{Type: EventSession, SessionID: id, Title: sess.Title, Phase: StepGenerating.Phase()})
	c.sched.Schedule(c.emit(id, epoch, ResultMessage(text), nil))
	c.sched.Schedule(c.emit(id, epoch, ClosingMessage, c.markDone(id)))
}

func (c *Controller) generate(ctx context.Context, prompt string) (string, error) {
	if c.gen == nil {
		return "", ErrNoGenerator
	}
	return c.gen.Generate(ctx, prompt)
}

// markDone returns a hook that moves the session to StepDone once its last
// assistant message is in.
func (c *Controller) markDone(id string) func() {
	return func() {
		if c.activeID == id && c.step == StepGenerating {
			c.step = StepDone
		}
	}
}

// emit builds a paced task that appends a bot message to session id, unless
// the session was replaced or re-activated since epoch. then runs under the
// controller lock right after the append.
func (c *Controller) emit(id string, epoch uint64, content string, then func()) Task {
	return Task{
		SessionID: id,
		Paced:     true,
		Run: func(ctx context.Context) {
			c.mu.Lock()
			if c.activeID != id || c.epoch != epoch {
				c.mu.Unlock()
				slog.Debug("Discarding stale assistant message", "session_id", id)
				return
			}
			msg, err := c.appendLocked(ctx, id, domain.RoleBot, content)
			if err == nil && then != nil {
				then()
			}
			c.mu.Unlock()

			if err != nil {
				slog.Warn("Dropping assistant message", "session_id", id, "error", err)
				return
			}
			c.publish(messageEvent(id, msg))
		},
	}
}

// appendLocked appends a message to the stored session by full-record
// replace. Persistence failures are logged; the in-memory collection keeps
// the message.
func (c *Controller) appendLocked(ctx context.Context, id string, role domain.Role, content string) (domain.Message, error) {
	sess, err := c.sessions.Get(id)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.NewMessage(role, content, c.now())
	if err := c.sessions.Update(ctx, sess.WithMessage(msg)); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return domain.Message{}, err
		}
		slog.Error("Failed to persist session", "session_id", id, "error", err)
	}
	return msg, nil
}

// LoadSession makes an existing session active for viewing. The cursor is
// parked, so further input is recorded but nothing advances.
func (c *Controller) LoadSession(id string) (domain.Session, error) {
	c.mu.Lock()
	sess, err := c.sessions.Get(id)
	if err != nil {
		c.mu.Unlock()
		return domain.Session{}, err
	}
	c.activeID = id
	c.epoch++
	c.step = StepViewing
	c.profile = domain.Profile{}
	if sess.Profile != nil {
		c.profile = *sess.Profile
	}
	c.historyOpen = false
	c.mu.Unlock()

	slog.Info("Loaded session", "session_id", id)
	c.publish(Event{Type: EventSession, SessionID: id, Title: sess.Title, Phase: StepViewing.Phase()})
	return sess, nil
}

// SelectSession loads id, falling back to a new chat when it does not
// exist. The bool reports whether the fallback was taken.
func (c *Controller) SelectSession(ctx context.Context, id string) (domain.Session, bool) {
	sess, err := c.LoadSession(id)
	if err == nil {
		return sess, false
	}
	slog.Warn("Selected session not found, starting a new chat", "session_id", id, "error", err)
	return c.StartNewChat(ctx), true
}

// DeleteSession removes a session. Deleting the active session starts a new
// chat right away so there is always an active session.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	c.mu.Lock()
	err := c.sessions.Delete(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		slog.Error("Failed to persist session deletion", "session_id", id, "error", err)
	}

	var created *domain.Session
	if c.activeID == id {
		c.activeID = ""
		sess := c.startNewChatLocked(ctx)
		created = &sess
	}
	c.mu.Unlock()

	slog.Info("Deleted session", "session_id", id, "was_active", created != nil)
	c.publish(Event{Type: EventDeleted, SessionID: id})
	if created != nil {
		c.publish(Event{Type: EventSession, SessionID: created.ID, Title: created.Title, Phase: StepName.Phase()})
	}
	return nil
}

// ToggleHistory flips the history panel flag and returns the new value.
func (c *Controller) ToggleHistory() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyOpen = !c.historyOpen
	return c.historyOpen
}

// Sessions lists all sessions, newest first.
func (c *Controller) Sessions() []domain.SessionSummary {
	return c.sessions.List()
}

// State returns a snapshot of the active session and cursor.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Step:        c.step,
		Phase:       c.step.Phase(),
		Profile:     c.profile,
		Composing:   c.composing[c.activeID] > 0,
		HistoryOpen: c.historyOpen,
	}
	if c.activeID != "" {
		if sess, err := c.sessions.Get(c.activeID); err == nil {
			st.Session = &sess
		}
	}
	return st
}

// ActiveID returns the id of the active session, or "".
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

func (c *Controller) isCurrent(id string, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID == id && c.epoch == epoch
}

func (c *Controller) setComposing(id string, on bool) {
	c.mu.Lock()
	if on {
		c.composing[id]++
	} else if c.composing[id]--; c.composing[id] <= 0 {
		delete(c.composing, id)
	}
	c.mu.Unlock()

	c.publish(Event{Type: EventComposing, SessionID: id, Composing: on})
}

func (c *Controller) publish(e Event) {
	c.listener.OnEvent(e)
}

func messageEvent(id string, m domain.Message) Event {
	return Event{Type: EventMessage, SessionID: id, Message: &m}
}

// Wait blocks until all pending assistant messages have been handled.
func (c *Controller) Wait() {
	c.sched.Wait()
}

// Close abandons pending assistant messages and stops the scheduler.
func (c *Controller) Close() {
	c.sched.Close()
}
