package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/careerpath/internal/domain"
	"github.com/ashureev/careerpath/internal/gateway"
	"github.com/ashureev/careerpath/internal/greeting"
	"github.com/ashureev/careerpath/internal/ledger"
	"github.com/ashureev/careerpath/internal/session"
	"github.com/ashureev/careerpath/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var profileAnswers = []string{
	"Aisha", "Pakistan", "Islam",
	"Software Developer", "3", "Go, SQL, mentoring", "Open source", "4", "Technology", "Lead a platform team",
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newController(t *testing.T, gen gateway.Generator, opts Options) (*Controller, *session.Store) {
	t.Helper()
	repo, err := store.NewFile(t.TempDir())
	require.NoError(t, err)
	sessions, err := session.Open(context.Background(), repo, session.DefaultSlot)
	require.NoError(t, err)

	if opts.Pacer == nil {
		opts.Pacer = FixedPacer(0)
	}
	c := New(sessions, gen, opts)
	t.Cleanup(c.Close)
	return c, sessions
}

func staticGenerator(text string) (gateway.Generator, *[]string) {
	var mu sync.Mutex
	var prompts []string
	gen := gateway.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		prompts = append(prompts, prompt)
		return text, nil
	})
	return gen, &prompts
}

func countRoles(msgs []domain.Message) (bots, users int) {
	for _, m := range msgs {
		if m.Role == domain.RoleBot {
			bots++
		} else {
			users++
		}
	}
	return bots, users
}

func answerAll(t *testing.T, c *Controller, answers []string) {
	t.Helper()
	ctx := context.Background()
	for _, a := range answers {
		require.NoError(t, c.HandleInput(ctx, a))
		c.Wait()
	}
}

func TestFullConversation(t *testing.T) {
	gen, prompts := staticGenerator("<p>Become a staff engineer.</p>")
	c, sessions := newController(t, gen, Options{})
	ctx := context.Background()

	sess := c.StartNewChat(ctx)
	c.Wait()

	st := c.State()
	require.NotNil(t, st.Session)
	require.Len(t, st.Session.Messages, 1)
	assert.Equal(t, WelcomeMessage, st.Session.Messages[0].Content)

	answerAll(t, c, profileAnswers)

	st = c.State()
	assert.Equal(t, StepDone, st.Step)
	require.NotNil(t, st.Session)
	assert.Equal(t, "Aisha's Career Path", st.Session.Title)

	msgs := st.Session.Messages
	bots, users := countRoles(msgs)
	assert.Equal(t, 3+ledger.Len(), users)
	assert.Equal(t, 1+3+(ledger.Len()-1)+3, bots)

	assert.Equal(t, NameAcknowledgement("Aisha"), msgs[2].Content)
	assert.Equal(t, ReligionPrompt, msgs[4].Content)
	assert.True(t, strings.HasPrefix(msgs[6].Content, greeting.Arabic+" Aisha! 🙏"), msgs[6].Content)

	n := len(msgs)
	assert.Equal(t, AnalyzingMessage, msgs[n-3].Content)
	assert.Equal(t, ResultMessage("<p>Become a staff engineer.</p>"), msgs[n-2].Content)
	assert.Equal(t, ClosingMessage, msgs[n-1].Content)

	stored, err := sessions.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Profile)
	assert.Equal(t, "Aisha", stored.Profile.Name)
	assert.Equal(t, "4", stored.Profile.WorkEnvironment)
	assert.Equal(t, "Lead a platform team", stored.Profile.CareerGoals)

	require.Len(t, *prompts, 1)
	assert.Contains(t, (*prompts)[0], "- Name: Aisha")
	assert.Contains(t, (*prompts)[0], "- Experience Level: 3")
}

func TestEveryStepAdvancesByOne(t *testing.T) {
	gen, _ := staticGenerator("ok")
	c, _ := newController(t, gen, Options{})
	ctx := context.Background()
	c.StartNewChat(ctx)
	c.Wait()

	for i, a := range profileAnswers[:len(profileAnswers)-1] {
		before := c.State()
		require.Equal(t, Step(i), before.Step)

		require.NoError(t, c.HandleInput(ctx, a))
		assert.Equal(t, Step(i+1), c.State().Step)

		c.Wait()
		after := c.State()
		assert.Equal(t, Step(i+1), after.Step)
		require.Len(t, after.Session.Messages, len(before.Session.Messages)+2)
		user := after.Session.Messages[len(after.Session.Messages)-2]
		assert.Equal(t, domain.RoleUser, user.Role)
		assert.Equal(t, a, user.Content)
	}

	require.NoError(t, c.HandleInput(ctx, profileAnswers[len(profileAnswers)-1]))
	assert.Equal(t, StepGenerating, c.State().Step)
	c.Wait()
	assert.Equal(t, StepDone, c.State().Step)
}

func TestQuestionsRenderOptions(t *testing.T) {
	gen, _ := staticGenerator("ok")
	c, _ := newController(t, gen, Options{})
	c.StartNewChat(context.Background())
	c.Wait()

	answerAll(t, c, profileAnswers[:4])

	msgs := c.State().Session.Messages
	q, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Equal(t, q.Render(), msgs[len(msgs)-1].Content)
	assert.Contains(t, msgs[len(msgs)-1].Content, "1. Entry Level (0-2 years)")
}

func TestVerbatimInputTrimmedCapture(t *testing.T) {
	gen, _ := staticGenerator("ok")
	c, _ := newController(t, gen, Options{})
	c.StartNewChat(context.Background())
	c.Wait()

	require.NoError(t, c.HandleInput(context.Background(), "  Aisha \n"))
	c.Wait()

	st := c.State()
	assert.Equal(t, "  Aisha \n", st.Session.Messages[1].Content)
	assert.Equal(t, "Aisha", st.Profile.Name)
	assert.Equal(t, NameAcknowledgement("Aisha"), st.Session.Messages[2].Content)
}

func TestGatewayFailure(t *testing.T) {
	calls := 0
	gen := gateway.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "", gateway.ErrStatus
	})
	c, sessions := newController(t, gen, Options{})
	sess := c.StartNewChat(context.Background())
	c.Wait()

	answerAll(t, c, profileAnswers)

	stored, err := sessions.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionTitle, stored.Title)
	assert.Nil(t, stored.Profile)
	assert.Equal(t, 1, calls)

	apologies := 0
	for _, m := range stored.Messages {
		if m.Content == ApologyMessage {
			apologies++
		}
	}
	assert.Equal(t, 1, apologies)
	assert.Equal(t, ApologyMessage, stored.Messages[len(stored.Messages)-1].Content)
	assert.Equal(t, StepDone, c.State().Step)

	// Nothing retries the generation.
	require.NoError(t, c.HandleInput(context.Background(), "hello?"))
	c.Wait()
	assert.Equal(t, 1, calls)
}

func TestNilGeneratorApologises(t *testing.T) {
	c, _ := newController(t, nil, Options{})
	c.StartNewChat(context.Background())
	c.Wait()
	answerAll(t, c, profileAnswers)

	msgs := c.State().Session.Messages
	assert.Equal(t, ApologyMessage, msgs[len(msgs)-1].Content)
}

func TestInputAfterCompletionDoesNotAdvance(t *testing.T) {
	gen, prompts := staticGenerator("ok")
	c, _ := newController(t, gen, Options{})
	c.StartNewChat(context.Background())
	c.Wait()
	answerAll(t, c, profileAnswers)

	before := len(c.State().Session.Messages)
	require.NoError(t, c.HandleInput(context.Background(), "one more thing"))
	c.Wait()

	st := c.State()
	assert.Equal(t, StepDone, st.Step)
	assert.Len(t, st.Session.Messages, before+1)
	assert.Len(t, *prompts, 1)
}

func TestRejectsEmptyInputAndNoSession(t *testing.T) {
	c, _ := newController(t, nil, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, c.HandleInput(ctx, "hello"), ErrNoActiveSession)

	c.StartNewChat(ctx)
	c.Wait()
	assert.ErrorIs(t, c.HandleInput(ctx, "   \t\n"), ErrEmptyInput)
	assert.ErrorIs(t, c.HandleInput(ctx, ""), ErrEmptyInput)

	st := c.State()
	assert.Len(t, st.Session.Messages, 1)
	assert.Equal(t, StepName, st.Step)
}

func TestRapidInputKeepsOrder(t *testing.T) {
	gen, _ := staticGenerator("ok")
	c, _ := newController(t, gen, Options{Pacer: FixedPacer(time.Millisecond)})
	ctx := context.Background()
	c.StartNewChat(ctx)

	for _, a := range profileAnswers[:3] {
		require.NoError(t, c.HandleInput(ctx, a))
	}
	assert.Equal(t, StepFirstQuestion, c.State().Step)
	c.Wait()

	var bots []string
	for _, m := range c.State().Session.Messages {
		if m.Role == domain.RoleBot {
			bots = append(bots, m.Content)
		}
	}
	require.Len(t, bots, 4)
	assert.Equal(t, WelcomeMessage, bots[0])
	assert.Equal(t, NameAcknowledgement("Aisha"), bots[1])
	assert.Equal(t, ReligionPrompt, bots[2])
	assert.True(t, strings.HasPrefix(bots[3], greeting.Arabic))
}

type gatedPacer struct {
	gate chan struct{}
}

func (p gatedPacer) Next() time.Duration {
	<-p.gate
	return 0
}

func TestStaleMessagesAreDiscarded(t *testing.T) {
	pacer := gatedPacer{gate: make(chan struct{})}
	c, sessions := newController(t, nil, Options{Pacer: pacer})
	ctx := context.Background()

	first := c.StartNewChat(ctx)
	second := c.StartNewChat(ctx)
	close(pacer.gate)
	c.Wait()

	old, err := sessions.Get(first.ID)
	require.NoError(t, err)
	assert.Empty(t, old.Messages)

	cur, err := sessions.Get(second.ID)
	require.NoError(t, err)
	require.Len(t, cur.Messages, 1)
	assert.Equal(t, WelcomeMessage, cur.Messages[0].Content)
	assert.Equal(t, second.ID, c.ActiveID())
}

func TestReopenedSessionDropsPendingReply(t *testing.T) {
	c, sessions := newController(t, nil, Options{Pacer: FixedPacer(100 * time.Millisecond)})
	ctx := context.Background()

	a := c.StartNewChat(ctx)
	c.Wait()
	require.NoError(t, c.HandleInput(ctx, "Aisha"))
	c.StartNewChat(ctx)
	_, err := c.LoadSession(a.ID)
	require.NoError(t, err)
	c.Wait()

	stored, err := sessions.Get(a.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, WelcomeMessage, stored.Messages[0].Content)
	assert.Equal(t, "Aisha", stored.Messages[1].Content)
	assert.Equal(t, StepViewing, c.State().Step)
}

func TestReopenedSessionIgnoresLateGeneration(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gen := gateway.GeneratorFunc(func(context.Context, string) (string, error) {
		close(entered)
		<-release
		return "<p>late</p>", nil
	})
	c, sessions := newController(t, gen, Options{})
	ctx := context.Background()

	a := c.StartNewChat(ctx)
	c.Wait()
	for _, ans := range profileAnswers {
		require.NoError(t, c.HandleInput(ctx, ans))
	}
	<-entered

	c.StartNewChat(ctx)
	_, err := c.LoadSession(a.ID)
	require.NoError(t, err)
	close(release)
	c.Wait()

	stored, err := sessions.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionTitle, stored.Title)
	assert.Nil(t, stored.Profile)
	for _, m := range stored.Messages {
		assert.NotEqual(t, ResultMessage("<p>late</p>"), m.Content)
		assert.NotEqual(t, ClosingMessage, m.Content)
	}
	assert.Equal(t, StepViewing, c.State().Step)
}

func TestDeleteOnlySessionStartsNewOne(t *testing.T) {
	c, sessions := newController(t, nil, Options{})
	ctx := context.Background()

	only := c.StartNewChat(ctx)
	c.Wait()
	require.NoError(t, c.DeleteSession(ctx, only.ID))
	c.Wait()

	require.Equal(t, 1, sessions.Len())
	st := c.State()
	require.NotNil(t, st.Session)
	assert.NotEqual(t, only.ID, st.Session.ID)
	assert.Equal(t, StepName, st.Step)
	require.Len(t, st.Session.Messages, 1)
	assert.Equal(t, WelcomeMessage, st.Session.Messages[0].Content)

	_, err := sessions.Get(only.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, c.DeleteSession(ctx, only.ID), session.ErrSessionNotFound)
}

func TestDeleteInactiveSessionKeepsActive(t *testing.T) {
	c, sessions := newController(t, nil, Options{})
	ctx := context.Background()

	old := c.StartNewChat(ctx)
	cur := c.StartNewChat(ctx)
	c.Wait()

	require.NoError(t, c.DeleteSession(ctx, old.ID))
	assert.Equal(t, cur.ID, c.ActiveID())
	assert.Equal(t, 1, sessions.Len())
}

func TestLoadSessionRestoresProfileAndParksCursor(t *testing.T) {
	gen, _ := staticGenerator("ok")
	c, _ := newController(t, gen, Options{})
	ctx := context.Background()

	done := c.StartNewChat(ctx)
	c.Wait()
	answerAll(t, c, profileAnswers)

	c.StartNewChat(ctx)
	c.Wait()
	assert.True(t, c.State().Profile.IsZero())

	assert.True(t, c.ToggleHistory())
	loaded, err := c.LoadSession(done.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aisha's Career Path", loaded.Title)

	st := c.State()
	assert.Equal(t, StepViewing, st.Step)
	assert.Equal(t, "viewing", st.Phase)
	assert.Equal(t, "Aisha", st.Profile.Name)
	assert.False(t, st.HistoryOpen)

	before := len(st.Session.Messages)
	require.NoError(t, c.HandleInput(ctx, "thanks"))
	c.Wait()
	st = c.State()
	assert.Len(t, st.Session.Messages, before+1)
	assert.Equal(t, StepViewing, st.Step)

	_, err = c.LoadSession("missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSelectSessionFallsBackToNewChat(t *testing.T) {
	c, sessions := newController(t, nil, Options{})
	ctx := context.Background()

	existing := c.StartNewChat(ctx)
	c.Wait()

	got, fallback := c.SelectSession(ctx, existing.ID)
	assert.False(t, fallback)
	assert.Equal(t, existing.ID, got.ID)

	got, fallback = c.SelectSession(ctx, "does-not-exist")
	c.Wait()
	assert.True(t, fallback)
	assert.NotEqual(t, existing.ID, got.ID)
	assert.Equal(t, 2, sessions.Len())
	assert.Equal(t, got.ID, c.ActiveID())
}

func TestEventsArePublished(t *testing.T) {
	rec := &recorder{}
	gen, _ := staticGenerator("ok")
	c, _ := newController(t, gen, Options{Listener: rec})
	ctx := context.Background()

	c.StartNewChat(ctx)
	c.Wait()
	answerAll(t, c, profileAnswers[:2])

	assert.Equal(t, 5, rec.count(EventMessage))
	assert.Equal(t, 6, rec.count(EventComposing))
	assert.Equal(t, 1, rec.count(EventSession))
	assert.False(t, c.State().Composing)
}

func TestComposingVisibleDuringDelay(t *testing.T) {
	pacer := gatedPacer{gate: make(chan struct{})}
	c, _ := newController(t, nil, Options{Pacer: pacer})

	c.StartNewChat(context.Background())
	require.Eventually(t, func() bool { return c.State().Composing }, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.State().Session.Messages)

	close(pacer.gate)
	c.Wait()
	assert.False(t, c.State().Composing)
	assert.Len(t, c.State().Session.Messages, 1)
}

func TestSessionsPersistAcrossControllers(t *testing.T) {
	repo, err := store.NewFile(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	sessions, err := session.Open(ctx, repo, session.DefaultSlot)
	require.NoError(t, err)
	gen, _ := staticGenerator("ok")
	first := New(sessions, gen, Options{Pacer: FixedPacer(0)})
	sess := first.StartNewChat(ctx)
	first.Wait()
	require.NoError(t, first.HandleInput(ctx, "Aisha"))
	first.Wait()
	first.Close()

	reopened, err := session.Open(ctx, repo, session.DefaultSlot)
	require.NoError(t, err)
	second := New(reopened, gen, Options{Pacer: FixedPacer(0)})
	defer second.Close()

	loaded, err := second.LoadSession(sess.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 3)
}

func TestStepPhase(t *testing.T) {
	assert.Equal(t, "collecting_name", StepName.Phase())
	assert.Equal(t, "collecting_religion", StepReligion.Phase())
	assert.Equal(t, "collecting_profile", StepFirstQuestion.Phase())
	assert.Equal(t, "collecting_profile", Step(int(StepFirstQuestion)+ledger.Len()-1).Phase())
	assert.Equal(t, "unknown", Step(int(StepFirstQuestion)+ledger.Len()).Phase())
	assert.Equal(t, "generating", StepGenerating.String())

	_, ok := StepCountry.QuestionIndex()
	assert.False(t, ok)
	i, ok := Step(5).QuestionIndex()
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestBuildPrompt(t *testing.T) {
	p := domain.Profile{Name: "Aisha", Country: "Pakistan", Religion: "Islam", Industry: "Health"}
	prompt := BuildPrompt(p)
	assert.Contains(t, prompt, "- Country: Pakistan")
	assert.Contains(t, prompt, "- Religion/Culture: Islam")
	assert.Contains(t, prompt, "- Industry: Health")
	assert.Contains(t, prompt, "No markdown.")
}
