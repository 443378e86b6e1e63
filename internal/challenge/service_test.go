package challenge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wifikids/backend/internal/models"
	"github.com/wifikids/backend/internal/provider"
	"github.com/wifikids/backend/internal/router"
)

// memStore mirrors the Postgres store's optimistic concurrency semantics.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]models.ChallengeSession
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]models.ChallengeSession)}
}

func (m *memStore) Create(_ context.Context, sess *models.ChallengeSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess.Version = 1
	sess.CreatedAt = time.Now()
	sess.UpdatedAt = sess.CreatedAt
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.ChallengeSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := sess
	return &out, nil
}

func (m *memStore) Update(_ context.Context, sess *models.ChallengeSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[sess.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if current.Version != sess.Version {
		return ErrConflict
	}
	sess.Version++
	sess.UpdatedAt = time.Now()
	m.sessions[sess.ID] = *sess
	return nil
}

// scriptedProvider returns one arithmetic question per call with a fixed
// answer of "4". Generation failures are injectable.
type scriptedProvider struct {
	calls   int
	failGen bool
}

func (p *scriptedProvider) ID() string          { return "tutor_scripted" }
func (p *scriptedProvider) Kind() provider.Kind { return provider.KindLLM }

func (p *scriptedProvider) Generate(_ context.Context, lctx models.LearnerContext) (*models.ChallengePayload, error) {
	if p.failGen {
		return nil, fmt.Errorf("%w: completion service unreachable", provider.ErrGenerationFailed)
	}
	p.calls++
	id := fmt.Sprintf("q%d", p.calls)
	difficulty := models.DifficultyEasy
	if lctx.Difficulty != nil {
		difficulty = *lctx.Difficulty
	}
	return &models.ChallengePayload{
		Questions: []models.Question{{
			ID:         id,
			Type:       models.QuestionMultipleChoice,
			Prompt:     "What is 2 + 2?",
			Options:    []string{"3", "4", "5"},
			Subject:    models.SubjectMath,
			Difficulty: difficulty,
		}},
		AnswerKey: map[string]string{id: "4"},
		Metadata: models.PayloadMetadata{
			Persona:      lctx.Persona,
			Subject:      models.SubjectMath,
			Difficulty:   difficulty,
			ProviderID:   p.ID(),
			ProviderKind: string(provider.KindLLM),
		},
	}, nil
}

type recordingGranter struct {
	grants []string
	err    error
}

func (g *recordingGranter) GrantAccess(_ context.Context, deviceID, networkID string, _ time.Duration) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := fmt.Sprintf("grant-%d-%s", len(g.grants)+1, deviceID)
	g.grants = append(g.grants, id)
	return id, nil
}

type testHarness struct {
	engine   *Engine
	store    *memStore
	provider *scriptedProvider
	granter  *recordingGranter
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	prov := &scriptedProvider{}
	entries := []router.Entry{{
		Provider:      prov,
		Backend:       provider.BackendOpenAI,
		Persona:       models.PersonaTutor,
		Subjects:      []models.Subject{models.SubjectMath, models.SubjectScience},
		MinDifficulty: models.DifficultyEasy,
		MaxDifficulty: models.DifficultyHard,
		Available:     true,
	}, {
		Provider:      provider.NewOfflineProvider("offline_fallback"),
		Backend:       provider.BackendOffline,
		Subjects:      []models.Subject{models.SubjectMath},
		MinDifficulty: models.DifficultyEasy,
		MaxDifficulty: models.DifficultyHard,
		Available:     true,
	}}
	r, err := router.New(entries, router.Settings{Enabled: true, FallbackToOffline: true})
	if err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	granter := &recordingGranter{}
	return &testHarness{
		engine:   NewEngine(store, r, granter, nil, cfg),
		store:    store,
		provider: prov,
		granter:  granter,
	}
}

func createSession(t *testing.T, h *testHarness) *models.CreateChallengeResponse {
	t.Helper()
	resp, err := h.engine.GenerateChallenge(context.Background(), models.CreateChallengeRequest{
		DeviceID:  "AA:BB:CC:DD:EE:01",
		NetworkID: "net-1",
		Persona:   "tutor",
		Subject:   "math",
		Locale:    "en",
	})
	if err != nil {
		t.Fatalf("GenerateChallenge: %v", err)
	}
	return resp
}

func TestCorrectFirstTryAllows(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, GrantMinutes: 15, AttemptsOverride: 2})
	resp := createSession(t, h)

	if resp.AttemptsLeft != 2 {
		t.Fatalf("expected 2 attempts, got %d", resp.AttemptsLeft)
	}

	decision, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if decision.Decision != models.DecisionAllow {
		t.Fatalf("expected ALLOW, got %s", decision.Decision)
	}
	if decision.AllowedMinutes != 15 {
		t.Errorf("allowed minutes = %d", decision.AllowedMinutes)
	}
	if decision.SessionGrantID == "" {
		t.Error("ALLOW must carry a grant id")
	}
	if len(h.granter.grants) != 1 {
		t.Errorf("expected exactly one grant, got %d", len(h.granter.grants))
	}

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	if sess.Status != models.StatusPassed {
		t.Errorf("session status = %s, want passed", sess.Status)
	}
	if sess.AttemptsLeft != 2 {
		t.Errorf("a correct answer must not consume attempts, attemptsLeft=%d", sess.AttemptsLeft)
	}
}

func TestWrongAnswersExhaustAttempts(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 2})
	resp := createSession(t, h)
	qID := resp.Questions[0].ID

	first, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{{ID: qID, Value: "7"}})
	if err != nil {
		t.Fatal(err)
	}
	if first.Decision != models.DecisionDeny || first.Reason != models.DenyIncorrectAnswer {
		t.Fatalf("first wrong answer: %+v", first)
	}
	if first.AttemptsLeft == nil || *first.AttemptsLeft != 1 {
		t.Fatalf("attemptsLeft after first miss = %v", first.AttemptsLeft)
	}

	second, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{{ID: qID, Value: "8"}})
	if err != nil {
		t.Fatal(err)
	}
	if second.Reason != models.DenyMaxAttemptsReached {
		t.Fatalf("second wrong answer reason = %s", second.Reason)
	}
	if second.AttemptsLeft == nil || *second.AttemptsLeft != 0 {
		t.Fatalf("attemptsLeft after exhaustion = %v", second.AttemptsLeft)
	}

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	if sess.Status != models.StatusFailed {
		t.Errorf("session status = %s, want failed", sess.Status)
	}

	_, err = h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{{ID: qID, Value: "4"}})
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("third submission should fail with ErrSessionClosed, got %v", err)
	}
	if len(h.granter.grants) != 0 {
		t.Error("failed session must never grant access")
	}
}

func TestMultiQuestionContinueThenAllow(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 2, AttemptsOverride: 3})
	resp := createSession(t, h)

	decision, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != models.DecisionContinue {
		t.Fatalf("expected CONTINUE, got %s", decision.Decision)
	}
	if decision.Progress == nil ||
		decision.Progress.QuestionsAnsweredCorrectly != 1 ||
		decision.Progress.TotalQuestionsRequired != 2 ||
		decision.Progress.QuestionsAttempted != 1 {
		t.Fatalf("progress after first correct = %+v", decision.Progress)
	}
	if len(decision.Questions) != 1 {
		t.Fatalf("CONTINUE must carry the fresh question, got %d", len(decision.Questions))
	}
	if decision.Questions[0].ID == resp.Questions[0].ID {
		t.Error("question set should have been replaced")
	}

	final, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: decision.Questions[0].ID, Value: "4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if final.Decision != models.DecisionAllow {
		t.Fatalf("expected ALLOW, got %s", final.Decision)
	}
}

func TestEmptyAnswersRejectedBeforeMutation(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 2})
	resp := createSession(t, h)

	_, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, nil)
	var inputErr *models.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	if sess.Progress.QuestionsAttempted != 0 || sess.AttemptsLeft != 2 {
		t.Errorf("input error must not mutate the session: %+v", sess.Progress)
	}
}

func TestUnknownQuestionIDRejected(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 2})
	resp := createSession(t, h)

	_, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: "nonexistent", Value: "4"},
	})
	var inputErr *models.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
}

func TestSessionNotFound(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.engine.SubmitAnswers(context.Background(), "missing", []models.Answer{{ID: "q1", Value: "x"}})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGenerationFailureIsRetryableWithoutRescoring(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 2, AttemptsOverride: 3})
	resp := createSession(t, h)

	h.provider.failGen = true
	_, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	})
	if !errors.Is(err, provider.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	if sess.Status != models.StatusOpen {
		t.Fatalf("session must stay open, got %s", sess.Status)
	}
	if !sess.AwaitingNext {
		t.Fatal("session should be awaiting the next batch")
	}
	if sess.Progress.QuestionsAnsweredCorrectly != 1 || sess.Progress.QuestionsAttempted != 1 {
		t.Fatalf("progress before retry = %+v", sess.Progress)
	}

	// Retry: generation recovers; the accepted answer is not re-scored.
	h.provider.failGen = false
	decision, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != models.DecisionContinue {
		t.Fatalf("expected CONTINUE on retry, got %s", decision.Decision)
	}
	if decision.Feedback == "" {
		t.Error("retry CONTINUE must carry persona feedback")
	}

	sess, _ = h.store.Get(context.Background(), resp.SessionID)
	if sess.Progress.QuestionsAttempted != 1 {
		t.Errorf("retry must not re-score: attempted=%d", sess.Progress.QuestionsAttempted)
	}
	if sess.AwaitingNext {
		t.Error("awaiting flag should clear after successful generation")
	}
}

func TestGrantFailureKeepsSessionRetryable(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 2})
	resp := createSession(t, h)

	h.granter.err = errors.New("command queue unavailable")
	_, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	})
	if err == nil {
		t.Fatal("expected grant failure to surface")
	}

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	if sess.Status != models.StatusOpen {
		t.Fatalf("session must stay open after grant failure, got %s", sess.Status)
	}
	if len(h.granter.grants) != 0 {
		t.Fatalf("no grant should be recorded, got %v", h.granter.grants)
	}

	// Queue recovers: the retry earns the grant and closes the session.
	h.granter.err = nil
	decision, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Decision != models.DecisionAllow {
		t.Fatalf("expected ALLOW on retry, got %s", decision.Decision)
	}
	if len(h.granter.grants) != 1 {
		t.Fatalf("grants after retry = %v", h.granter.grants)
	}

	sess, _ = h.store.Get(context.Background(), resp.SessionID)
	if sess.Status != models.StatusPassed {
		t.Errorf("session status after retry = %s", sess.Status)
	}
}

func TestTerminalStability(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 2})
	resp := createSession(t, h)

	if _, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
		{ID: resp.Questions[0].ID, Value: "4"},
	}); err != nil {
		t.Fatal(err)
	}

	before, _ := h.store.Get(context.Background(), resp.SessionID)
	for i := 0; i < 3; i++ {
		_, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{
			{ID: resp.Questions[0].ID, Value: "7"},
		})
		if !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("submission %d to passed session: %v", i, err)
		}
	}
	after, _ := h.store.Get(context.Background(), resp.SessionID)
	if after.Status != before.Status || after.Progress != before.Progress {
		t.Error("terminal session changed after further submissions")
	}
	if len(h.granter.grants) != 1 {
		t.Errorf("grant count changed: %d", len(h.granter.grants))
	}
}

func TestAttemptsMonotonicallyDecrease(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 4})
	resp := createSession(t, h)
	qID := resp.Questions[0].ID

	prev := resp.AttemptsLeft
	for {
		decision, err := h.engine.SubmitAnswers(context.Background(), resp.SessionID, []models.Answer{{ID: qID, Value: "wrong"}})
		if err != nil {
			t.Fatal(err)
		}
		if decision.AttemptsLeft == nil {
			t.Fatal("DENY must carry attemptsLeft")
		}
		if *decision.AttemptsLeft >= prev {
			t.Fatalf("attemptsLeft did not decrease: %d -> %d", prev, *decision.AttemptsLeft)
		}
		if *decision.AttemptsLeft < 0 {
			t.Fatal("attemptsLeft went negative")
		}
		prev = *decision.AttemptsLeft
		if decision.Reason == models.DenyMaxAttemptsReached {
			if prev != 0 {
				t.Fatalf("max_attempts_reached with attemptsLeft=%d", prev)
			}
			break
		}
	}
}

func TestInvalidPersonaRejected(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.engine.GenerateChallenge(context.Background(), models.CreateChallengeRequest{
		DeviceID: "dev", NetworkID: "net", Persona: "wizard",
	})
	var inputErr *models.InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if inputErr.Field != "persona" {
		t.Errorf("offending field = %q", inputErr.Field)
	}
}

func TestDeviceIDNormalized(t *testing.T) {
	h := newHarness(t, Config{})
	resp := createSession(t, h)

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	if sess.DeviceID != "aa:bb:cc:dd:ee:01" {
		t.Errorf("device id not normalized: %q", sess.DeviceID)
	}
}

type recordingRegistry struct {
	macs []string
	err  error
}

func (r *recordingRegistry) RecordSighting(_ context.Context, mac string) error {
	if r.err != nil {
		return r.err
	}
	r.macs = append(r.macs, mac)
	return nil
}

func TestDeviceSightingRecorded(t *testing.T) {
	h := newHarness(t, Config{})
	reg := &recordingRegistry{}
	h.engine.SetDeviceRegistry(reg)

	createSession(t, h)

	if len(reg.macs) != 1 || reg.macs[0] != "aa:bb:cc:dd:ee:01" {
		t.Errorf("recorded sightings = %v", reg.macs)
	}
}

func TestDeviceSightingFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t, Config{})
	h.engine.SetDeviceRegistry(&recordingRegistry{err: errors.New("db down")})

	resp := createSession(t, h)
	if resp.SessionID == "" {
		t.Fatal("session not created")
	}
}

func TestStaleWriteConflict(t *testing.T) {
	h := newHarness(t, Config{RequiredQuestions: 1, AttemptsOverride: 2})
	resp := createSession(t, h)

	sess, _ := h.store.Get(context.Background(), resp.SessionID)
	stale := *sess
	// A concurrent writer advances the version first.
	if err := h.store.Update(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	if err := h.store.Update(context.Background(), &stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
