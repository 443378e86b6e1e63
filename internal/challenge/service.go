package challenge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wifikids/backend/internal/models"
	"github.com/wifikids/backend/internal/provider"
	"github.com/wifikids/backend/internal/router"
	"github.com/wifikids/backend/internal/validation"
)

// Granter issues a time-boxed network access grant. Invoked only on the
// transition to passed.
type Granter interface {
	GrantAccess(ctx context.Context, deviceID, networkID string, duration time.Duration) (string, error)
}

// PerformanceSource supplies a device's average score per subject, used
// to adapt difficulty when the request does not pin one.
type PerformanceSource interface {
	PriorPerformance(ctx context.Context, deviceID string) (map[models.Subject]float64, error)
}

// DeviceRegistry records devices as they request challenges, keyed by
// normalized MAC. Optional; registration failures never block a session.
type DeviceRegistry interface {
	RecordSighting(ctx context.Context, mac string) error
}

type Config struct {
	RequiredQuestions int
	GrantMinutes      int
	// AttemptsOverride replaces the persona policy's max attempts when
	// positive.
	AttemptsOverride int
}

// Engine drives the challenge session state machine.
type Engine struct {
	store       SessionStore
	router      *router.Router
	granter     Granter
	performance PerformanceSource
	devices     DeviceRegistry
	cfg         Config
}

func NewEngine(store SessionStore, r *router.Router, granter Granter, performance PerformanceSource, cfg Config) *Engine {
	if cfg.RequiredQuestions <= 0 {
		cfg.RequiredQuestions = 1
	}
	if cfg.GrantMinutes <= 0 {
		cfg.GrantMinutes = 15
	}
	return &Engine{store: store, router: r, granter: granter, performance: performance, cfg: cfg}
}

// SetDeviceRegistry enables device sighting records on session creation.
func (e *Engine) SetDeviceRegistry(reg DeviceRegistry) {
	e.devices = reg
}

// GenerateChallenge opens a new session with an initial question batch.
func (e *Engine) GenerateChallenge(ctx context.Context, req models.CreateChallengeRequest) (*models.CreateChallengeResponse, error) {
	lctx, err := e.buildContext(ctx, req)
	if err != nil {
		return nil, err
	}

	if e.devices != nil {
		if err := e.devices.RecordSighting(ctx, lctx.DeviceID); err != nil {
			log.Printf("WARN: device sighting not recorded for %s: %v", lctx.DeviceID, err)
		}
	}

	prov, err := e.router.SelectProvider(*lctx)
	if err != nil {
		return nil, err
	}

	payload, err := prov.Generate(ctx, *lctx)
	if err != nil {
		return nil, err
	}

	policy, err := router.GetPersonaPolicy(lctx.Persona)
	if err != nil {
		return nil, err
	}
	attempts := policy.MaxAttempts
	if e.cfg.AttemptsOverride > 0 {
		attempts = e.cfg.AttemptsOverride
	}

	sess := &models.ChallengeSession{
		ID:        uuid.NewString(),
		DeviceID:  lctx.DeviceID,
		NetworkID: lctx.NetworkID,
		Questions: payload.Questions,
		AnswerKey: payload.AnswerKey,
		Metadata: models.SessionMetadata{
			Persona:    payload.Metadata.Persona,
			Subject:    payload.Metadata.Subject,
			Difficulty: payload.Metadata.Difficulty,
			ProviderID: payload.Metadata.ProviderID,
			Locale:     lctx.Locale,
		},
		Progress: models.Progress{
			QuestionsAnsweredCorrectly: 0,
			TotalQuestionsRequired:     e.cfg.RequiredQuestions,
			QuestionsAttempted:         0,
		},
		AttemptsLeft: attempts,
		Status:       models.StatusOpen,
	}

	if err := e.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	log.Printf("[challenge] session %s opened: device=%s provider=%s required=%d",
		sess.ID, sess.DeviceID, sess.Metadata.ProviderID, sess.Progress.TotalQuestionsRequired)

	return &models.CreateChallengeResponse{
		SessionID:    sess.ID,
		Questions:    models.PublicQuestions(sess.Questions),
		Metadata:     sess.Metadata,
		AttemptsLeft: sess.AttemptsLeft,
		Progress:     sess.Progress,
	}, nil
}

func (e *Engine) buildContext(ctx context.Context, req models.CreateChallengeRequest) (*models.LearnerContext, error) {
	persona := models.Persona(req.Persona)
	if !models.ValidPersonas[persona] {
		return nil, &models.InputError{Field: "persona", Msg: fmt.Sprintf("must be one of tutor, maternal, general; got %q", req.Persona)}
	}
	if req.DeviceID == "" {
		return nil, &models.InputError{Field: "device_id", Msg: "required"}
	}
	if req.NetworkID == "" {
		return nil, &models.InputError{Field: "network_id", Msg: "required"}
	}

	lctx := &models.LearnerContext{
		Locale:    req.Locale,
		DeviceID:  models.NormalizeMAC(req.DeviceID),
		NetworkID: models.NormalizeMAC(req.NetworkID),
		Persona:   persona,
	}
	if lctx.Locale == "" {
		lctx.Locale = "en"
	}

	if req.Subject != "" {
		subject := models.Subject(req.Subject)
		if !models.ValidSubjects[subject] {
			return nil, &models.InputError{Field: "subject", Msg: fmt.Sprintf("unknown subject %q", req.Subject)}
		}
		lctx.Subject = &subject
	}
	if req.Difficulty != "" {
		difficulty := models.Difficulty(req.Difficulty)
		if !models.ValidDifficulties[difficulty] {
			return nil, &models.InputError{Field: "difficulty", Msg: fmt.Sprintf("unknown difficulty %q", req.Difficulty)}
		}
		lctx.Difficulty = &difficulty
	}

	if e.performance != nil {
		prior, err := e.performance.PriorPerformance(ctx, lctx.DeviceID)
		if err != nil {
			log.Printf("WARN: prior performance lookup failed for %s: %v", lctx.DeviceID, err)
		} else {
			lctx.PriorPerformance = prior
		}
	}

	if lctx.Difficulty == nil {
		subject := defaultSubject(persona)
		if lctx.Subject != nil {
			subject = *lctx.Subject
		}
		d := adaptDifficulty(*lctx, subject)
		lctx.Difficulty = &d
	}
	return lctx, nil
}

func defaultSubject(persona models.Persona) models.Subject {
	policy, err := router.GetPersonaPolicy(persona)
	if err != nil || len(policy.DefaultSubjects) == 0 {
		return models.SubjectMath
	}
	return policy.DefaultSubjects[0]
}

// SubmitAnswers evaluates a submission against the session's current
// question set and advances the state machine.
func (e *Engine) SubmitAnswers(ctx context.Context, sessionID string, answers []models.Answer) (*models.Decision, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusOpen {
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, sess.ID, sess.Status)
	}

	// A session stuck after a failed follow-up generation retries the
	// generation only; the already-accepted answer is not re-scored, and
	// the CONTINUE still carries the persona's success feedback.
	if sess.AwaitingNext {
		return e.generateNext(ctx, sess, validation.SuccessFeedback(sess.Metadata.Persona, sess.Metadata.Locale))
	}

	if err := validateSubmission(sess, answers); err != nil {
		return nil, err
	}

	prov, judge := e.resolveProvider(sess.Metadata.ProviderID)
	pipeline := validation.NewPipeline(judge)

	allCorrect := true
	var feedback string
	for i, ans := range answers {
		q := questionByID(sess.Questions, ans.ID)
		outcome := pipeline.Evaluate(ctx, *q, ans.Value, sess.AnswerKey[ans.ID], sess.Metadata.Persona, sess.Metadata.Locale)
		log.Printf("[challenge] session %s question %s: correct=%t score=%.2f tier=%s",
			sess.ID, ans.ID, outcome.Correct, outcome.Score, outcome.Metadata.Tier)

		if recorder, ok := prov.(provider.ExchangeRecorder); ok {
			recorder.RecordExchange(sess.DeviceID, q.Prompt, ans.Value)
		}

		if !outcome.Correct {
			if allCorrect {
				feedback = outcome.Feedback
			}
			allCorrect = false
		} else if i == 0 && feedback == "" {
			feedback = outcome.Feedback
		}
	}

	sess.Progress.QuestionsAttempted++
	sess.AttemptsMade++
	if allCorrect && sess.Progress.QuestionsAnsweredCorrectly < sess.Progress.TotalQuestionsRequired {
		sess.Progress.QuestionsAnsweredCorrectly++
	}

	switch {
	case allCorrect && sess.Progress.QuestionsAnsweredCorrectly >= sess.Progress.TotalQuestionsRequired:
		return e.pass(ctx, sess, feedback)

	case !allCorrect && sess.AttemptsLeft <= 1:
		sess.AttemptsLeft = 0
		sess.Status = models.StatusFailed
		if err := e.store.Update(ctx, sess); err != nil {
			return nil, err
		}
		attemptsLeft := 0
		return &models.Decision{
			Decision:     models.DecisionDeny,
			Reason:       models.DenyMaxAttemptsReached,
			AttemptsLeft: &attemptsLeft,
			Feedback:     feedback,
		}, nil

	case !allCorrect:
		sess.AttemptsLeft--
		if err := e.store.Update(ctx, sess); err != nil {
			return nil, err
		}
		attemptsLeft := sess.AttemptsLeft
		return &models.Decision{
			Decision:     models.DecisionDeny,
			Reason:       models.DenyIncorrectAnswer,
			AttemptsLeft: &attemptsLeft,
			Feedback:     feedback,
		}, nil

	default:
		// Correct, but more questions required: persist progress with the
		// awaiting flag before generating, so a generation failure leaves
		// a retryable session that will not re-score this answer.
		sess.AwaitingNext = true
		if err := e.store.Update(ctx, sess); err != nil {
			return nil, err
		}
		return e.generateNext(ctx, sess, feedback)
	}
}

func (e *Engine) pass(ctx context.Context, sess *models.ChallengeSession, feedback string) (*models.Decision, error) {
	// The grant is queued before the terminal write: a queue failure
	// leaves the session open and retryable rather than passed with no
	// access ever granted.
	grantID, err := e.granter.GrantAccess(ctx, sess.DeviceID, sess.NetworkID, time.Duration(e.cfg.GrantMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("grant access for session %s: %w", sess.ID, err)
	}

	sess.Status = models.StatusPassed
	sess.AwaitingNext = false
	if err := e.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	log.Printf("[challenge] session %s passed: device=%s grant=%s minutes=%d",
		sess.ID, sess.DeviceID, grantID, e.cfg.GrantMinutes)

	return &models.Decision{
		Decision:       models.DecisionAllow,
		AllowedMinutes: e.cfg.GrantMinutes,
		SessionGrantID: grantID,
		Feedback:       feedback,
	}, nil
}

func (e *Engine) generateNext(ctx context.Context, sess *models.ChallengeSession, feedback string) (*models.Decision, error) {
	prov, err := e.router.Get(sess.Metadata.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s no longer registered", provider.ErrGenerationFailed, sess.Metadata.ProviderID)
	}

	subject := sess.Metadata.Subject
	difficulty := sess.Metadata.Difficulty
	payload, err := prov.Generate(ctx, models.LearnerContext{
		Locale:     sess.Metadata.Locale,
		DeviceID:   sess.DeviceID,
		NetworkID:  sess.NetworkID,
		Persona:    sess.Metadata.Persona,
		Subject:    &subject,
		Difficulty: &difficulty,
	})
	if err != nil {
		// Session stays open and awaiting; a client retry re-attempts
		// generation without re-scoring.
		return nil, err
	}

	sess.Questions = payload.Questions
	sess.AnswerKey = payload.AnswerKey
	sess.AwaitingNext = false
	if err := e.store.Update(ctx, sess); err != nil {
		return nil, err
	}

	progress := sess.Progress
	return &models.Decision{
		Decision:  models.DecisionContinue,
		Questions: models.PublicQuestions(sess.Questions),
		Progress:  &progress,
		Feedback:  feedback,
	}, nil
}

// GetSession returns the current session state.
func (e *Engine) GetSession(ctx context.Context, id string) (*models.ChallengeSession, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) resolveProvider(id string) (provider.Provider, validation.Judge) {
	prov, err := e.router.Get(id)
	if err != nil {
		log.Printf("WARN: session provider %s missing from registry, validating with rules only", id)
		return nil, nil
	}
	judge, _ := prov.(validation.Judge)
	return prov, judge
}

func validateSubmission(sess *models.ChallengeSession, answers []models.Answer) error {
	if len(answers) == 0 {
		return &models.InputError{Field: "answers", Msg: "must not be empty"}
	}
	for _, ans := range answers {
		if ans.ID == "" {
			return &models.InputError{Field: "answers", Msg: "answer id is required"}
		}
		if questionByID(sess.Questions, ans.ID) == nil {
			return &models.InputError{Field: "answers", Msg: fmt.Sprintf("unknown question id %q", ans.ID)}
		}
	}
	return nil
}

func questionByID(questions []models.Question, id string) *models.Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}
