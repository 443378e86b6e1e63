package challenge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wifikids/backend/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	// ErrConflict signals a stale write; the caller may re-fetch and retry.
	ErrConflict = errors.New("session version conflict")
)

// SessionStore persists challenge sessions with whole-document replace
// semantics. Update is guarded by the session version: a stale write is
// rejected, never merged.
type SessionStore interface {
	Create(ctx context.Context, sess *models.ChallengeSession) error
	Get(ctx context.Context, id string) (*models.ChallengeSession, error)
	Update(ctx context.Context, sess *models.ChallengeSession) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sess *models.ChallengeSession) error {
	questions, answerKey, metadata, progress, err := marshalSession(sess)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO challenge_sessions
		 (id, device_id, network_id, questions, answer_key, metadata, progress,
		  attempts_left, attempts_made, awaiting_next, status, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		 RETURNING version, created_at, updated_at`,
		sess.ID, sess.DeviceID, sess.NetworkID, questions, answerKey, metadata, progress,
		sess.AttemptsLeft, sess.AttemptsMade, sess.AwaitingNext, sess.Status,
	).Scan(&sess.Version, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.ChallengeSession, error) {
	var sess models.ChallengeSession
	var questions, answerKey, metadata, progress []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, device_id, network_id, questions, answer_key, metadata, progress,
		        attempts_left, attempts_made, awaiting_next, status, version, created_at, updated_at
		 FROM challenge_sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.DeviceID, &sess.NetworkID, &questions, &answerKey, &metadata, &progress,
		&sess.AttemptsLeft, &sess.AttemptsMade, &sess.AwaitingNext, &sess.Status,
		&sess.Version, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal(questions, &sess.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(answerKey, &sess.AnswerKey); err != nil {
		return nil, fmt.Errorf("unmarshal answer key: %w", err)
	}
	if err := json.Unmarshal(metadata, &sess.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(progress, &sess.Progress); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &sess, nil
}

// Update replaces the whole session row. The WHERE version clause is the
// serialization point: a concurrent writer that got there first makes
// this write fail with ErrConflict instead of clobbering newer progress.
func (s *PostgresStore) Update(ctx context.Context, sess *models.ChallengeSession) error {
	questions, answerKey, metadata, progress, err := marshalSession(sess)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE challenge_sessions
		 SET questions = $1, answer_key = $2, metadata = $3, progress = $4,
		     attempts_left = $5, attempts_made = $6, awaiting_next = $7, status = $8,
		     version = version + 1, updated_at = NOW()
		 WHERE id = $9 AND version = $10`,
		questions, answerKey, metadata, progress,
		sess.AttemptsLeft, sess.AttemptsMade, sess.AwaitingNext, sess.Status,
		sess.ID, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a stale version.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM challenge_sessions WHERE id = $1)`, sess.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check session exists: %w", err)
		}
		if !exists {
			return ErrSessionNotFound
		}
		return ErrConflict
	}

	sess.Version++
	return nil
}

// ExpireStale marks open sessions older than the cutoff as expired. Run
// by the background sweep, never by the request path.
func (s *PostgresStore) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE challenge_sessions
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE status = $2 AND created_at < $3`,
		models.StatusExpired, models.StatusOpen, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	return res.RowsAffected()
}

func marshalSession(sess *models.ChallengeSession) (questions, answerKey, metadata, progress []byte, err error) {
	if questions, err = json.Marshal(sess.Questions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal questions: %w", err)
	}
	if answerKey, err = json.Marshal(sess.AnswerKey); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal answer key: %w", err)
	}
	if metadata, err = json.Marshal(sess.Metadata); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if progress, err = json.Marshal(sess.Progress); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal progress: %w", err)
	}
	return questions, answerKey, metadata, progress, nil
}
