package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wifikids/backend/internal/models"
)

// Store answers read-only questions about past sessions. Everything here
// derives from the challenge_sessions table; there is no separate event
// log.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PriorPerformance returns a device's pass rate per subject over its
// finished sessions. Used to adapt the difficulty of new challenges.
func (s *Store) PriorPerformance(ctx context.Context, deviceID string) (map[models.Subject]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metadata->>'subject',
		        AVG(CASE WHEN status = 'passed' THEN 1.0 ELSE 0.0 END)
		 FROM challenge_sessions
		 WHERE device_id = $1 AND status IN ('passed', 'failed')
		 GROUP BY metadata->>'subject'`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("prior performance: %w", err)
	}
	defer rows.Close()

	perf := make(map[models.Subject]float64)
	for rows.Next() {
		var subject string
		var avg float64
		if err := rows.Scan(&subject, &avg); err != nil {
			return nil, fmt.Errorf("scan performance row: %w", err)
		}
		perf[models.Subject(subject)] = avg
	}
	return perf, rows.Err()
}

// Summary aggregates session outcomes across all devices.
func (s *Store) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	var summary models.AnalyticsSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'passed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'open')
		 FROM challenge_sessions`,
	).Scan(&summary.TotalSessions, &summary.PassedSessions, &summary.FailedSessions, &summary.OpenSessions)
	if err != nil {
		return nil, fmt.Errorf("analytics summary: %w", err)
	}

	finished := summary.PassedSessions + summary.FailedSessions
	if finished > 0 {
		summary.PassRate = float64(summary.PassedSessions) / float64(finished)
	}
	return &summary, nil
}

// DeviceStats breaks a device's history down by subject.
func (s *Store) DeviceStats(ctx context.Context, deviceID string) (*models.DeviceStats, error) {
	stats := &models.DeviceStats{
		DeviceID: deviceID,
		Subjects: make(map[models.Subject]models.SubjectStats),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT metadata->>'subject',
		        COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'passed'),
		        AVG(CASE WHEN status = 'passed' THEN 1.0 ELSE 0.0 END)
		 FROM challenge_sessions
		 WHERE device_id = $1 AND status IN ('passed', 'failed')
		 GROUP BY metadata->>'subject'`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("device stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subject string
		var ss models.SubjectStats
		if err := rows.Scan(&subject, &ss.Attempted, &ss.Correct, &ss.AvgScore); err != nil {
			return nil, fmt.Errorf("scan device stats: %w", err)
		}
		stats.Subjects[models.Subject(subject)] = ss
		stats.Sessions += ss.Attempted
		stats.Passed += ss.Correct
	}
	return stats, rows.Err()
}
