package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wifikids/backend/internal/models"
)

// Command is one instruction for the network gateway, delivered by poll.
type Command struct {
	ID          int64     `json:"id"`
	NetworkID   string    `json:"network_id"`
	Action      string    `json:"action"`
	DeviceID    string    `json:"device_id"`
	GrantID     string    `json:"grant_id"`
	DurationSec int       `json:"duration_sec"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// Store issues grants and queues gateway commands. The gateway polls for
// pending commands; the backend never pushes.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GrantAccess records a time-boxed grant and queues the allow command
// for the device's gateway, atomically.
func (s *Store) GrantAccess(ctx context.Context, deviceID, networkID string, duration time.Duration) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	grantID := uuid.NewString()
	expiresAt := time.Now().Add(duration)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO access_grants (id, device_id, network_id, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		grantID, deviceID, networkID, expiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert grant: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO access_commands (network_id, action, device_id, grant_id, duration_sec)
		 VALUES ($1, $2, $3, $4, $5)`,
		networkID, ActionAllow, deviceID, grantID, int(duration.Seconds()),
	)
	if err != nil {
		return "", fmt.Errorf("queue command: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit grant: %w", err)
	}
	log.Printf("[access] grant %s issued: device=%s network=%s expires=%s",
		grantID, deviceID, networkID, expiresAt.Format(time.RFC3339))
	return grantID, nil
}

// DeviceStatus reports whether the device currently holds an active
// grant on the network.
func (s *Store) DeviceStatus(ctx context.Context, deviceID, networkID string) (*models.SessionStatusResponse, error) {
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM access_grants
		 WHERE device_id = $1 AND network_id = $2 AND expires_at > NOW()
		 ORDER BY expires_at DESC LIMIT 1`,
		deviceID, networkID,
	).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SessionStatusResponse{Allowed: false, Status: "denied"}, nil
		}
		return nil, fmt.Errorf("device status: %w", err)
	}

	remaining := int(time.Until(expiresAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &models.SessionStatusResponse{
		Allowed:      true,
		Status:       "allowed",
		EndsAt:       &expiresAt,
		RemainingSec: remaining,
	}, nil
}

// PendingCommands returns and consumes the queued commands for a
// network. Each command is delivered at most once.
func (s *Store) PendingCommands(ctx context.Context, networkID string) ([]Command, error) {
	rows, err := s.db.QueryContext(ctx,
		`UPDATE access_commands
		 SET status = 'delivered', delivered_at = NOW()
		 WHERE id IN (
		     SELECT id FROM access_commands
		     WHERE network_id = $1 AND status = 'pending'
		     ORDER BY created_at ASC
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, network_id, action, device_id, grant_id, duration_sec, created_at`,
		networkID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var c Command
		if err := rows.Scan(&c.ID, &c.NetworkID, &c.Action, &c.DeviceID, &c.GrantID, &c.DurationSec, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, c)
	}
	return commands, rows.Err()
}

// PurgeExpired removes grants that expired before the cutoff. Run by the
// background sweep.
func (s *Store) PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM access_grants WHERE expires_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge grants: %w", err)
	}
	return res.RowsAffected()
}
