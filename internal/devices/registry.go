package devices

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wifikids/backend/internal/models"
)

// Registry records devices as they appear on the network. Rows created
// here are unowned until a parent claims the MAC through Register.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) RecordSighting(ctx context.Context, mac string) error {
	mac = models.NormalizeMAC(mac)
	if mac == "" {
		return fmt.Errorf("record sighting: empty mac")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (mac) VALUES ($1) ON CONFLICT (mac) DO NOTHING`,
		mac,
	)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}
