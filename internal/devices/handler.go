package devices

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/wifikids/backend/internal/auth"
	"github.com/wifikids/backend/internal/models"
)

// Device is a registered child device, keyed by its normalized MAC.
type Device struct {
	ID        int64     `json:"id"`
	MAC       string    `json:"mac"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterDeviceRequest struct {
	MAC  string `json:"mac"`
	Name string `json:"name"`
}

type Handler struct {
	db *sql.DB
}

func NewHandler(db *sql.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(auth.UserIDKey).(int64)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	mac := models.NormalizeMAC(req.MAC)
	if mac == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "mac is required"})
		return
	}

	var device Device
	err := h.db.QueryRow(
		`INSERT INTO devices (mac, name, owner_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (mac) DO UPDATE SET name = EXCLUDED.name, owner_id = EXCLUDED.owner_id
		 RETURNING id, mac, name, created_at`,
		mac, strings.TrimSpace(req.Name), userID,
	).Scan(&device.ID, &device.MAC, &device.Name, &device.CreatedAt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to register device"})
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(auth.UserIDKey).(int64)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	rows, err := h.db.Query(
		`SELECT id, mac, name, created_at FROM devices WHERE owner_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list devices"})
		return
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.MAC, &d.Name, &d.CreatedAt); err != nil {
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list devices"})
			return
		}
		devices = append(devices, d)
	}

	writeJSON(w, http.StatusOK, devices)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
