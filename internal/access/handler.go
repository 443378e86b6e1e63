package access

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/wifikids/backend/internal/models"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// GetCommands is polled by the gateway: returns and consumes pending
// commands for its network.
func (h *Handler) GetCommands(w http.ResponseWriter, r *http.Request) {
	networkID := r.URL.Query().Get("network_id")
	if networkID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "network_id is required"})
		return
	}

	commands, err := h.store.PendingCommands(r.Context(), models.NormalizeMAC(networkID))
	if err != nil {
		log.Printf("[access] fetch commands for %s: %v", networkID, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch commands"})
		return
	}
	if commands == nil {
		commands = []Command{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commands": commands})
}

// GetDeviceStatus reports whether a device currently holds network
// access.
func (h *Handler) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	networkID := r.URL.Query().Get("network_id")
	if deviceID == "" || networkID == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "device_id and network_id are required"})
		return
	}

	status, err := h.store.DeviceStatus(r.Context(), models.NormalizeMAC(deviceID), models.NormalizeMAC(networkID))
	if err != nil {
		log.Printf("[access] device status %s: %v", deviceID, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch status"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
