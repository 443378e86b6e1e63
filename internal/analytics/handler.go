package analytics

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wifikids/backend/internal/models"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context())
	if err != nil {
		log.Printf("[analytics] summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to compute summary"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetDeviceStats(w http.ResponseWriter, r *http.Request) {
	deviceID := models.NormalizeMAC(mux.Vars(r)["device_id"])

	stats, err := h.store.DeviceStats(r.Context(), deviceID)
	if err != nil {
		log.Printf("[analytics] device stats %s: %v", deviceID, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to compute device stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
