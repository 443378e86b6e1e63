package challenge

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wifikids/backend/internal/models"
	"github.com/wifikids/backend/internal/provider"
	"github.com/wifikids/backend/internal/router"
)

type Handler struct {
	engine *Engine
	router *router.Router
}

func NewHandler(engine *Engine, r *router.Router) *Handler {
	return &Handler{engine: engine, router: r}
}

func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.engine.GenerateChallenge(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	decision, err := h.engine.SubmitAnswers(r.Context(), sessionID, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	// The answer key never leaves the server.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    sess.ID,
		"device_id":     sess.DeviceID,
		"status":        sess.Status,
		"questions":     models.PublicQuestions(sess.Questions),
		"metadata":      sess.Metadata,
		"progress":      sess.Progress,
		"attempts_left": sess.AttemptsLeft,
		"created_at":    sess.CreatedAt,
		"updated_at":    sess.UpdatedAt,
	})
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	infos := h.router.List()
	if persona := r.URL.Query().Get("persona"); persona != "" {
		filtered := make([]models.ProviderInfo, 0, len(infos))
		for _, info := range infos {
			if info.Persona == models.Persona(persona) || info.Kind == string(provider.KindOffline) {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) GetPersonaPolicy(w http.ResponseWriter, r *http.Request) {
	persona := models.Persona(mux.Vars(r)["persona"])
	policy, err := router.GetPersonaPolicy(persona)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"persona":          persona,
		"max_attempts":     policy.MaxAttempts,
		"score_threshold":  policy.ScoreThreshold,
		"tone":             policy.Tone,
		"style":            policy.Style,
		"default_subjects": policy.DefaultSubjects,
	})
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var inputErr *models.InputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: inputErr.Error()})
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Session not found"})
	case errors.Is(err, ErrSessionClosed):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Session is closed"})
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Concurrent update, please retry"})
	case errors.Is(err, router.ErrInvalidPersona):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, router.ErrNoProviderAvailable):
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "No provider available"})
	case errors.Is(err, provider.ErrGenerationFailed):
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Question generation failed, please retry"})
	default:
		log.Printf("[handler] internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
