package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/maumlab/counsel/internal/dialogue"
)

// maxInputRunes bounds a single turn; longer inputs are rejected before any
// model call.
const maxInputRunes = 4000

type turnRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	dialogue.Turn
}

type turnHandler struct {
	responder Responder
	logger    *slog.Logger
}

// handle runs one counseling turn. A missing session_id starts a new session
// and the generated id is returned so the client can continue it.
func (h *turnHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}

	input := strings.TrimSpace(req.Input)
	if input == "" {
		writeError(w, http.StatusBadRequest, "input_required", "input must not be empty", h.logger)
		return
	}
	if utf8.RuneCountInString(input) > maxInputRunes {
		writeError(w, http.StatusBadRequest, "input_too_long", "input exceeds the allowed length", h.logger)
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	turn := h.responder.Respond(r.Context(), sessionID, input)

	writeJSON(w, http.StatusOK, turnResponse{SessionID: sessionID, Turn: turn}, h.logger)
}
