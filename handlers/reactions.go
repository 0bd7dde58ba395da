package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"banter-server/chat"
	"banter-server/middleware"
	"banter-server/models"
)

type ReactionHandler struct {
	engine *chat.Engine
}

func NewReactionHandler(engine *chat.Engine) *ReactionHandler {
	return &ReactionHandler{engine: engine}
}

// Toggle flips the caller's reaction: one endpoint both adds and
// removes, mirroring how clients render a reaction chip.
func (h *ReactionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.ToggleReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.MessageID == "" || req.ConversationID == "" {
		http.Error(w, "Message ID and conversation ID are required", http.StatusBadRequest)
		return
	}

	err := h.engine.ToggleReaction(req.ConversationID, req.ConversationType, req.ChannelID, req.MessageID, req.Emoji, userID)
	switch {
	case errors.Is(err, chat.ErrEmptyEmoji):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Failed to toggle reaction", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
