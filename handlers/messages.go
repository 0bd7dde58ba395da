package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"banter-server/chat"
	"banter-server/middleware"
	"banter-server/models"
	"banter-server/store"
)

type MessageHandler struct {
	engine *chat.Engine
	typing *chat.Typing
	store  *store.Store
}

func NewMessageHandler(engine *chat.Engine, typing *chat.Typing, s *store.Store) *MessageHandler {
	return &MessageHandler{engine: engine, typing: typing, store: s}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ConversationID == "" {
		http.Error(w, "Conversation ID required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByID(userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	// Sending signals the keyboard went quiet.
	_ = h.typing.Stop(req.ConversationID, userID)

	msg, err := h.engine.Send(chat.SendParams{
		ConversationID:   req.ConversationID,
		ConversationType: req.ConversationType,
		ChannelID:        req.ChannelID,
		Sender:           userID,
		SenderName:       user.Username,
		Content:          req.BuildContent(),
		ReplyTo:          req.ReplyTo,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrNotInDM):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("id")
	if convID == "" {
		http.Error(w, "Conversation ID required", http.StatusBadRequest)
		return
	}
	typ := models.ConversationType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = models.ConversationDM
	}

	msgs := h.engine.List(convID, typ, r.URL.Query().Get("channel"))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

type deleteMessageRequest struct {
	ConversationID   string                  `json:"conversation_id"`
	ConversationType models.ConversationType `json:"conversation_type"`
	ChannelID        string                  `json:"channel_id,omitempty"`
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	msgID := r.PathValue("id")
	if msgID == "" {
		http.Error(w, "Message ID required", http.StatusBadRequest)
		return
	}

	var req deleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		http.Error(w, "Conversation ID required", http.StatusBadRequest)
		return
	}

	if err := h.engine.Remove(req.ConversationID, req.ConversationType, req.ChannelID, msgID); err != nil {
		http.Error(w, "Failed to delete message", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	convID := r.PathValue("id")
	if convID == "" {
		http.Error(w, "Conversation ID required", http.StatusBadRequest)
		return
	}
	typ := models.ConversationType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = models.ConversationDM
	}

	if err := h.engine.MarkRead(userID, convID, typ); err != nil {
		http.Error(w, "Failed to mark as read", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
