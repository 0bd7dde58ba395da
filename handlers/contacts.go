package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"banter-server/chat"
	"banter-server/middleware"
	"banter-server/models"
)

type ContactHandler struct {
	contacts *chat.Contacts
}

func NewContactHandler(contacts *chat.Contacts) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.AddContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}

	contact, err := h.contacts.Add(userID, req.Username, req.Tag)
	switch {
	case errors.Is(err, chat.ErrInvalidTag), errors.Is(err, chat.ErrSelfContact):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, chat.ErrUnknownUser):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Failed to add contact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(contact)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	contacts, err := h.contacts.List(userID)
	if err != nil {
		http.Error(w, "Failed to fetch contacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contacts)
}

func (h *ContactHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	contactID := r.PathValue("id")
	if contactID == "" {
		http.Error(w, "Contact ID required", http.StatusBadRequest)
		return
	}

	if err := h.contacts.Remove(userID, contactID); err != nil {
		http.Error(w, "Failed to remove contact", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Hide drops the caller's own conversation-list entry without touching
// the conversation itself.
func (h *ContactHandler) Hide(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	convID := r.PathValue("id")
	if convID == "" {
		http.Error(w, "Conversation ID required", http.StatusBadRequest)
		return
	}

	if err := h.contacts.Hide(userID, convID); err != nil {
		http.Error(w, "Failed to hide conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
