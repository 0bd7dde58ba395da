package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"banter-server/chat"
	"banter-server/middleware"
	"banter-server/models"
)

type GroupHandler struct {
	groups *chat.Groups
}

func NewGroupHandler(groups *chat.Groups) *GroupHandler {
	return &GroupHandler{groups: groups}
}

func groupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrGroupNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, chat.ErrNotMember), errors.Is(err, chat.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, chat.ErrProtectedChannel),
		errors.Is(err, chat.ErrCreatorLeave),
		errors.Is(err, chat.ErrEmptyGroupName),
		errors.Is(err, chat.ErrEmptyChannelName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Group operation failed", http.StatusInternalServerError)
	}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.groups.Create(userID, req.Name, req.IconURL, req.Members)
	if err != nil {
		groupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Get(r.PathValue("id"))
	if err != nil {
		groupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(group)
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.GroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "User ID required", http.StatusBadRequest)
		return
	}

	if err := h.groups.AddMember(r.PathValue("id"), userID, req.UserID); err != nil {
		groupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if err := h.groups.RemoveMember(r.PathValue("id"), userID, r.PathValue("userId")); err != nil {
		groupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.GroupMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "User ID required", http.StatusBadRequest)
		return
	}

	if err := h.groups.SetRole(r.PathValue("id"), userID, req.UserID, req.Role); err != nil {
		groupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if err := h.groups.Leave(r.PathValue("id"), userID); err != nil {
		groupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ch, err := h.groups.CreateChannel(r.PathValue("id"), userID, req.Name)
	if err != nil {
		groupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ch)
}

func (h *GroupHandler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if err := h.groups.DeleteChannel(r.PathValue("id"), userID, r.PathValue("channelId")); err != nil {
		groupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
