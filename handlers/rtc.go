package handlers

import (
	"encoding/json"
	"net/http"

	"banter-server/middleware"
	"banter-server/rtc"
)

type RTCHandler struct {
	issuer *rtc.Issuer
}

func NewRTCHandler(issuer *rtc.Issuer) *RTCHandler {
	return &RTCHandler{issuer: issuer}
}

// Token mints a call-join token for the authenticated user. The channel
// name is the conversation id the call lives in.
func (h *RTCHandler) Token(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "Channel required", http.StatusBadRequest)
		return
	}

	token, err := h.issuer.Token(channel, userID)
	if err != nil {
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token":   token,
		"channel": channel,
		"uid":     userID,
	})
}
