// Package notify relays push notifications to an external delivery
// endpoint. Delivery is strictly best-effort: failures are logged and
// swallowed, never surfaced to the sender.
package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"banter-server/chat"
)

type Relay struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewRelay builds a relay for the given endpoint. An empty endpoint
// yields a relay that drops everything, so callers never need a nil
// check.
func NewRelay(endpoint, apiKey string) *Relay {
	return &Relay{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type triggerPayload struct {
	ConversationID   string `json:"conversation_id"`
	ConversationType string `json:"conversation_type"`
	Sender           string `json:"sender"`
	SenderName       string `json:"sender_name"`
	MessageSummary   string `json:"message_summary"`
}

// Trigger implements chat.Notifier. Fire-and-forget: the POST happens
// on its own goroutine and any failure only makes a log line.
func (r *Relay) Trigger(n chat.Notification) {
	if r.endpoint == "" {
		return
	}
	go r.send(n)
}

func (r *Relay) send(n chat.Notification) {
	body, err := json.Marshal(triggerPayload{
		ConversationID:   n.ConversationID,
		ConversationType: string(n.ConversationType),
		Sender:           n.Sender,
		SenderName:       n.SenderName,
		MessageSummary:   n.Summary,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequest("POST", r.endpoint, bytes.NewBuffer(body))
	if err != nil {
		log.Printf("[PUSH] build request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("[PUSH] delivery failed for %s: %v", n.ConversationID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[PUSH] relay returned %d for %s", resp.StatusCode, n.ConversationID)
	}
}
