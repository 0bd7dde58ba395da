package models

// Presence merges the live status record and the separate last-seen
// record into the single value delivered to listeners.
type Presence struct {
	State       string `json:"state"` // online, offline
	LastChanged int64  `json:"last_changed,omitempty"`
	LastSeen    int64  `json:"last_seen,omitempty"`
}

func (p Presence) Online() bool { return p.State == "online" }
