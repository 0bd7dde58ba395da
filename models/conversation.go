package models

import "time"

type ConversationType string

const (
	ConversationDM    ConversationType = "dm"
	ConversationGroup ConversationType = "group"
)

type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role may change the roster or channels.
func (r Role) CanManage() bool {
	return r == RoleCreator || r == RoleAdmin
}

// GeneralChannel always exists in a group and cannot be deleted.
const GeneralChannel = "general"

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Group struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	IconURL   string             `json:"icon_url,omitempty"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
	Roster    map[string]Role    `json:"roster"`
	Channels  map[string]Channel `json:"channels"`
}

// ChatEntry is the per-user conversation-list record. Its existence is
// what makes a conversation appear in the user's list; deleting it hides
// the conversation without touching the underlying DM or group.
type ChatEntry struct {
	Type                 ConversationType `json:"type"`
	LastMessageTimestamp int64            `json:"last_message_timestamp,omitempty"`
	UnreadCount          int64            `json:"unread_count,omitempty"`
}

type CreateGroupRequest struct {
	Name    string   `json:"name"`
	IconURL string   `json:"icon_url,omitempty"`
	Members []string `json:"members"` // uids, excluding the creator
}

type GroupMemberRequest struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role,omitempty"`
}

type CreateChannelRequest struct {
	Name string `json:"name"`
}
