package models

import (
	"encoding/json"
	"fmt"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Content is the message payload. A message carries exactly one variant:
// plain text, an uploaded media reference, or a GIF reference.
type Content interface {
	// Preview renders the short one-line form used in conversation lists
	// and reply snapshots.
	Preview() string
	contentKind() string
}

type TextContent struct {
	Text string `json:"text"`
}

func (c TextContent) Preview() string     { return c.Text }
func (c TextContent) contentKind() string { return "text" }

type MediaContent struct {
	MediaType string  `json:"media_type"` // image, video, audio
	MediaURL  string  `json:"media_url"`
	Format    string  `json:"format,omitempty"`
	Duration  float64 `json:"duration,omitempty"` // seconds, audio/video only
}

func (c MediaContent) Preview() string {
	switch c.MediaType {
	case "image":
		return "\U0001F4F7 Photo"
	case "video":
		return "\U0001F3A5 Video"
	case "audio":
		return "\U0001F3A4 Voice message"
	default:
		return "\U0001F4CE Attachment"
	}
}
func (c MediaContent) contentKind() string { return "media" }

type GifContent struct {
	GifURL string `json:"gif_url"`
}

func (c GifContent) Preview() string     { return "GIF" }
func (c GifContent) contentKind() string { return "gif" }

// Empty reports whether the content carries nothing worth sending.
func Empty(c Content) bool {
	switch v := c.(type) {
	case nil:
		return true
	case TextContent:
		return v.Text == ""
	case MediaContent:
		return v.MediaURL == ""
	case GifContent:
		return v.GifURL == ""
	default:
		return true
	}
}

// ReplyPreview is a denormalized snapshot of the replied-to message taken
// at send time. It is never updated if the original message changes.
type ReplyPreview struct {
	MessageID  string `json:"message_id"`
	SenderName string `json:"sender_name"`
	Preview    string `json:"preview"`
}

type Message struct {
	ID           string              `json:"id"`
	Sender       string              `json:"sender"`
	SenderName   string              `json:"sender_name"`
	SenderAvatar string              `json:"sender_avatar,omitempty"`
	Timestamp    int64               `json:"timestamp"` // server-assigned, unix millis
	Status       MessageStatus       `json:"status"`
	Content      Content             `json:"-"`
	ReplyTo      *ReplyPreview       `json:"reply_to,omitempty"`
	Reactions    map[string][]string `json:"reactions,omitempty"` // emoji -> reacting uids
}

// MarshalJSON flattens the content variant next to a content_type tag so
// clients never have to sniff field presence.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	out := struct {
		alias
		ContentType string  `json:"content_type"`
		Text        string  `json:"text,omitempty"`
		MediaType   string  `json:"media_type,omitempty"`
		MediaURL    string  `json:"media_url,omitempty"`
		Format      string  `json:"format,omitempty"`
		Duration    float64 `json:"duration,omitempty"`
		GifURL      string  `json:"gif_url,omitempty"`
	}{alias: alias(m)}

	switch c := m.Content.(type) {
	case TextContent:
		out.ContentType = "text"
		out.Text = c.Text
	case MediaContent:
		out.ContentType = "media"
		out.MediaType = c.MediaType
		out.MediaURL = c.MediaURL
		out.Format = c.Format
		out.Duration = c.Duration
	case GifContent:
		out.ContentType = "gif"
		out.GifURL = c.GifURL
	case nil:
		return nil, fmt.Errorf("message %s has no content", m.ID)
	default:
		return nil, fmt.Errorf("message %s has unknown content %T", m.ID, m.Content)
	}
	return json.Marshal(out)
}

type SendMessageRequest struct {
	ConversationID   string           `json:"conversation_id"`
	ConversationType ConversationType `json:"conversation_type"`
	ChannelID        string           `json:"channel_id,omitempty"`
	Text             string           `json:"text,omitempty"`
	Media            *MediaContent    `json:"media,omitempty"`
	GifURL           string           `json:"gif_url,omitempty"`
	ReplyTo          string           `json:"reply_to,omitempty"` // message id
}

// Content builds the tagged variant from the wire fields. Exactly one
// variant wins; media beats gif beats text when several are set.
func (r *SendMessageRequest) BuildContent() Content {
	if r.Media != nil {
		return *r.Media
	}
	if r.GifURL != "" {
		return GifContent{GifURL: r.GifURL}
	}
	return TextContent{Text: r.Text}
}

type ToggleReactionRequest struct {
	ConversationID   string           `json:"conversation_id"`
	ConversationType ConversationType `json:"conversation_type"`
	ChannelID        string           `json:"channel_id,omitempty"`
	MessageID        string           `json:"message_id"`
	Emoji            string           `json:"emoji"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSTypeConversationList = "conversation_list"
	WSTypeMessages         = "messages"
	WSTypeTyping           = "typing"
	WSTypePresence         = "presence"
	WSTypeError            = "error"
)
