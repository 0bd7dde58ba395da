package chat

import (
	"sort"

	"banter-server/models"
	"banter-server/rtdb"
)

// Tree form of a message. The content variant is tagged by contentType
// so every consumer switches exhaustively instead of sniffing fields.

func encodeMessage(m models.Message) map[string]any {
	out := map[string]any{
		"sender":     m.Sender,
		"senderName": m.SenderName,
		"timestamp":  m.Timestamp,
		"status":     string(m.Status),
	}
	switch c := m.Content.(type) {
	case models.TextContent:
		out["contentType"] = "text"
		out["text"] = c.Text
	case models.MediaContent:
		out["contentType"] = "media"
		out["mediaType"] = c.MediaType
		out["mediaUrl"] = c.MediaURL
		if c.Format != "" {
			out["format"] = c.Format
		}
		if c.Duration > 0 {
			out["duration"] = c.Duration
		}
	case models.GifContent:
		out["contentType"] = "gif"
		out["gifUrl"] = c.GifURL
	}
	if m.ReplyTo != nil {
		out["replyTo"] = map[string]any{
			"messageId":  m.ReplyTo.MessageID,
			"senderName": m.ReplyTo.SenderName,
			"preview":    m.ReplyTo.Preview,
		}
	}
	return out
}

func decodeMessage(id string, m map[string]any) models.Message {
	msg := models.Message{
		ID:         id,
		Sender:     rtdb.AsString(m["sender"]),
		SenderName: rtdb.AsString(m["senderName"]),
		Timestamp:  rtdb.AsInt64(m["timestamp"]),
		Status:     models.MessageStatus(rtdb.AsString(m["status"])),
	}
	switch rtdb.AsString(m["contentType"]) {
	case "text":
		msg.Content = models.TextContent{Text: rtdb.AsString(m["text"])}
	case "media":
		msg.Content = models.MediaContent{
			MediaType: rtdb.AsString(m["mediaType"]),
			MediaURL:  rtdb.AsString(m["mediaUrl"]),
			Format:    rtdb.AsString(m["format"]),
			Duration:  asFloat(m["duration"]),
		}
	case "gif":
		msg.Content = models.GifContent{GifURL: rtdb.AsString(m["gifUrl"])}
	}
	if r := rtdb.AsMap(m["replyTo"]); r != nil {
		msg.ReplyTo = &models.ReplyPreview{
			MessageID:  rtdb.AsString(r["messageId"]),
			SenderName: rtdb.AsString(r["senderName"]),
			Preview:    rtdb.AsString(r["preview"]),
		}
	}
	if reactions := rtdb.AsMap(m["reactions"]); len(reactions) > 0 {
		msg.Reactions = make(map[string][]string, len(reactions))
		for emoji, v := range reactions {
			uidSet := rtdb.AsMap(v)
			uids := make([]string, 0, len(uidSet))
			for uid := range uidSet {
				uids = append(uids, uid)
			}
			sort.Strings(uids)
			msg.Reactions[emoji] = uids
		}
	}
	return msg
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	}
	return 0
}
