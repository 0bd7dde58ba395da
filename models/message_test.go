package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMarshalFlattensContent(t *testing.T) {
	m := Message{
		ID:        "m1",
		Sender:    "alice",
		Timestamp: 1234,
		Status:    StatusSent,
		Content:   TextContent{Text: "hello"},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "text", out["content_type"])
	assert.Equal(t, "hello", out["text"])
	assert.NotContains(t, out, "media_url")
	assert.NotContains(t, out, "gif_url")
}

func TestMessageMarshalMedia(t *testing.T) {
	m := Message{
		ID:      "m2",
		Status:  StatusSent,
		Content: MediaContent{MediaType: "audio", MediaURL: "/v.ogg", Format: "ogg", Duration: 4.2},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "media", out["content_type"])
	assert.Equal(t, "audio", out["media_type"])
	assert.Equal(t, "/v.ogg", out["media_url"])
	assert.Equal(t, 4.2, out["duration"])
}

func TestMessageMarshalRejectsNoContent(t *testing.T) {
	_, err := json.Marshal(Message{ID: "m3"})
	assert.Error(t, err)
}

func TestContentPreviews(t *testing.T) {
	assert.Equal(t, "hey", TextContent{Text: "hey"}.Preview())
	assert.Equal(t, "\U0001F4F7 Photo", MediaContent{MediaType: "image"}.Preview())
	assert.Equal(t, "\U0001F3A5 Video", MediaContent{MediaType: "video"}.Preview())
	assert.Equal(t, "\U0001F3A4 Voice message", MediaContent{MediaType: "audio"}.Preview())
	assert.Equal(t, "\U0001F4CE Attachment", MediaContent{MediaType: "file"}.Preview())
	assert.Equal(t, "GIF", GifContent{GifURL: "/g.gif"}.Preview())
}

func TestEmptyContent(t *testing.T) {
	assert.True(t, Empty(nil))
	assert.True(t, Empty(TextContent{}))
	assert.True(t, Empty(MediaContent{MediaType: "image"}))
	assert.True(t, Empty(GifContent{}))
	assert.False(t, Empty(TextContent{Text: "x"}))
	assert.False(t, Empty(MediaContent{MediaURL: "/x"}))
	assert.False(t, Empty(GifContent{GifURL: "/x"}))
}

func TestBuildContentPrecedence(t *testing.T) {
	r := SendMessageRequest{
		Text:   "caption",
		GifURL: "/g.gif",
		Media:  &MediaContent{MediaType: "image", MediaURL: "/p.jpg"},
	}
	_, isMedia := r.BuildContent().(MediaContent)
	assert.True(t, isMedia, "media wins over gif and text")

	r.Media = nil
	_, isGif := r.BuildContent().(GifContent)
	assert.True(t, isGif, "gif wins over text")

	r.GifURL = ""
	text, isText := r.BuildContent().(TextContent)
	require.True(t, isText)
	assert.Equal(t, "caption", text.Text)
}

func TestRoleRules(t *testing.T) {
	assert.True(t, RoleCreator.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleMember.Valid())
	assert.False(t, Role("owner").Valid())

	assert.True(t, RoleCreator.CanManage())
	assert.True(t, RoleAdmin.CanManage())
	assert.False(t, RoleMember.CanManage())
}
