package chat

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"banter-server/models"
	"banter-server/rtdb"
)

// WindowSize bounds how many recent messages a live listener receives.
const WindowSize = 100

var (
	ErrEmptyMessage = errors.New("message has no content")
	ErrNotInDM      = errors.New("sender is not a participant of this conversation")
	ErrEmptyEmoji   = errors.New("emoji is required")
)

// Notification is the fire-and-forget push payload emitted after a send.
type Notification struct {
	ConversationID   string
	ConversationType models.ConversationType
	Sender           string
	SenderName       string
	Summary          string
}

// Notifier relays push notifications. Delivery is best-effort; the
// engine never looks at the outcome.
type Notifier interface {
	Trigger(n Notification)
}

// Engine appends messages, maintains reply previews and unread counters,
// and serves live message windows with resolved sender avatars.
type Engine struct {
	db       *rtdb.Store
	dir      Directory
	notifier Notifier // may be nil

	// sender-avatar lookup cache: populated lazily, never evicted.
	// Optimization only; a stale entry costs nothing but a wrong
	// avatar until restart.
	avatarMu sync.Mutex
	avatars  map[string]string
}

func NewEngine(db *rtdb.Store, dir Directory, notifier Notifier) *Engine {
	return &Engine{db: db, dir: dir, notifier: notifier, avatars: make(map[string]string)}
}

type SendParams struct {
	ConversationID   string
	ConversationType models.ConversationType
	ChannelID        string // group conversations only
	Sender           string
	SenderName       string
	Content          models.Content
	ReplyTo          string // message id being replied to, optional
}

// Send appends a message with a server-assigned timestamp and initial
// status "sent", then bumps every recipient's unread counter and last
// activity. The counter bump is a true atomic read-modify-write; the
// steps around it are deliberately best-effort sequential writes, so a
// failure mid-way leaves the message visible with a lagging counter
// rather than rolling anything back.
func (e *Engine) Send(p SendParams) (*models.Message, error) {
	if models.Empty(p.Content) {
		return nil, ErrEmptyMessage
	}

	recipients, err := e.recipients(p)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ID:         uuid.New().String(),
		Sender:     p.Sender,
		SenderName: p.SenderName,
		Timestamp:  e.db.Now(),
		Status:     models.StatusSent,
		Content:    p.Content,
	}
	if p.ReplyTo != "" {
		msg.ReplyTo = e.replySnapshot(p, p.ReplyTo)
	}

	path := messagePath(p.ConversationID, p.ConversationType, p.ChannelID, msg.ID)
	if err := e.db.Write(path, encodeMessage(msg)); err != nil {
		return nil, err
	}

	// The sender's own entry only moves to the top of their list; no
	// unread for your own message.
	_ = e.db.Merge(chatEntryPath(p.Sender, p.ConversationID), map[string]rtdb.Value{
		"type":                 string(p.ConversationType),
		"lastMessageTimestamp": msg.Timestamp,
	})

	for _, uid := range recipients {
		entry := chatEntryPath(uid, p.ConversationID)
		if _, err := e.db.Transaction(entry+"/unreadCount", func(cur rtdb.Value) (rtdb.Value, bool) {
			return rtdb.AsInt64(cur) + 1, true
		}); err != nil {
			return &msg, err
		}
		if err := e.db.Merge(entry, map[string]rtdb.Value{
			"type":                 string(p.ConversationType),
			"lastMessageTimestamp": msg.Timestamp,
		}); err != nil {
			return &msg, err
		}
	}

	if e.notifier != nil {
		e.notifier.Trigger(Notification{
			ConversationID:   p.ConversationID,
			ConversationType: p.ConversationType,
			Sender:           p.Sender,
			SenderName:       p.SenderName,
			Summary:          p.Content.Preview(),
		})
	}
	return &msg, nil
}

func (e *Engine) recipients(p SendParams) ([]string, error) {
	if p.ConversationType == models.ConversationGroup {
		roster := rtdb.AsMap(readAt(e.db, groupPath(p.ConversationID)+"/roster"))
		if roster == nil {
			return nil, fmt.Errorf("group %s not found", p.ConversationID)
		}
		uids := make([]string, 0, len(roster))
		for uid := range roster {
			if uid != p.Sender {
				uids = append(uids, uid)
			}
		}
		sort.Strings(uids)
		return uids, nil
	}
	peer := DMPeer(p.ConversationID, p.Sender)
	if peer == "" {
		return nil, ErrNotInDM
	}
	return []string{peer}, nil
}

// replySnapshot denormalizes the replied message's preview at send
// time. The quote is intentionally not live: later edits or deletion of
// the original leave it untouched. A reply to an already-deleted
// message is sent without the quote.
func (e *Engine) replySnapshot(p SendParams, replyTo string) *models.ReplyPreview {
	v, ok := e.db.Read(messagePath(p.ConversationID, p.ConversationType, p.ChannelID, replyTo))
	if !ok {
		return nil
	}
	orig := decodeMessage(replyTo, rtdb.AsMap(v))
	if orig.Content == nil {
		return nil
	}
	return &models.ReplyPreview{
		MessageID:  replyTo,
		SenderName: orig.SenderName,
		Preview:    orig.Content.Preview(),
	}
}

// Listen streams the most recent WindowSize messages, oldest first, on
// every change to the log. Sender avatars are resolved through the
// lazy cache before delivery. The returned disposer must be called
// exactly once; double disposal is safe.
func (e *Engine) Listen(convID string, typ models.ConversationType, channelID string, fn func([]models.Message)) (func(), error) {
	return e.db.WatchOrderedWindow(logPath(convID, typ, channelID), "timestamp", WindowSize, func(children []rtdb.Child) {
		fn(e.decodeWindow(children))
	})
}

// List is the one-shot form of Listen for plain HTTP reads.
func (e *Engine) List(convID string, typ models.ConversationType, channelID string) []models.Message {
	node := rtdb.AsMap(readAt(e.db, logPath(convID, typ, channelID)))
	msgs := make([]models.Message, 0, len(node))
	for id, v := range node {
		m := rtdb.AsMap(v)
		if m == nil {
			continue
		}
		msgs = append(msgs, e.withAvatar(decodeMessage(id, m)))
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})
	if len(msgs) > WindowSize {
		msgs = msgs[len(msgs)-WindowSize:]
	}
	return msgs
}

func (e *Engine) decodeWindow(children []rtdb.Child) []models.Message {
	msgs := make([]models.Message, 0, len(children))
	for _, c := range children {
		msgs = append(msgs, e.withAvatar(decodeMessage(c.Key, c.Value)))
	}
	return msgs
}

// Remove deletes one message by id. Unread counters are not corrected
// retroactively; a recipient who never opened the conversation keeps
// the stale count (accepted imprecision).
func (e *Engine) Remove(convID string, typ models.ConversationType, channelID, msgID string) error {
	return e.db.Delete(messagePath(convID, typ, channelID, msgID))
}

// ToggleReaction atomically flips uid's presence under the emoji's
// reaction set. Concurrent togglers on different emojis or different
// uids land on independent sub-paths and never clobber each other.
func (e *Engine) ToggleReaction(convID string, typ models.ConversationType, channelID, msgID, emoji, uid string) error {
	if emoji == "" {
		return ErrEmptyEmoji
	}
	path := messagePath(convID, typ, channelID, msgID) + "/reactions/" + emoji + "/" + uid
	_, err := e.db.Transaction(path, func(cur rtdb.Value) (rtdb.Value, bool) {
		if cur == nil {
			return true, true
		}
		return nil, true
	})
	return err
}

// MarkRead resets uid's unread counter for the conversation to the
// implicit-zero absent state and, for DMs, bulk-marks every not-yet-read
// message from the other party as read. Idempotent. Group counters of
// other members are untouched.
func (e *Engine) MarkRead(uid, convID string, typ models.ConversationType) error {
	if _, err := e.db.Transaction(chatEntryPath(uid, convID)+"/unreadCount", func(rtdb.Value) (rtdb.Value, bool) {
		return nil, true
	}); err != nil {
		return err
	}
	if typ != models.ConversationDM {
		return nil
	}
	log := rtdb.AsMap(readAt(e.db, logPath(convID, typ, "")))
	for id, v := range log {
		m := rtdb.AsMap(v)
		if m == nil {
			continue
		}
		if rtdb.AsString(m["sender"]) == uid || rtdb.AsString(m["status"]) == string(models.StatusRead) {
			continue
		}
		if err := e.db.Merge(logPath(convID, typ, "")+"/"+id, map[string]rtdb.Value{
			"status": string(models.StatusRead),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) withAvatar(m models.Message) models.Message {
	m.SenderAvatar = e.avatarFor(m.Sender)
	return m
}

func (e *Engine) avatarFor(uid string) string {
	e.avatarMu.Lock()
	defer e.avatarMu.Unlock()
	if url, ok := e.avatars[uid]; ok {
		return url
	}
	url := ""
	if prof, err := e.dir.Profile(uid); err == nil {
		url = prof.AvatarURL
	}
	e.avatars[uid] = url
	return url
}

func readAt(db *rtdb.Store, path string) rtdb.Value {
	v, _ := db.Read(path)
	return v
}
