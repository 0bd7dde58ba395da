package chat

import (
	"sort"
	"sync"
	"time"

	"banter-server/rtdb"
)

// TypingTTL is how long a typing marker survives without another
// keystroke before the local timer clears it.
const TypingTTL = 3 * time.Second

// Typing maintains the short-lived per-(conversation, user) "is typing"
// markers. Each instance owns its own timer registry, so independent
// instances (and tests) never share state. The local timer is solely
// responsible for expiry; there is no server-side TTL, so a client that
// vanishes mid-type leaves a stale marker until that key's next writer
// clears it.
type Typing struct {
	db  *rtdb.Store
	ttl time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewTyping(db *rtdb.Store) *Typing {
	return &Typing{db: db, ttl: TypingTTL, timers: make(map[string]*time.Timer)}
}

// Start writes the marker and (re)arms the expiry timer. Every
// keystroke calls Start again, debouncing the clear.
func (t *Typing) Start(convID, uid string) error {
	if err := t.db.Write(typingMarkPath(convID, uid), true); err != nil {
		return err
	}
	key := convID + "/" + uid
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.ttl)
		return nil
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		_ = t.Stop(convID, uid)
	})
	return nil
}

// Stop clears the marker immediately and cancels any pending timer,
// the on-send path.
func (t *Typing) Stop(convID, uid string) error {
	key := convID + "/" + uid
	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()
	return t.db.Delete(typingMarkPath(convID, uid))
}

// Listen delivers the set of uids currently typing in the conversation,
// with the listener's own uid filtered out, sorted for stable output.
func (t *Typing) Listen(convID, selfUID string, fn func([]string)) (func(), error) {
	return t.db.Watch(typingPath(convID), func(v rtdb.Value) {
		marks := rtdb.AsMap(v)
		uids := make([]string, 0, len(marks))
		for uid := range marks {
			if uid != selfUID {
				uids = append(uids, uid)
			}
		}
		sort.Strings(uids)
		fn(uids)
	})
}

// Close cancels every pending timer without touching remote markers.
func (t *Typing) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
