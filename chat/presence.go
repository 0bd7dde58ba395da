package chat

import (
	"fmt"
	"sync"
	"time"

	"banter-server/models"
	"banter-server/rtdb"
)

// Presence tracks per-user online state. On every (re)connection the
// tracker writes "online" and re-arms a disconnect-deferred "offline"
// write with the session; a registration from a previous connection is
// never trusted. An unclean drop (crash, network loss, tab close) thus
// still lands the user on "offline" with a last-changed stamp.
type Presence struct {
	db *rtdb.Store
}

func NewPresence(db *rtdb.Store) *Presence {
	return &Presence{db: db}
}

// Connected marks uid online and arms the deferred offline writes on
// this session.
func (p *Presence) Connected(sess *rtdb.Session, uid string) error {
	if err := p.db.Write(statusPath(uid), map[string]any{
		"state":       "online",
		"lastChanged": rtdb.ServerTimestamp,
	}); err != nil {
		return err
	}
	sess.DeferOnDisconnect(statusPath(uid), map[string]any{
		"state":       "offline",
		"lastChanged": rtdb.ServerTimestamp,
	})
	sess.DeferOnDisconnect(lastSeenPath(uid), rtdb.ServerTimestamp)
	return nil
}

// SignOff is the clean path: write offline and last-seen now, and
// disarm the deferred writes so the session close applies nothing.
func (p *Presence) SignOff(sess *rtdb.Session, uid string) error {
	sess.Cancel(statusPath(uid))
	sess.Cancel(lastSeenPath(uid))
	if err := p.db.Write(statusPath(uid), map[string]any{
		"state":       "offline",
		"lastChanged": rtdb.ServerTimestamp,
	}); err != nil {
		return err
	}
	return p.db.Write(lastSeenPath(uid), rtdb.ServerTimestamp)
}

// SignOffOther disarms the deferred writes without touching the status
// record. Used when one of several connections for the same user drops
// and the remaining ones should keep the user online.
func (p *Presence) SignOffOther(sess *rtdb.Session, uid string) {
	sess.Cancel(statusPath(uid))
	sess.Cancel(lastSeenPath(uid))
}

// Listen coalesces the live status record and the separate last-seen
// record into one value, re-invoking fn whenever either changes.
func (p *Presence) Listen(uid string, fn func(models.Presence)) func() {
	var mu sync.Mutex
	var cur models.Presence

	disposeStatus, err := p.db.Watch(statusPath(uid), func(v rtdb.Value) {
		m := rtdb.AsMap(v)
		mu.Lock()
		cur.State = rtdb.AsString(m["state"])
		if cur.State == "" {
			cur.State = "offline"
		}
		cur.LastChanged = rtdb.AsInt64(m["lastChanged"])
		merged := cur
		mu.Unlock()
		fn(merged)
	})
	if err != nil {
		return func() {}
	}
	disposeSeen, err := p.db.Watch(lastSeenPath(uid), func(v rtdb.Value) {
		mu.Lock()
		cur.LastSeen = rtdb.AsInt64(v)
		merged := cur
		mu.Unlock()
		fn(merged)
	})
	if err != nil {
		disposeSeen = func() {}
	}
	return func() {
		disposeStatus()
		disposeSeen()
	}
}

// FormatLastSeen renders elapsed time since last seen in the buckets
// users expect: "just now" under a minute, then minutes, then hours,
// "yesterday" for anything on the previous day, and a calendar date
// beyond that.
func FormatLastSeen(lastSeen, now time.Time) string {
	secs := int64(now.Sub(lastSeen) / time.Second)
	switch {
	case secs < 60:
		return "just now"
	case secs < 3600:
		return ago(secs/60, "minute")
	case secs < 86400:
		return ago(secs/3600, "hour")
	case secs < 172800:
		return "yesterday"
	default:
		return lastSeen.Format("Jan 2, 2006")
	}
}

func ago(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
