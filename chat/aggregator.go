package chat

import (
	"sort"
	"sync"

	"banter-server/models"
	"banter-server/rtdb"
)

// Conversation is one row of the aggregated list: a DM or group with
// its live preview, last activity, unread count and (DMs) presence.
type Conversation struct {
	ID          string                  `json:"id"`
	Type        models.ConversationType `json:"type"`
	Name        string                  `json:"name"`
	AvatarURL   string                  `json:"avatar_url,omitempty"`
	PeerID      string                  `json:"peer_id,omitempty"`
	Timestamp   int64                   `json:"timestamp,omitempty"`
	UnreadCount int64                   `json:"unread_count,omitempty"`
	Preview     string                  `json:"preview,omitempty"`
	Loading     bool                    `json:"loading,omitempty"`
	Presence    *models.Presence        `json:"presence,omitempty"`
}

type liveConv struct {
	id     string
	typ    models.ConversationType
	name   string
	avatar string
	peer   string

	// a DM whose peer cannot be resolved in the directory is kept out
	// of emissions; stale accounts must not produce broken rows.
	unresolved bool

	entry    models.ChatEntry
	preview  string
	lastTS   int64
	loaded   bool
	presence *models.Presence

	disposeLast     func()
	disposePresence func()
}

// Aggregator merges one user's DM entries and group memberships into a
// single continuously re-emitted list ordered by last activity. Per
// conversation it owns a last-message watcher and, for DMs, a presence
// watcher; reconciliation attaches and detaches them as the membership
// snapshots change. Attachment is idempotent and detachment is exact:
// a removed conversation's watchers never fire again.
type Aggregator struct {
	db       *rtdb.Store
	dir      Directory
	presence *Presence
	uid      string
	emit     func([]Conversation)

	mu            sync.Mutex
	active        map[string]*liveConv
	disposeChats  func()
	disposeGroups func()
	closed        bool

	// serializes emissions so a slow consumer sees list versions in
	// order even when several watchers settle at once.
	emitMu sync.Mutex
}

func NewAggregator(db *rtdb.Store, dir Directory, presence *Presence, uid string, emit func([]Conversation)) *Aggregator {
	return &Aggregator{
		db:       db,
		dir:      dir,
		presence: presence,
		uid:      uid,
		emit:     emit,
		active:   make(map[string]*liveConv),
	}
}

// Start attaches the two membership watches and emits the initial list.
func (a *Aggregator) Start() error {
	disposeChats, err := a.db.Watch(userChatsPath(a.uid), a.onChats)
	if err != nil {
		return err
	}
	disposeGroups, err := a.db.Watch(userGroupsPath(a.uid), a.onGroups)
	if err != nil {
		disposeChats()
		return err
	}
	a.mu.Lock()
	a.disposeChats = disposeChats
	a.disposeGroups = disposeGroups
	a.mu.Unlock()
	return nil
}

// Close detaches everything. Safe to call twice.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	disposers := []func(){a.disposeChats, a.disposeGroups}
	for _, lc := range a.active {
		disposers = append(disposers, lc.disposeLast, lc.disposePresence)
	}
	a.active = make(map[string]*liveConv)
	a.mu.Unlock()

	for _, d := range disposers {
		if d != nil {
			d()
		}
	}
}

// onChats fires on every change to userChats/{uid}: DM entries control
// which DMs are active, and the entries carry the unread counters and
// last-activity timestamps for DMs and groups alike.
func (a *Aggregator) onChats(v rtdb.Value) {
	entries := rtdb.AsMap(v)
	desired := make(map[string]models.ChatEntry, len(entries))
	dms := make(map[string]bool)
	for convID, raw := range entries {
		m := rtdb.AsMap(raw)
		if m == nil {
			continue
		}
		entry := models.ChatEntry{
			Type:                 models.ConversationType(rtdb.AsString(m["type"])),
			LastMessageTimestamp: rtdb.AsInt64(m["lastMessageTimestamp"]),
			UnreadCount:          rtdb.AsInt64(m["unreadCount"]),
		}
		desired[convID] = entry
		if entry.Type == models.ConversationDM {
			dms[convID] = true
		}
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	var detached []func()
	var toAttach []*liveConv
	// counters and timestamps refresh for every active conversation
	for id, lc := range a.active {
		if entry, ok := desired[id]; ok {
			lc.entry = entry
		} else if lc.typ == models.ConversationDM {
			// entry gone: the user hid the DM
			detached = append(detached, lc.disposeLast, lc.disposePresence)
			delete(a.active, id)
		} else {
			lc.entry = models.ChatEntry{Type: models.ConversationGroup}
		}
	}
	for id := range dms {
		if _, ok := a.active[id]; ok {
			continue
		}
		lc := &liveConv{id: id, typ: models.ConversationDM, peer: DMPeer(id, a.uid), entry: desired[id]}
		a.active[id] = lc
		toAttach = append(toAttach, lc)
	}
	a.mu.Unlock()

	for _, d := range detached {
		if d != nil {
			d()
		}
	}
	for _, lc := range toAttach {
		a.attach(lc)
	}
	a.emitList()
}

// onGroups fires on every change to userGroups/{uid}; its keys are the
// authoritative group membership set.
func (a *Aggregator) onGroups(v rtdb.Value) {
	memberships := rtdb.AsMap(v)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	var detached []func()
	var toAttach []*liveConv
	for id, lc := range a.active {
		if lc.typ != models.ConversationGroup {
			continue
		}
		if _, ok := memberships[id]; !ok {
			detached = append(detached, lc.disposeLast, lc.disposePresence)
			delete(a.active, id)
		}
	}
	for id := range memberships {
		if _, ok := a.active[id]; ok {
			continue
		}
		// seed from the stored entry so a reconnecting user keeps the
		// badge and ordering accrued while offline; the userChats watch
		// may have fired before this group was active
		entry := models.ChatEntry{Type: models.ConversationGroup}
		if m := rtdb.AsMap(readAt(a.db, chatEntryPath(a.uid, id))); m != nil {
			entry.LastMessageTimestamp = rtdb.AsInt64(m["lastMessageTimestamp"])
			entry.UnreadCount = rtdb.AsInt64(m["unreadCount"])
		}
		lc := &liveConv{id: id, typ: models.ConversationGroup, entry: entry}
		a.active[id] = lc
		toAttach = append(toAttach, lc)
	}
	a.mu.Unlock()

	for _, d := range detached {
		if d != nil {
			d()
		}
	}
	for _, lc := range toAttach {
		a.attach(lc)
	}
	a.emitList()
}

// attach resolves the conversation's display identity and hooks up its
// watchers. Runs outside the aggregator lock because watchers fire
// synchronously on attachment. If the conversation was detached while
// we were attaching, the fresh watchers are disposed straight away.
func (a *Aggregator) attach(lc *liveConv) {
	if lc.typ == models.ConversationDM {
		prof, err := a.dir.Profile(lc.peer)
		if err != nil || prof == nil {
			a.mu.Lock()
			lc.unresolved = true
			a.mu.Unlock()
		} else {
			a.mu.Lock()
			lc.name = prof.Username
			lc.avatar = prof.AvatarURL
			a.mu.Unlock()
		}
	} else {
		g := rtdb.AsMap(readAt(a.db, groupPath(lc.id)))
		a.mu.Lock()
		lc.name = rtdb.AsString(g["name"])
		lc.avatar = rtdb.AsString(g["iconUrl"])
		a.mu.Unlock()
	}

	// group previews track the general channel only; activity in other
	// channels still reorders the row through the entry's timestamp
	disposeLast, err := a.db.WatchOrderedWindow(logPath(lc.id, lc.typ, ""), "timestamp", 1, func(children []rtdb.Child) {
		a.mu.Lock()
		lc.loaded = true
		lc.preview = ""
		lc.lastTS = 0
		if len(children) > 0 {
			last := decodeMessage(children[0].Key, children[0].Value)
			if last.Content != nil {
				lc.preview = last.Content.Preview()
			}
			lc.lastTS = last.Timestamp
		}
		a.mu.Unlock()
		a.emitList()
	})
	if err != nil {
		a.mu.Lock()
		lc.loaded = false
		a.mu.Unlock()
	}

	var disposePresence func()
	if lc.typ == models.ConversationDM && a.presence != nil {
		disposePresence = a.presence.Listen(lc.peer, func(p models.Presence) {
			a.mu.Lock()
			cp := p
			lc.presence = &cp
			a.mu.Unlock()
			a.emitList()
		})
	}

	a.mu.Lock()
	if a.active[lc.id] != lc {
		// detached mid-attach; don't leak the fresh watchers
		a.mu.Unlock()
		if disposeLast != nil {
			disposeLast()
		}
		if disposePresence != nil {
			disposePresence()
		}
		return
	}
	lc.disposeLast = disposeLast
	lc.disposePresence = disposePresence
	a.mu.Unlock()
}

// Snapshot returns the current list without waiting for a change.
func (a *Aggregator) Snapshot() []Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() []Conversation {
	list := make([]Conversation, 0, len(a.active))
	for _, lc := range a.active {
		if lc.unresolved {
			continue
		}
		ts := lc.entry.LastMessageTimestamp
		if ts == 0 {
			ts = lc.lastTS
		}
		list = append(list, Conversation{
			ID:          lc.id,
			Type:        lc.typ,
			Name:        lc.name,
			AvatarURL:   lc.avatar,
			PeerID:      lc.peer,
			Timestamp:   ts,
			UnreadCount: lc.entry.UnreadCount,
			Preview:     lc.preview,
			Loading:     !lc.loaded,
			Presence:    lc.presence,
		})
	}
	// newest activity first; conversations with no activity sink
	sort.Slice(list, func(i, j int) bool {
		ti, tj := list[i].Timestamp, list[j].Timestamp
		if ti != tj {
			if ti == 0 {
				return false
			}
			if tj == 0 {
				return true
			}
			return ti > tj
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (a *Aggregator) emitList() {
	a.mu.Lock()
	if a.closed || a.emit == nil {
		a.mu.Unlock()
		return
	}
	list := a.snapshotLocked()
	a.mu.Unlock()

	a.emitMu.Lock()
	a.emit(list)
	a.emitMu.Unlock()
}
