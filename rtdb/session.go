package rtdb

import "sync"

// Session models one client connection for disconnect handling. Writes
// armed with DeferOnDisconnect are applied when the session closes
// without the path having been cancelled first, which covers crashes,
// network loss and tab closes. A stale registration never outlives its
// session: re-connecting means a fresh Session and fresh arming.
type Session struct {
	store *Store

	mu       sync.Mutex
	deferred map[string]Value
	closed   bool
}

func (s *Store) NewSession() *Session {
	return &Session{store: s, deferred: make(map[string]Value)}
}

// DeferOnDisconnect arms a write of v at path to fire when the session
// closes. Arming the same path again replaces the previous value.
func (sess *Session) DeferOnDisconnect(path string, v Value) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	sess.deferred[path] = v
}

// Cancel disarms a deferred write, the clean sign-off case.
func (sess *Session) Cancel(path string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.deferred, path)
}

// Close applies every still-armed deferred write exactly once. Closing
// twice is a no-op.
func (sess *Session) Close() {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	deferred := sess.deferred
	sess.deferred = nil
	sess.mu.Unlock()

	for path, v := range deferred {
		_ = sess.store.Write(path, v)
	}
}
