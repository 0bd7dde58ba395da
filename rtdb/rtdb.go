// Package rtdb is a hierarchical realtime tree store: point reads and
// writes addressed by slash-separated paths, per-key merges, optimistic
// counter transactions, and live watches that fire on every change under
// a path. Values are plain maps, strings, bools and numbers. An optional
// Pebble backing makes the tree durable across restarts.
package rtdb

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Value is any tree value: map[string]any branches, or string / bool /
// int64 / float64 leaves.
type Value = any

type serverTimestamp struct{}

// ServerTimestamp is a write-time placeholder replaced by the store's
// monotonic clock when the write is applied. Usable inside maps and as
// a leaf value, including in deferred disconnect writes.
var ServerTimestamp Value = serverTimestamp{}

type Store struct {
	mu      sync.Mutex
	root    map[string]any
	version uint64

	watches map[uint64]*watch
	nextID  uint64

	lastTS int64

	pb *pebbleBacking // nil when in-memory
}

// New returns an in-memory store with no durability.
func New() *Store {
	return &Store{
		root:    make(map[string]any),
		watches: make(map[uint64]*watch),
	}
}

// Open returns a store whose tree is persisted to a Pebble database in
// dir, restoring whatever the previous run left behind.
func Open(dir string) (*Store, error) {
	s := New()
	pb, err := openPebble(dir)
	if err != nil {
		return nil, err
	}
	s.pb = pb
	if err := pb.load(s); err != nil {
		pb.close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.pb == nil {
		return nil
	}
	return s.pb.close()
}

// Now returns a server-assigned timestamp in unix milliseconds, strictly
// increasing so two writes in the same millisecond still order.
func (s *Store) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *Store) nowLocked() int64 {
	ts := time.Now().UnixMilli()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("rtdb: empty path")
	}
	segs := strings.Split(path, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("rtdb: malformed path %q", path)
		}
	}
	return segs, nil
}

// Read returns a deep copy of the value at path, or false when absent.
func (s *Store) Read(path string) (Value, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.valueAt(segs)
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Write replaces the value at path. A nil value deletes.
func (s *Store) Write(path string, v Value) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	norm := normalize(v, s.nowLocked())
	fires := s.applyLocked(segs, norm)
	s.mu.Unlock()
	s.deliver(fires)
	return nil
}

// Merge applies each subpath independently under path. Keys are applied
// one by one; this is atomic per key, not a cross-key transaction.
func (s *Store) Merge(path string, fields map[string]Value) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	var fires []firing
	s.mu.Lock()
	now := s.nowLocked()
	for sub, v := range fields {
		subSegs, err := splitPath(sub)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		fires = append(fires, s.applyLocked(append(append([]string{}, segs...), subSegs...), normalize(v, now))...)
	}
	s.mu.Unlock()
	s.deliver(fires)
	return nil
}

// Delete removes the value at path. Deleting an absent path is a no-op.
func (s *Store) Delete(path string) error {
	return s.Write(path, nil)
}

// Transaction atomically transforms the value at path with optimistic
// retry: fn receives the current value (nil when absent) and returns the
// replacement, or ok=false to abort. Returning a nil replacement deletes
// the value. The committed value is returned; an abort returns (nil, nil).
func (s *Store) Transaction(path string, fn func(cur Value) (Value, bool)) (Value, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	for {
		s.mu.Lock()
		cur, _ := s.valueAt(segs)
		cur = deepCopy(cur)
		ver := s.version
		s.mu.Unlock()

		next, ok := fn(cur)
		if !ok {
			return nil, nil
		}

		s.mu.Lock()
		if s.version != ver {
			s.mu.Unlock()
			mTxRetries.Inc()
			continue
		}
		norm := normalize(next, s.nowLocked())
		fires := s.applyLocked(segs, norm)
		s.mu.Unlock()
		s.deliver(fires)
		return deepCopy(norm), nil
	}
}

// applyLocked mutates the tree, bumps the version, persists the changed
// subtree and collects the watch firings caused by the change. The
// caller delivers them after releasing the lock.
func (s *Store) applyLocked(segs []string, v Value) []firing {
	if v == nil {
		if _, ok := s.valueAt(segs); !ok {
			return nil
		}
		s.deleteAt(segs)
	} else {
		s.setAt(segs, v)
	}
	s.version++
	mWrites.Inc()
	if s.pb != nil {
		s.pb.persist(segs, v)
	}
	return s.collectLocked(segs)
}

func (s *Store) valueAt(segs []string) (any, bool) {
	var cur any = s.root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (s *Store) setAt(segs []string, v any) {
	node := s.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segs[len(segs)-1]] = v
}

// deleteAt removes the leaf and prunes branches left empty, so a
// toggled-off reaction leaves no husk behind.
func (s *Store) deleteAt(segs []string) {
	parents := make([]map[string]any, 0, len(segs))
	node := s.root
	for _, seg := range segs[:len(segs)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segs[len(segs)-1])
	for i := len(segs) - 2; i >= 0; i-- {
		if len(node) > 0 {
			break
		}
		node = parents[i]
		delete(node, segs[i])
	}
}

// normalize deep-copies written values into tree form: maps copied,
// ints widened to int64, ServerTimestamp resolved to now.
func normalize(v any, now int64) any {
	switch t := v.(type) {
	case serverTimestamp:
		return now
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = normalize(val, now)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}

func deepCopy(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = deepCopy(val)
	}
	return out
}

// AsInt64 coerces a numeric tree value; absent or non-numeric is 0.
func AsInt64(v Value) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	case int:
		return int64(t)
	}
	return 0
}

// AsString coerces a string tree value; anything else is "".
func AsString(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// AsMap coerces a branch value; anything else is nil.
func AsMap(v Value) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
