package rtdb

import (
	"sort"
	"sync/atomic"
)

// Child is one element of an ordered window: the child's key under the
// watched path plus its branch value.
type Child struct {
	Key   string
	Value map[string]any
}

type watch struct {
	id       uint64
	segs     []string
	fn       func(Value)        // plain watch
	windowFn func([]Child)      // ordered-window watch
	orderKey string
	limit    int
	disposed atomic.Bool
}

type firing struct {
	w      *watch
	val    Value
	window []Child
}

// Watch subscribes fn to the value at path: it fires once immediately
// with the current value (nil when absent) and again on every change at
// or under the path. The returned disposer detaches the watch; calling
// it more than once is a no-op, and a disposed watch never fires again.
func (s *Store) Watch(path string, fn func(Value)) (func(), error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	w := &watch{segs: segs, fn: fn}
	s.mu.Lock()
	s.register(w)
	cur, _ := s.valueAt(segs)
	cur = deepCopy(cur)
	s.mu.Unlock()
	mWatchers.Inc()

	fn(cur)
	return s.disposer(w), nil
}

// WatchOrderedWindow subscribes fn to the most recent limit children of
// path, ordered ascending by the numeric orderKey field of each child.
// Children missing the key sort first. Fires immediately and on every
// change under the path.
func (s *Store) WatchOrderedWindow(path, orderKey string, limit int, fn func([]Child)) (func(), error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	w := &watch{segs: segs, windowFn: fn, orderKey: orderKey, limit: limit}
	s.mu.Lock()
	s.register(w)
	win := s.windowLocked(w)
	s.mu.Unlock()
	mWatchers.Inc()

	fn(win)
	return s.disposer(w), nil
}

func (s *Store) register(w *watch) {
	s.nextID++
	w.id = s.nextID
	s.watches[w.id] = w
}

func (s *Store) disposer(w *watch) func() {
	return func() {
		if !w.disposed.CompareAndSwap(false, true) {
			return
		}
		s.mu.Lock()
		delete(s.watches, w.id)
		s.mu.Unlock()
		mWatchers.Dec()
	}
}

// collectLocked snapshots, for every watch touched by a mutation at
// segs, the payload it should receive. A watch is touched when its path
// contains the mutation or the mutation replaced one of its ancestors.
func (s *Store) collectLocked(segs []string) []firing {
	var fires []firing
	for _, w := range s.watches {
		if !overlaps(w.segs, segs) {
			continue
		}
		if w.windowFn != nil {
			fires = append(fires, firing{w: w, window: s.windowLocked(w)})
			continue
		}
		cur, _ := s.valueAt(w.segs)
		fires = append(fires, firing{w: w, val: deepCopy(cur)})
	}
	sort.Slice(fires, func(i, j int) bool { return fires[i].w.id < fires[j].w.id })
	return fires
}

func (s *Store) deliver(fires []firing) {
	for _, f := range fires {
		if f.w.disposed.Load() {
			continue
		}
		if f.w.windowFn != nil {
			f.w.windowFn(f.window)
			continue
		}
		f.w.fn(f.val)
	}
}

func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *Store) windowLocked(w *watch) []Child {
	node, _ := s.valueAt(w.segs)
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	children := make([]Child, 0, len(m))
	for k, v := range m {
		branch, ok := v.(map[string]any)
		if !ok {
			continue
		}
		children = append(children, Child{Key: k, Value: deepCopy(branch).(map[string]any)})
	}
	sort.Slice(children, func(i, j int) bool {
		oi := AsInt64(children[i].Value[w.orderKey])
		oj := AsInt64(children[j].Value[w.orderKey])
		if oi != oj {
			return oi < oj
		}
		return children[i].Key < children[j].Key
	})
	if w.limit > 0 && len(children) > w.limit {
		children = children[len(children)-w.limit:]
	}
	return children
}
