package rtdb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	s := New()

	require.NoError(t, s.Write("users/u1/name", "ada"))
	v, ok := s.Read("users/u1/name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)

	_, ok = s.Read("users/u2/name")
	assert.False(t, ok)
}

func TestReadReturnsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("conf", map[string]any{"limit": 10}))

	v, ok := s.Read("conf")
	require.True(t, ok)
	v.(map[string]any)["limit"] = int64(99)

	again, _ := s.Read("conf")
	assert.Equal(t, int64(10), again.(map[string]any)["limit"])
}

func TestWriteValueMapForms(t *testing.T) {
	s := New()

	// Value is an alias for any, so both map spellings normalize
	// identically
	require.NoError(t, s.Write("a", map[string]any{"n": 1}))
	require.NoError(t, s.Write("b", map[string]Value{"n": 1}))

	va, _ := s.Read("a/n")
	vb, _ := s.Read("b/n")
	assert.Equal(t, int64(1), va)
	assert.Equal(t, va, vb)
}

func TestMergeIsPerKey(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("chats/c1", map[string]any{
		"type":        "dm",
		"unreadCount": 3,
	}))

	require.NoError(t, s.Merge("chats/c1", map[string]Value{
		"lastMessageTimestamp": int64(42),
	}))

	v, _ := s.Read("chats/c1")
	m := AsMap(v)
	assert.Equal(t, "dm", m["type"])
	assert.Equal(t, int64(3), m["unreadCount"])
	assert.Equal(t, int64(42), m["lastMessageTimestamp"])
}

func TestDeletePrunesEmptyBranches(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("messages/m1/reactions/🔥/u1", true))

	require.NoError(t, s.Delete("messages/m1/reactions/🔥/u1"))

	// The reaction branch should vanish entirely, not linger as an
	// empty map.
	_, ok := s.Read("messages/m1/reactions")
	assert.False(t, ok)

	// Siblings survive.
	require.NoError(t, s.Write("messages/m1/text", "hi"))
	require.NoError(t, s.Write("messages/m1/reactions/👍/u2", true))
	require.NoError(t, s.Delete("messages/m1/reactions/👍/u2"))
	v, ok := s.Read("messages/m1/text")
	require.True(t, ok)
	assert.Equal(t, "hi", v)
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	s := New()
	fired := 0
	dispose, err := s.Watch("a/b", func(Value) { fired++ })
	require.NoError(t, err)
	defer dispose()

	require.NoError(t, s.Delete("a/b/c"))
	assert.Equal(t, 1, fired, "only the immediate attach fire")
}

func TestServerTimestampResolved(t *testing.T) {
	s := New()
	before := s.Now()
	require.NoError(t, s.Write("status/u1", map[string]any{
		"state":       "online",
		"lastChanged": ServerTimestamp,
	}))

	v, _ := s.Read("status/u1")
	ts := AsInt64(AsMap(v)["lastChanged"])
	assert.Greater(t, ts, before)
}

func TestNowMonotonic(t *testing.T) {
	s := New()
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		ts := s.Now()
		require.Greater(t, ts, prev)
		prev = ts
	}
}

func TestTransactionIncrement(t *testing.T) {
	s := New()
	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := s.Transaction("counters/c", func(cur Value) (Value, bool) {
					return AsInt64(cur) + 1, true
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	v, _ := s.Read("counters/c")
	assert.Equal(t, int64(workers*perWorker), AsInt64(v))
}

func TestTransactionAbort(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("k", "v"))

	res, err := s.Transaction("k", func(cur Value) (Value, bool) {
		return nil, false
	})
	require.NoError(t, err)
	assert.Nil(t, res)

	v, ok := s.Read("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestTransactionDeleteOnNil(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("chats/c1/unreadCount", 5))

	_, err := s.Transaction("chats/c1/unreadCount", func(cur Value) (Value, bool) {
		return nil, true
	})
	require.NoError(t, err)

	_, ok := s.Read("chats/c1/unreadCount")
	assert.False(t, ok)
}

func TestWatchFiresImmediatelyAndOnChange(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("typing/c1/u1", true))

	var got []Value
	dispose, err := s.Watch("typing/c1", func(v Value) { got = append(got, v) })
	require.NoError(t, err)
	defer dispose()

	require.Len(t, got, 1, "attach fires with current value")
	assert.Contains(t, AsMap(got[0]), "u1")

	require.NoError(t, s.Write("typing/c1/u2", true))
	require.Len(t, got, 2)
	assert.Contains(t, AsMap(got[1]), "u2")
}

func TestWatchAncestorFiresOnDescendantWrite(t *testing.T) {
	s := New()
	fired := 0
	dispose, err := s.Watch("groups/g1", func(Value) { fired++ })
	require.NoError(t, err)
	defer dispose()

	require.NoError(t, s.Write("groups/g1/roster/u1/role", "member"))
	assert.Equal(t, 2, fired)
}

func TestWatchDescendantFiresOnAncestorReplace(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("groups/g1/name", "old"))

	var last Value
	dispose, err := s.Watch("groups/g1/name", func(v Value) { last = v })
	require.NoError(t, err)
	defer dispose()

	require.NoError(t, s.Write("groups/g1", map[string]any{"name": "new"}))
	assert.Equal(t, "new", last)

	require.NoError(t, s.Delete("groups/g1"))
	assert.Nil(t, last)
}

func TestWatchDisposeIdempotentAndFinal(t *testing.T) {
	s := New()
	fired := 0
	dispose, err := s.Watch("k", func(Value) { fired++ })
	require.NoError(t, err)

	dispose()
	dispose()

	require.NoError(t, s.Write("k", "v"))
	assert.Equal(t, 1, fired, "no fire after dispose")
}

func TestWatchOrderedWindow(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Write(fmt.Sprintf("log/m%d", i), map[string]any{
			"ts":   int64(100 + i),
			"body": fmt.Sprintf("msg-%d", i),
		}))
	}

	var win []Child
	dispose, err := s.WatchOrderedWindow("log", "ts", 3, func(cs []Child) { win = cs })
	require.NoError(t, err)
	defer dispose()

	require.Len(t, win, 3, "window keeps only the newest entries")
	assert.Equal(t, "m2", win[0].Key)
	assert.Equal(t, "m4", win[2].Key)

	require.NoError(t, s.Write("log/m9", map[string]any{"ts": int64(200)}))
	require.Len(t, win, 3)
	assert.Equal(t, "m9", win[2].Key)
	assert.Equal(t, "m3", win[0].Key)
}

func TestWatchOrderedWindowTieBreaksOnKey(t *testing.T) {
	s := New()
	require.NoError(t, s.Write("log/b", map[string]any{"ts": int64(7)}))
	require.NoError(t, s.Write("log/a", map[string]any{"ts": int64(7)}))

	var win []Child
	dispose, err := s.WatchOrderedWindow("log", "ts", 0, func(cs []Child) { win = cs })
	require.NoError(t, err)
	defer dispose()

	require.Len(t, win, 2)
	assert.Equal(t, "a", win[0].Key)
	assert.Equal(t, "b", win[1].Key)
}

func TestSessionDeferredWriteOnClose(t *testing.T) {
	s := New()
	sess := s.NewSession()
	sess.DeferOnDisconnect("status/u1", map[string]any{
		"state":       "offline",
		"lastChanged": ServerTimestamp,
	})

	_, ok := s.Read("status/u1")
	assert.False(t, ok, "deferred writes apply at close, not at arm time")

	sess.Close()
	v, ok := s.Read("status/u1")
	require.True(t, ok)
	assert.Equal(t, "offline", AsString(AsMap(v)["state"]))
	assert.Greater(t, AsInt64(AsMap(v)["lastChanged"]), int64(0))
}

func TestSessionCancelDisarms(t *testing.T) {
	s := New()
	sess := s.NewSession()
	sess.DeferOnDisconnect("status/u1", "offline")
	sess.Cancel("status/u1")
	sess.Close()

	_, ok := s.Read("status/u1")
	assert.False(t, ok)
}

func TestSessionRearmReplaces(t *testing.T) {
	s := New()
	sess := s.NewSession()
	sess.DeferOnDisconnect("k", "first")
	sess.DeferOnDisconnect("k", "second")
	sess.Close()

	v, _ := s.Read("k")
	assert.Equal(t, "second", v)
}

func TestSessionCloseTwice(t *testing.T) {
	s := New()
	sess := s.NewSession()
	sess.DeferOnDisconnect("k", 1)
	sess.Close()
	require.NoError(t, s.Write("k", 5))
	sess.Close()

	v, _ := s.Read("k")
	assert.Equal(t, int64(5), AsInt64(v), "second close must not re-apply")
}

func TestPebbleRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Write("userChats/u1/c1", map[string]any{
		"type":                 "dm",
		"unreadCount":          2,
		"lastMessageTimestamp": int64(1234),
	}))
	require.NoError(t, s.Write("contacts/u1/u2", true))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, ok := s2.Read("userChats/u1/c1")
	require.True(t, ok)
	m := AsMap(v)
	assert.Equal(t, "dm", m["type"])
	assert.Equal(t, int64(2), AsInt64(m["unreadCount"]))
	assert.Equal(t, int64(1234), AsInt64(m["lastMessageTimestamp"]))

	v, ok = s2.Read("contacts/u1/u2")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestPebbleDeleteSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Write("typing/c1/u1", true))
	require.NoError(t, s.Delete("typing/c1/u1"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	_, ok := s2.Read("typing/c1")
	assert.False(t, ok)
}
