package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter-server/rtdb"
)

func newTestTyping(db *rtdb.Store, ttl time.Duration) *Typing {
	ty := NewTyping(db)
	ty.ttl = ttl
	return ty
}

func typingSet(db *rtdb.Store, convID string) map[string]any {
	v, _ := db.Read("typing/" + convID)
	return rtdb.AsMap(v)
}

func TestTypingStartAndExpiry(t *testing.T) {
	db := rtdb.New()
	ty := newTestTyping(db, 40*time.Millisecond)
	defer ty.Close()

	require.NoError(t, ty.Start("c1", "alice"))
	assert.Contains(t, typingSet(db, "c1"), "alice")

	assert.Eventually(t, func() bool {
		return typingSet(db, "c1") == nil
	}, time.Second, 10*time.Millisecond, "marker expires after the ttl")
}

func TestTypingKeystrokesDebounce(t *testing.T) {
	db := rtdb.New()
	ty := newTestTyping(db, 60*time.Millisecond)
	defer ty.Close()

	require.NoError(t, ty.Start("c1", "alice"))
	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, ty.Start("c1", "alice"))
		assert.Contains(t, typingSet(db, "c1"), "alice", "re-arming keeps the marker alive")
	}

	assert.Eventually(t, func() bool {
		return typingSet(db, "c1") == nil
	}, time.Second, 10*time.Millisecond)
}

func TestTypingStopClearsImmediately(t *testing.T) {
	db := rtdb.New()
	ty := newTestTyping(db, time.Minute)
	defer ty.Close()

	require.NoError(t, ty.Start("c1", "alice"))
	require.NoError(t, ty.Stop("c1", "alice"))
	assert.Nil(t, typingSet(db, "c1"))

	// stopping when not typing is harmless
	require.NoError(t, ty.Stop("c1", "alice"))
}

func TestTypingListenFiltersSelf(t *testing.T) {
	db := rtdb.New()
	ty := newTestTyping(db, time.Minute)
	defer ty.Close()

	var mu sync.Mutex
	var last []string
	dispose, err := ty.Listen("c1", "alice", func(uids []string) {
		mu.Lock()
		last = uids
		mu.Unlock()
	})
	require.NoError(t, err)
	defer dispose()

	require.NoError(t, ty.Start("c1", "alice"))
	mu.Lock()
	assert.Empty(t, last, "own marker is filtered out")
	mu.Unlock()

	require.NoError(t, ty.Start("c1", "carol"))
	require.NoError(t, ty.Start("c1", "bob"))
	mu.Lock()
	assert.Equal(t, []string{"bob", "carol"}, last, "sorted, self excluded")
	mu.Unlock()
}

func TestTypingConversationsAreIndependent(t *testing.T) {
	db := rtdb.New()
	ty := newTestTyping(db, time.Minute)
	defer ty.Close()

	require.NoError(t, ty.Start("c1", "alice"))
	require.NoError(t, ty.Start("c2", "alice"))
	require.NoError(t, ty.Stop("c1", "alice"))

	assert.Nil(t, typingSet(db, "c1"))
	assert.Contains(t, typingSet(db, "c2"), "alice")
}

func TestTypingCloseCancelsTimers(t *testing.T) {
	db := rtdb.New()
	ty := newTestTyping(db, 30*time.Millisecond)

	require.NoError(t, ty.Start("c1", "alice"))
	ty.Close()

	time.Sleep(80 * time.Millisecond)
	// the expiry timer was cancelled with the instance; the marker stays
	// until some other writer clears it
	assert.Contains(t, typingSet(db, "c1"), "alice")
}
