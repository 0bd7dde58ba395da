package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter-server/models"
	"banter-server/rtdb"
)

func statusOf(t *testing.T, db *rtdb.Store, uid string) string {
	t.Helper()
	v, _ := db.Read("status/" + uid + "/state")
	return rtdb.AsString(v)
}

func TestConnectedMarksOnline(t *testing.T) {
	db := rtdb.New()
	p := NewPresence(db)

	sess := db.NewSession()
	require.NoError(t, p.Connected(sess, "alice"))
	assert.Equal(t, "online", statusOf(t, db, "alice"))

	v, _ := db.Read("status/alice/lastChanged")
	assert.Greater(t, rtdb.AsInt64(v), int64(0))
}

func TestUncleanDropGoesOffline(t *testing.T) {
	db := rtdb.New()
	p := NewPresence(db)

	sess := db.NewSession()
	require.NoError(t, p.Connected(sess, "alice"))

	// crash path: the session closes without a sign-off
	sess.Close()
	assert.Equal(t, "offline", statusOf(t, db, "alice"))

	v, ok := db.Read("lastSeen/alice")
	require.True(t, ok)
	assert.Greater(t, rtdb.AsInt64(v), int64(0))
}

func TestSignOffIsCleanAndFinal(t *testing.T) {
	db := rtdb.New()
	p := NewPresence(db)

	sess := db.NewSession()
	require.NoError(t, p.Connected(sess, "alice"))
	require.NoError(t, p.SignOff(sess, "alice"))
	assert.Equal(t, "offline", statusOf(t, db, "alice"))

	seen, _ := db.Read("lastSeen/alice")

	// the deferred writes were disarmed; close must not overwrite the
	// sign-off stamps
	sess.Close()
	seenAfter, _ := db.Read("lastSeen/alice")
	assert.Equal(t, rtdb.AsInt64(seen), rtdb.AsInt64(seenAfter))
}

func TestReconnectRearms(t *testing.T) {
	db := rtdb.New()
	p := NewPresence(db)

	sess1 := db.NewSession()
	require.NoError(t, p.Connected(sess1, "alice"))
	sess1.Close()
	assert.Equal(t, "offline", statusOf(t, db, "alice"))

	sess2 := db.NewSession()
	require.NoError(t, p.Connected(sess2, "alice"))
	assert.Equal(t, "online", statusOf(t, db, "alice"))

	sess2.Close()
	assert.Equal(t, "offline", statusOf(t, db, "alice"))
}

func TestSecondDeviceKeepsUserOnline(t *testing.T) {
	db := rtdb.New()
	p := NewPresence(db)

	sess1 := db.NewSession()
	sess2 := db.NewSession()
	require.NoError(t, p.Connected(sess1, "alice"))
	require.NoError(t, p.Connected(sess2, "alice"))

	// first device drops while the second stays; its deferred writes are
	// disarmed so the user stays online
	p.SignOffOther(sess1, "alice")
	sess1.Close()
	assert.Equal(t, "online", statusOf(t, db, "alice"))

	sess2.Close()
	assert.Equal(t, "offline", statusOf(t, db, "alice"))
}

func TestListenCoalescesStatusAndLastSeen(t *testing.T) {
	db := rtdb.New()
	p := NewPresence(db)

	var mu sync.Mutex
	var last models.Presence
	dispose := p.Listen("alice", func(pr models.Presence) {
		mu.Lock()
		last = pr
		mu.Unlock()
	})
	defer dispose()

	mu.Lock()
	assert.Equal(t, "offline", last.State, "absent status reads as offline")
	mu.Unlock()

	sess := db.NewSession()
	require.NoError(t, p.Connected(sess, "alice"))
	mu.Lock()
	assert.Equal(t, "online", last.State)
	mu.Unlock()

	sess.Close()
	mu.Lock()
	assert.Equal(t, "offline", last.State)
	assert.Greater(t, last.LastSeen, int64(0))
	assert.Greater(t, last.LastChanged, int64(0))
	mu.Unlock()
}

func TestFormatLastSeen(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{45 * time.Second, "just now"},
		{75 * time.Second, "1 minute ago"},
		{125 * time.Second, "2 minutes ago"},
		{59 * time.Minute, "59 minutes ago"},
		{90 * time.Minute, "1 hour ago"},
		{7300 * time.Second, "2 hours ago"},
		{23 * time.Hour, "23 hours ago"},
		{24 * time.Hour, "yesterday"},
		{30 * time.Hour, "yesterday"},
		{200000 * time.Second, "Mar 8, 2026"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatLastSeen(now.Add(-c.ago), now), "ago=%v", c.ago)
	}
}
