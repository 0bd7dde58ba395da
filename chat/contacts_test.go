package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banter-server/rtdb"
)

func TestValidTag(t *testing.T) {
	assert.True(t, ValidTag("0000"))
	assert.True(t, ValidTag("9481"))
	assert.False(t, ValidTag("948"))
	assert.False(t, ValidTag("94812"))
	assert.False(t, ValidTag("94a1"))
	assert.False(t, ValidTag(""))
}

func TestAddContactSeedsDMEntry(t *testing.T) {
	db := rtdb.New()
	c := NewContacts(db, newFakeDir(alice(), bob()))

	prof, err := c.Add("alice", "bob", "0002")
	require.NoError(t, err)
	assert.Equal(t, "bob", prof.ID)

	v, ok := db.Read("contacts/alice/bob")
	require.True(t, ok)
	assert.Equal(t, true, v)

	// the DM shows up in alice's list before any message exists
	entry, ok := db.Read("userChats/alice/" + DMID("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, "dm", rtdb.AsString(rtdb.AsMap(entry)["type"]))

	// directed edge: bob's side is untouched
	_, ok = db.Read("contacts/bob/alice")
	assert.False(t, ok)
	_, ok = db.Read("userChats/bob")
	assert.False(t, ok)
}

func TestAddContactValidation(t *testing.T) {
	db := rtdb.New()
	c := NewContacts(db, newFakeDir(alice(), bob()))

	_, err := c.Add("alice", "bob", "12")
	assert.ErrorIs(t, err, ErrInvalidTag)

	_, err = c.Add("alice", "nobody", "1234")
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = c.Add("alice", "bob", "9999")
	assert.ErrorIs(t, err, ErrUnknownUser, "right name, wrong tag")

	_, err = c.Add("alice", "alice", "0001")
	assert.ErrorIs(t, err, ErrSelfContact)

	// nothing was written on any failed attempt
	_, ok := db.Read("contacts/alice")
	assert.False(t, ok)
}

func TestRemoveContactKeepsOtherSide(t *testing.T) {
	db := rtdb.New()
	c := NewContacts(db, newFakeDir(alice(), bob()))

	_, err := c.Add("alice", "bob", "0002")
	require.NoError(t, err)
	_, err = c.Add("bob", "alice", "0001")
	require.NoError(t, err)

	require.NoError(t, c.Remove("alice", "bob"))
	_, ok := db.Read("contacts/alice/bob")
	assert.False(t, ok)
	_, ok = db.Read("contacts/bob/alice")
	assert.True(t, ok)
}

func TestListSortedAndSkipsUnresolved(t *testing.T) {
	db := rtdb.New()
	dir := newFakeDir(alice(), bob(), carol())
	c := NewContacts(db, dir)

	_, err := c.Add("alice", "carol", "0003")
	require.NoError(t, err)
	_, err = c.Add("alice", "bob", "0002")
	require.NoError(t, err)
	// a contact whose account later disappeared
	require.NoError(t, db.Write("contacts/alice/ghost", true))

	list, err := c.List("alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].Username)
	assert.Equal(t, "carol", list[1].Username)
}
