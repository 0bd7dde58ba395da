package chat

import (
	"errors"
	"sort"

	"banter-server/models"
	"banter-server/rtdb"
)

var (
	ErrInvalidTag  = errors.New("tag must be exactly 4 digits")
	ErrUnknownUser = errors.New("no user with that username and tag")
	ErrSelfContact = errors.New("cannot add yourself as a contact")
)

// Contacts manages the directed contact edges and the per-user DM list
// entries they seed.
type Contacts struct {
	db  *rtdb.Store
	dir Directory
}

func NewContacts(db *rtdb.Store, dir Directory) *Contacts {
	return &Contacts{db: db, dir: dir}
}

// ValidTag reports whether tag is a well-formed 4-digit disambiguator.
func ValidTag(tag string) bool {
	if len(tag) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if tag[i] < '0' || tag[i] > '9' {
			return false
		}
	}
	return true
}

// Add looks up username#tag and records the edge for owner. The edge is
// directed: the other side keeps their own list. Adding also seeds the
// owner's DM conversation-list entry so the conversation shows up
// before any message is sent. Validation happens before any remote
// write.
func (c *Contacts) Add(owner, username, tag string) (*models.UserResponse, error) {
	if !ValidTag(tag) {
		return nil, ErrInvalidTag
	}
	prof, err := c.dir.ProfileByHandle(username, tag)
	if err != nil || prof == nil {
		return nil, ErrUnknownUser
	}
	if prof.ID == owner {
		return nil, ErrSelfContact
	}
	if err := c.db.Write(contactEdgePath(owner, prof.ID), true); err != nil {
		return nil, err
	}
	if err := c.db.Merge(chatEntryPath(owner, DMID(owner, prof.ID)), map[string]rtdb.Value{
		"type": string(models.ConversationDM),
	}); err != nil {
		return nil, err
	}
	return prof, nil
}

// Remove deletes owner's edge only; the other side is unaffected.
func (c *Contacts) Remove(owner, contactUID string) error {
	return c.db.Delete(contactEdgePath(owner, contactUID))
}

// List resolves owner's contact set against the directory. Uids that no
// longer resolve are skipped.
func (c *Contacts) List(owner string) ([]models.UserResponse, error) {
	edges := rtdb.AsMap(readAt(c.db, contactsPath(owner)))
	out := make([]models.UserResponse, 0, len(edges))
	for uid := range edges {
		prof, err := c.dir.Profile(uid)
		if err != nil || prof == nil {
			continue
		}
		out = append(out, *prof)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Hide removes uid's own conversation-list entry. The underlying DM or
// group and the other participants' entries are untouched.
func (c *Contacts) Hide(uid, convID string) error {
	return c.db.Delete(chatEntryPath(uid, convID))
}
