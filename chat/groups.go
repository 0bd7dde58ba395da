package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"banter-server/models"
	"banter-server/rtdb"
)

var (
	ErrGroupNotFound    = errors.New("group not found")
	ErrNotMember        = errors.New("not a member of this group")
	ErrForbidden        = errors.New("requires admin or creator role")
	ErrInvalidRole      = errors.New("invalid role")
	ErrProtectedChannel = errors.New("the general channel cannot be deleted")
	ErrCreatorLeave     = errors.New("creator cannot leave while the group has other members")
	ErrEmptyGroupName   = errors.New("group name is required")
	ErrEmptyChannelName = errors.New("channel name is required")
)

// Groups manages group rosters, channels and the membership records
// that feed each member's conversation list.
type Groups struct {
	db *rtdb.Store
}

func NewGroups(db *rtdb.Store) *Groups {
	return &Groups{db: db}
}

// Create makes a group with the creator role assigned, the given uids
// as plain members, and the undeletable general channel. Every member
// gets a membership record and a seeded conversation-list entry.
func (g *Groups) Create(creator, name, iconURL string, members []string) (*models.Group, error) {
	if name == "" {
		return nil, ErrEmptyGroupName
	}
	group := models.Group{
		ID:        uuid.New().String(),
		Name:      name,
		IconURL:   iconURL,
		CreatedBy: creator,
		CreatedAt: time.Now().UTC(),
		Roster:    map[string]models.Role{creator: models.RoleCreator},
		Channels: map[string]models.Channel{
			models.GeneralChannel: {ID: models.GeneralChannel, Name: models.GeneralChannel},
		},
	}
	for _, uid := range members {
		if uid != creator {
			group.Roster[uid] = models.RoleMember
		}
	}
	if err := g.db.Write(groupPath(group.ID), encodeGroup(group)); err != nil {
		return nil, err
	}
	for uid := range group.Roster {
		if err := g.enroll(uid, group.ID); err != nil {
			return nil, err
		}
	}
	return &group, nil
}

func (g *Groups) enroll(uid, groupID string) error {
	if err := g.db.Write(userGroupPath(uid, groupID), true); err != nil {
		return err
	}
	return g.db.Merge(chatEntryPath(uid, groupID), map[string]rtdb.Value{
		"type": string(models.ConversationGroup),
	})
}

func (g *Groups) unenroll(uid, groupID string) error {
	if err := g.db.Delete(userGroupPath(uid, groupID)); err != nil {
		return err
	}
	return g.db.Delete(chatEntryPath(uid, groupID))
}

func (g *Groups) Get(groupID string) (*models.Group, error) {
	m := rtdb.AsMap(readAt(g.db, groupPath(groupID)))
	if m == nil {
		return nil, ErrGroupNotFound
	}
	group := decodeGroup(groupID, m)
	return &group, nil
}

func (g *Groups) role(groupID, uid string) (models.Role, error) {
	group, err := g.Get(groupID)
	if err != nil {
		return "", err
	}
	role, ok := group.Roster[uid]
	if !ok {
		return "", ErrNotMember
	}
	return role, nil
}

// AddMember enrolls uid as a plain member. Actor must hold a managing
// role. Re-adding an existing member is a no-op.
func (g *Groups) AddMember(groupID, actor, uid string) error {
	actorRole, err := g.role(groupID, actor)
	if err != nil {
		return err
	}
	if !actorRole.CanManage() {
		return ErrForbidden
	}
	if _, err := g.role(groupID, uid); err == nil {
		return nil
	}
	if err := g.db.Write(groupPath(groupID)+"/roster/"+uid, string(models.RoleMember)); err != nil {
		return err
	}
	return g.enroll(uid, groupID)
}

// RemoveMember kicks uid. The creator cannot be removed.
func (g *Groups) RemoveMember(groupID, actor, uid string) error {
	actorRole, err := g.role(groupID, actor)
	if err != nil {
		return err
	}
	if !actorRole.CanManage() {
		return ErrForbidden
	}
	targetRole, err := g.role(groupID, uid)
	if err != nil {
		return err
	}
	if targetRole == models.RoleCreator {
		return ErrForbidden
	}
	if err := g.db.Delete(groupPath(groupID) + "/roster/" + uid); err != nil {
		return err
	}
	return g.unenroll(uid, groupID)
}

// SetRole promotes or demotes uid between admin and member. The creator
// role is fixed at creation and cannot be granted or revoked.
func (g *Groups) SetRole(groupID, actor, uid string, role models.Role) error {
	if !role.Valid() || role == models.RoleCreator {
		return ErrInvalidRole
	}
	actorRole, err := g.role(groupID, actor)
	if err != nil {
		return err
	}
	if !actorRole.CanManage() {
		return ErrForbidden
	}
	targetRole, err := g.role(groupID, uid)
	if err != nil {
		return err
	}
	if targetRole == models.RoleCreator {
		return ErrInvalidRole
	}
	return g.db.Write(groupPath(groupID)+"/roster/"+uid, string(role))
}

// Leave removes the caller. The creator may only leave an otherwise
// empty group, which deletes the group and its message logs outright.
func (g *Groups) Leave(groupID, uid string) error {
	group, err := g.Get(groupID)
	if err != nil {
		return err
	}
	role, ok := group.Roster[uid]
	if !ok {
		return ErrNotMember
	}
	if role == models.RoleCreator {
		if len(group.Roster) > 1 {
			return ErrCreatorLeave
		}
		if err := g.db.Delete(groupPath(groupID)); err != nil {
			return err
		}
		if err := g.db.Delete("groupMessages/" + groupID); err != nil {
			return err
		}
		return g.unenroll(uid, groupID)
	}
	if err := g.db.Delete(groupPath(groupID) + "/roster/" + uid); err != nil {
		return err
	}
	return g.unenroll(uid, groupID)
}

// CreateChannel adds a named message log to the group.
func (g *Groups) CreateChannel(groupID, actor, name string) (*models.Channel, error) {
	if name == "" {
		return nil, ErrEmptyChannelName
	}
	actorRole, err := g.role(groupID, actor)
	if err != nil {
		return nil, err
	}
	if !actorRole.CanManage() {
		return nil, ErrForbidden
	}
	ch := models.Channel{ID: uuid.New().String(), Name: name}
	err = g.db.Write(groupPath(groupID)+"/channels/"+ch.ID, map[string]any{"name": ch.Name})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// DeleteChannel removes a channel and its log. general is protected.
func (g *Groups) DeleteChannel(groupID, actor, channelID string) error {
	if channelID == models.GeneralChannel {
		return ErrProtectedChannel
	}
	actorRole, err := g.role(groupID, actor)
	if err != nil {
		return err
	}
	if !actorRole.CanManage() {
		return ErrForbidden
	}
	if err := g.db.Delete(groupPath(groupID) + "/channels/" + channelID); err != nil {
		return err
	}
	return g.db.Delete("groupMessages/" + groupID + "/" + channelID)
}

func encodeGroup(g models.Group) map[string]any {
	roster := make(map[string]any, len(g.Roster))
	for uid, role := range g.Roster {
		roster[uid] = string(role)
	}
	channels := make(map[string]any, len(g.Channels))
	for id, ch := range g.Channels {
		channels[id] = map[string]any{"name": ch.Name}
	}
	out := map[string]any{
		"name":      g.Name,
		"createdBy": g.CreatedBy,
		"createdAt": g.CreatedAt.UnixMilli(),
		"roster":    roster,
		"channels":  channels,
	}
	if g.IconURL != "" {
		out["iconUrl"] = g.IconURL
	}
	return out
}

func decodeGroup(id string, m map[string]any) models.Group {
	g := models.Group{
		ID:        id,
		Name:      rtdb.AsString(m["name"]),
		IconURL:   rtdb.AsString(m["iconUrl"]),
		CreatedBy: rtdb.AsString(m["createdBy"]),
		CreatedAt: time.UnixMilli(rtdb.AsInt64(m["createdAt"])).UTC(),
		Roster:    make(map[string]models.Role),
		Channels:  make(map[string]models.Channel),
	}
	for uid, v := range rtdb.AsMap(m["roster"]) {
		g.Roster[uid] = models.Role(rtdb.AsString(v))
	}
	for chID, v := range rtdb.AsMap(m["channels"]) {
		g.Channels[chID] = models.Channel{ID: chID, Name: rtdb.AsString(rtdb.AsMap(v)["name"])}
	}
	return g
}
