// Package chat holds the conversation engine: message sending and live
// message windows, the per-user conversation list aggregator, presence
// tracking and typing indicators, all speaking to the rtdb tree.
//
// Tree layout:
//
//	contacts/{uid}/{contactUid}            = true
//	userChats/{uid}/{convID}               = {type, lastMessageTimestamp, unreadCount}
//	userGroups/{uid}/{groupID}             = true
//	groups/{groupID}                       = {name, iconUrl, createdBy, roster, channels}
//	messages/{dmID}/{messageID}            = message
//	groupMessages/{groupID}/{chID}/{msgID} = message
//	status/{uid}                           = {state, lastChanged}
//	lastSeen/{uid}                         = unix millis
//	typing/{convID}/{uid}                  = true
package chat

import "banter-server/models"

// DMID derives the deterministic direct-message conversation id: the
// lexicographically smaller uid first, so both participants converge on
// the same id without coordination.
func DMID(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}

// DMPeer returns the other participant of a DM conversation id, or ""
// when uid is not a participant.
func DMPeer(convID, uid string) string {
	for i := 0; i < len(convID); i++ {
		if convID[i] != '_' {
			continue
		}
		a, b := convID[:i], convID[i+1:]
		switch uid {
		case a:
			return b
		case b:
			return a
		}
	}
	return ""
}

func contactsPath(uid string) string { return "contacts/" + uid }

func contactEdgePath(uid, other string) string { return "contacts/" + uid + "/" + other }

func userChatsPath(uid string) string { return "userChats/" + uid }

func chatEntryPath(uid, convID string) string { return "userChats/" + uid + "/" + convID }

func userGroupsPath(uid string) string { return "userGroups/" + uid }

func userGroupPath(uid, groupID string) string { return "userGroups/" + uid + "/" + groupID }

func groupPath(groupID string) string { return "groups/" + groupID }

func statusPath(uid string) string { return "status/" + uid }

func lastSeenPath(uid string) string { return "lastSeen/" + uid }

func typingPath(convID string) string { return "typing/" + convID }

func typingMarkPath(convID, uid string) string { return "typing/" + convID + "/" + uid }

// logPath locates a conversation's message log. Group logs are keyed by
// channel; an empty channelID means the general channel.
func logPath(convID string, typ models.ConversationType, channelID string) string {
	if typ == models.ConversationGroup {
		if channelID == "" {
			channelID = models.GeneralChannel
		}
		return "groupMessages/" + convID + "/" + channelID
	}
	return "messages/" + convID
}

func messagePath(convID string, typ models.ConversationType, channelID, msgID string) string {
	return logPath(convID, typ, channelID) + "/" + msgID
}
