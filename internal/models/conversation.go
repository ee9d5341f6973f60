package models

import (
	"sort"

	"github.com/google/uuid"
)

// UnknownUserName is shown for partners without a profile row.
const UnknownUserName = "Unknown User"

// BuildConversations groups msgs (any order) by partner of me. Each conversation carries the
// newest message and the count of unread messages received by me. Result is newest first.
func BuildConversations(me uuid.UUID, msgs []Message, profiles map[uuid.UUID]ProfileSummary) []Conversation {
	byPartner := make(map[uuid.UUID]*Conversation)
	for _, m := range msgs {
		partner := m.SenderID
		if m.SenderID == me {
			partner = m.ReceiverID
		}

		c, ok := byPartner[partner]
		if !ok {
			c = &Conversation{UserID: partner, UserName: UnknownUserName}
			if p, found := profiles[partner]; found {
				c.UserName = p.Name
				c.UserPhoto = p.ProfilePhoto
			}
			byPartner[partner] = c
		}
		if c.LastMessageTime.IsZero() || m.CreatedAt.After(c.LastMessageTime) {
			c.LastMessage = m.Content
			c.LastMessageTime = m.CreatedAt
		}
		if m.ReceiverID == me && !m.IsRead {
			c.UnreadCount++
		}
	}

	out := make([]Conversation, 0, len(byPartner))
	for _, c := range byPartner {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}
