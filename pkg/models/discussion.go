package models

import "chatcache/pkg/clock"

// MemberMode controls who may join a discussion.
type MemberMode string

const (
	MemberModeContacts MemberMode = "contacts"
	MemberModeFriends  MemberMode = "friends_of_friends"
)

// DiscussionRef is a back-reference to the message a discussion was
// continued from. Chains of these form a continuation forest; the shape
// is not structurally enforced acyclic.
type DiscussionRef struct {
	DiscussionID string `json:"discussion_id"`
	MessageID    string `json:"message_id"`
}

// Discussion is a conversation thread. Per-user hide/mute is modeled as
// membership in ArchivedUIDs rather than deletion, so concurrent writes
// stay resolvable.
type Discussion struct {
	ID        string `json:"id"`
	CreatedBy string `json:"created_by"`
	GroupID   string `json:"group_id,omitempty"`

	// ArchivedUIDs is the set of user ids who have hidden this
	// discussion. Never a global delete.
	ArchivedUIDs map[string]bool `json:"archived_uids,omitempty"`

	// OpenUntil marks an open (non-DM) discussion and its closing time
	// (ns); zero means a plain DM.
	OpenUntil int64 `json:"open_until,omitempty"`

	// OriginallyFrom links this discussion back to the message it was
	// continued from.
	OriginallyFrom *DiscussionRef `json:"originally_from,omitempty"`

	Location   string     `json:"location,omitempty"`
	LocationID string     `json:"location_id,omitempty"`
	MemberMode MemberMode `json:"member_mode,omitempty"`

	Clock clock.Clock `json:"clock"`
}

func (d Discussion) EntityClock() clock.Clock { return d.Clock }

// ArchivedBy reports whether the given viewer has hidden this discussion.
func (d Discussion) ArchivedBy(userID string) bool { return d.ArchivedUIDs[userID] }
