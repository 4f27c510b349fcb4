package models

import "chatcache/pkg/clock"

// FeedItemKind discriminates what a feed item points at.
type FeedItemKind string

const (
	FeedItemDiscussion FeedItemKind = "discussion"
	FeedItemMessage    FeedItemKind = "message"
)

// FeedItem is a read-optimized projection referencing a discussion or a
// message-in-discussion. It carries enough denormalized data to be sorted
// without touching the full entity. Feed items are rebuilt from messages
// and discussions, never hand-edited.
type FeedItem struct {
	ID             string       `json:"id"`
	Kind           FeedItemKind `json:"kind"`
	DiscussionID   string       `json:"discussion_id"`
	MessageID      string       `json:"message_id,omitempty"`
	LastActivityTS int64        `json:"last_activity_ts"`
	Clock          clock.Clock  `json:"clock"`
}

func (f FeedItem) EntityClock() clock.Clock { return f.Clock }

// DiscussionResponse is the stored projection of a hydrated discussion:
// the discussion id plus the message ids that arrived with it and the
// activity timestamp used by the active-feed view.
type DiscussionResponse struct {
	ID             string      `json:"id"` // discussion id
	MessageIDs     []string    `json:"message_ids,omitempty"`
	LastActivityTS int64       `json:"last_activity_ts"`
	Clock          clock.Clock `json:"clock"`
}

func (r DiscussionResponse) EntityClock() clock.Clock { return r.Clock }
