package models

import "chatcache/pkg/clock"

// Revision is one entry in a message's append-only edit history. The
// first revision is the original text; len(Edits) > 1 signals the message
// has been edited.
type Revision struct {
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// MediaItem is an attachment reference carried by a message.
type MediaItem struct {
	URL    string `json:"url"`
	Kind   string `json:"kind,omitempty"` // image | video | audio | file
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// LinkPreview is an unfurled link carried by a message.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Message is a single post in a discussion.
type Message struct {
	ID         string `json:"id"`
	Discussion string `json:"discussion_id"`
	Author     string `json:"user_id"`
	Text       string `json:"text,omitempty"`
	CreatedTS  int64  `json:"created_at"`

	// Edits is append-only; revisions are ordered oldest first.
	Edits []Revision `json:"edits,omitempty"`

	// Reactions maps user id -> reaction symbol -> apply timestamp (ns).
	// Per-user-per-symbol the entry is an idempotent set member, not a
	// counter: re-applying the same reaction by the same user is a no-op.
	Reactions map[string]map[string]int64 `json:"reactions,omitempty"`

	Media        []MediaItem   `json:"media,omitempty"`
	LinkPreviews []LinkPreview `json:"link_previews,omitempty"`

	// ReplyTo is the id of the message this one replies to, if any.
	ReplyTo string `json:"reply_to,omitempty"`

	// PostedAsDiscussions lists discussions continued from this message.
	PostedAsDiscussions []string `json:"posted_as_discussion,omitempty"`

	// FlaggedUIDs is the set of user ids who reported this message.
	FlaggedUIDs map[string]bool `json:"flagged_uids,omitempty"`

	Clock clock.Clock `json:"clock"`
}

func (m Message) EntityClock() clock.Clock { return m.Clock }

// Edited reports whether the message carries more than its original
// revision.
func (m Message) Edited() bool { return len(m.Edits) > 1 }

// WithReaction returns a copy of m with the reaction applied. Applying a
// reaction the user already holds returns m unchanged.
func (m Message) WithReaction(userID, symbol string, ts int64) Message {
	if _, ok := m.Reactions[userID][symbol]; ok {
		return m
	}
	reactions := make(map[string]map[string]int64, len(m.Reactions)+1)
	for uid, syms := range m.Reactions {
		cp := make(map[string]int64, len(syms))
		for s, v := range syms {
			cp[s] = v
		}
		reactions[uid] = cp
	}
	if reactions[userID] == nil {
		reactions[userID] = make(map[string]int64, 1)
	}
	reactions[userID][symbol] = ts
	m.Reactions = reactions
	return m
}
