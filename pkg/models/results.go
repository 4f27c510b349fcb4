package models

import (
	"encoding/json"
	"fmt"
)

// DiscussionFetch is the discriminated result of a discussion fetch.
// Exactly two shapes exist and the transaction boundary matches them
// exhaustively.
type DiscussionFetch interface {
	isDiscussionFetch()
}

// DiscussionCurrent means the caller's cached copy is already current;
// applying it is a no-op.
type DiscussionCurrent struct{}

func (DiscussionCurrent) isDiscussionFetch() {}

// DiscussionPayload is the full hydration payload: the discussion, its
// messages, every referenced user, and the owning group when present.
// Applied as one transaction so subscribers never observe a discussion
// whose author is not yet resolvable.
type DiscussionPayload struct {
	Discussion Discussion `json:"discussion"`
	Messages   []Message  `json:"messages,omitempty"`
	Users      []User     `json:"users,omitempty"`
	Group      *Group     `json:"group,omitempty"`
}

func (DiscussionPayload) isDiscussionFetch() {}

// DecodeDiscussionFetch parses the wire shape {current: bool, ...} into
// the tagged union.
func DecodeDiscussionFetch(data []byte) (DiscussionFetch, error) {
	var probe struct {
		Current bool `json:"current"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid discussion fetch body: %w", err)
	}
	if probe.Current {
		return DiscussionCurrent{}, nil
	}
	var p DiscussionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid discussion payload: %w", err)
	}
	if p.Discussion.ID == "" {
		return nil, fmt.Errorf("discussion payload missing discussion id")
	}
	return p, nil
}

// Migration carries optional account-migration data on a me response.
// The cache stores it opaquely for the UI layer.
type Migration struct {
	FromUserID string `json:"from_user_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// MeResult is the response describing the authenticated user.
type MeResult struct {
	User            User             `json:"user"`
	Contacts        []User           `json:"contacts,omitempty"`
	ContactRequests []ContactRequest `json:"contact_requests,omitempty"`
	Migration       *Migration       `json:"migration,omitempty"`
}

// InviteLinkResponse resolves an invite code to the entities needed to
// render the invite: the inviter and the target discussion or group.
type InviteLinkResponse struct {
	Code       string      `json:"code"`
	Inviter    User        `json:"inviter"`
	Discussion *Discussion `json:"discussion,omitempty"`
	Group      *Group      `json:"group,omitempty"`
}

// FeedPage is one page of a paginated feed-query response.
type FeedPage struct {
	Query  MainFeedQuery `json:"query"`
	Items  []FeedItem    `json:"items"`
	Cursor string        `json:"cursor,omitempty"`
	Done   bool          `json:"done,omitempty"`
}
