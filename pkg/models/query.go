package models

// FeedType selects which feed surface a query targets.
type FeedType string

const (
	FeedMain   FeedType = "main"
	FeedActive FeedType = "active"
)

// FeedScope narrows a feed query to a slice of the viewer's world.
type FeedScope string

const (
	ScopeAll      FeedScope = "all"
	ScopeGroup    FeedScope = "group"
	ScopeContact  FeedScope = "contact"
	ScopeLocation FeedScope = "location"
)

// MainFeedQuery is the value object feed fetches and compositions are
// keyed by. It is comparable so it can index pagination state.
type MainFeedQuery struct {
	FeedType   FeedType  `json:"feed_type"`
	Scope      FeedScope `json:"type"`
	GroupID    string    `json:"group_id,omitempty"`
	ContactID  string    `json:"contact_id,omitempty"`
	LocationID string    `json:"location_id,omitempty"`

	// Hidden selects archived (hidden) items instead of visible ones.
	Hidden bool `json:"hidden,omitempty"`
}
