// Package feed turns raw entity snapshots into renderable ordered lists.
// Every function here is pure: identical inputs produce identical output,
// and nothing in this package touches the store. Session-local state
// (the sticky-unseen overlay) is owned by the caller and passed in.
package feed

import (
	"sort"
	"time"

	"chatcache/pkg/models"
)

// Payload is one sortable, renderable feed entry.
type Payload struct {
	ID             string              `json:"id"`
	Kind           models.FeedItemKind `json:"kind"`
	DiscussionID   string              `json:"discussion_id"`
	MessageID      string              `json:"message_id,omitempty"`
	LastActivityTS int64               `json:"last_activity_ts"`
	IsSeen         bool                `json:"is_seen"`
}

// RowKind discriminates rendered rows.
type RowKind string

const (
	RowItem         RowKind = "item"
	RowDaySeparator RowKind = "day"
	RowNewSeparator RowKind = "new"
)

// Row is a feed entry or a separator marker.
type Row struct {
	Kind RowKind  `json:"kind"`
	Item *Payload `json:"item,omitempty"`
	// DayTS is the UTC start of day for day separators (ns).
	DayTS int64 `json:"day_ts,omitempty"`
}

// ToSortedFeedItems filters items by the query's scope, sorts by
// last-activity timestamp descending (ties broken by id for determinism)
// and computes each item's IsSeen flag against the viewer's read markers.
// The discussions map supplies the per-item scope fields; items whose
// discussion is not yet loaded pass the "all" scope and the visible
// (non-hidden) filter.
func ToSortedFeedItems(viewerID string, q models.MainFeedQuery, items []models.FeedItem, discussions map[string]models.Discussion, readMarkers map[string]int64) []Payload {
	out := make([]Payload, 0, len(items))
	for _, fi := range items {
		d, known := discussions[fi.DiscussionID]
		if !inScope(viewerID, q, fi, d, known) {
			continue
		}
		out = append(out, Payload{
			ID:             fi.ID,
			Kind:           fi.Kind,
			DiscussionID:   fi.DiscussionID,
			MessageID:      fi.MessageID,
			LastActivityTS: fi.LastActivityTS,
			IsSeen:         readMarkers[fi.DiscussionID] >= fi.LastActivityTS,
		})
	}
	sortPayloads(out)
	return out
}

// ToSortedActiveFeedItems is the discussion-centric variant: it composes
// over stored discussion responses instead of full feed items, with the
// same scope, ordering and seen semantics.
func ToSortedActiveFeedItems(viewerID string, q models.MainFeedQuery, responses []models.DiscussionResponse, discussions map[string]models.Discussion, readMarkers map[string]int64) []Payload {
	out := make([]Payload, 0, len(responses))
	for _, dr := range responses {
		d, known := discussions[dr.ID]
		fi := models.FeedItem{ID: dr.ID, Kind: models.FeedItemDiscussion, DiscussionID: dr.ID, LastActivityTS: dr.LastActivityTS}
		if !inScope(viewerID, q, fi, d, known) {
			continue
		}
		out = append(out, Payload{
			ID:             dr.ID,
			Kind:           models.FeedItemDiscussion,
			DiscussionID:   dr.ID,
			LastActivityTS: dr.LastActivityTS,
			IsSeen:         readMarkers[dr.ID] >= dr.LastActivityTS,
		})
	}
	sortPayloads(out)
	return out
}

func inScope(viewerID string, q models.MainFeedQuery, fi models.FeedItem, d models.Discussion, known bool) bool {
	// hidden-vs-visible: an unknown discussion cannot have been archived
	hidden := known && d.ArchivedBy(viewerID)
	if hidden != q.Hidden {
		return false
	}
	switch q.Scope {
	case models.ScopeAll, "":
		return true
	case models.ScopeGroup:
		return known && d.GroupID == q.GroupID
	case models.ScopeContact:
		// DM linkage: the contact created the discussion. Discussions the
		// viewer created carry no counterpart reference, so they surface
		// only in the "all" scope.
		return known && q.ContactID != "" && d.CreatedBy == q.ContactID
	case models.ScopeLocation:
		return known && d.LocationID == q.LocationID
	default:
		return false
	}
}

func sortPayloads(ps []Payload) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].LastActivityTS != ps[j].LastActivityTS {
			return ps[i].LastActivityTS > ps[j].LastActivityTS
		}
		return ps[i].ID < ps[j].ID
	})
}

// ToFullFeed takes a sorted payload list and inserts separator markers:
// a day separator at every UTC-day boundary and a single new-items
// separator at the first unseen-to-seen transition. It is a deterministic
// function of its input; sticky-unseen behavior comes from the caller
// applying an UnseenOverlay to the payloads first.
func ToFullFeed(items []Payload) []Row {
	if len(items) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(items)+4)
	var lastDay int64 = -1
	newMarked := false
	prevUnseen := false
	for i, p := range items {
		if i > 0 && prevUnseen && p.IsSeen && !newMarked {
			rows = append(rows, Row{Kind: RowNewSeparator})
			newMarked = true
		}
		if day := dayStart(p.LastActivityTS); day != lastDay {
			rows = append(rows, Row{Kind: RowDaySeparator, DayTS: day})
			lastDay = day
		}
		p := p
		rows = append(rows, Row{Kind: RowItem, Item: &p})
		prevUnseen = !p.IsSeen
	}
	return rows
}

func dayStart(ts int64) int64 {
	t := time.Unix(0, ts).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.UnixNano()
}

// UnseenOverlay is the session-local side table implementing the sticky
// unseen rule: once an item has been shown unseen in this session it
// keeps rendering unseen on recomputation, even if a read-marker update
// would otherwise flip it. The overlay is caller-owned state, passed in
// explicitly; the composer stays pure.
type UnseenOverlay struct {
	ever map[string]bool
}

// NewUnseenOverlay returns an empty overlay for a fresh session.
func NewUnseenOverlay() *UnseenOverlay {
	return &UnseenOverlay{ever: make(map[string]bool)}
}

// Observe records every payload currently rendering unseen.
func (o *UnseenOverlay) Observe(items []Payload) {
	for _, p := range items {
		if !p.IsSeen {
			o.ever[p.ID] = true
		}
	}
}

// Apply returns a copy of items with every ever-unseen id pinned unseen.
func (o *UnseenOverlay) Apply(items []Payload) []Payload {
	out := make([]Payload, len(items))
	copy(out, items)
	for i := range out {
		if o.ever[out[i].ID] {
			out[i].IsSeen = false
		}
	}
	return out
}

// Len reports how many ids the overlay has pinned.
func (o *UnseenOverlay) Len() int { return len(o.ever) }
