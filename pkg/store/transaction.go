package store

import (
	"chatcache/pkg/clock"
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/validation"
)

// Tx is the handle through which all entity writes happen. Every write is
// merged against the stored value by clock comparison; writes with a
// lower-or-equal clock are discarded. Listener notifications for every
// affected key and collection are deferred until the whole batch commits,
// so a subscriber never observes a partially applied batch.
//
// Malformed writes (failing validation) are skipped while the rest of the
// batch commits. The merge rule already treats unparseable clocks as
// always-losing, so partial corruption degrades to a dropped write rather
// than poisoning the batch.
type Tx struct {
	s *Store

	dirtyUsers       map[string]bool
	dirtyMessages    map[string]bool
	dirtyDiscussions map[string]bool
	dirtyGroups      map[string]bool
	dirtyResponses   map[string]bool
	dirtyFeedItems   map[string]bool

	feedDirty     bool
	drDirty       bool
	contactsDirty bool
	markersDirty  bool

	applied   int
	discarded int
	skipped   int
}

// Update runs fn as one transaction. All writes made through the Tx are
// applied before any listener fires; callbacks run after commit, outside
// the store lock, so they may read the store or start a new Update.
// Update must not be called from within fn itself.
func (s *Store) Update(fn func(*Tx)) {
	s.mu.Lock()
	tx := &Tx{
		s:                s,
		dirtyUsers:       make(map[string]bool),
		dirtyMessages:    make(map[string]bool),
		dirtyDiscussions: make(map[string]bool),
		dirtyGroups:      make(map[string]bool),
		dirtyResponses:   make(map[string]bool),
		dirtyFeedItems:   make(map[string]bool),
	}
	fn(tx)
	if s.db != nil {
		if err := s.db.persistTx(s, tx); err != nil {
			// the in-memory cache stays authoritative for the session;
			// a failed persist costs a refetch after restart
			logger.Error("cache_persist_failed", "error", err)
		}
	}
	notes := s.buildNotifications(tx)
	recordTransaction(tx, len(notes))
	observeEntityCounts(s)
	s.mu.Unlock()

	for _, fire := range notes {
		fire()
	}
}

// buildNotifications snapshots committed values and their callbacks while
// the lock is held. For a given key callbacks fire in registration order;
// across keys no order is guaranteed beyond "after commit".
func (s *Store) buildNotifications(tx *Tx) []func() {
	var notes []func()
	for id := range tx.dirtyUsers {
		v := s.users[id]
		for _, fn := range s.userListeners.callbacks(id) {
			fn, v := fn, v
			notes = append(notes, func() { fn(v) })
		}
	}
	for id := range tx.dirtyMessages {
		v := s.messages[id]
		for _, fn := range s.messageListeners.callbacks(id) {
			fn, v := fn, v
			notes = append(notes, func() { fn(v) })
		}
	}
	for id := range tx.dirtyDiscussions {
		v := s.discussions[id]
		for _, fn := range s.discussionListeners.callbacks(id) {
			fn, v := fn, v
			notes = append(notes, func() { fn(v) })
		}
	}
	for id := range tx.dirtyGroups {
		v := s.groups[id]
		for _, fn := range s.groupListeners.callbacks(id) {
			fn, v := fn, v
			notes = append(notes, func() { fn(v) })
		}
	}
	if tx.feedDirty {
		ids := sortedKeys(s.feedItems)
		for _, fn := range s.feedIDListeners.callbacks(collectionKey) {
			fn := fn
			notes = append(notes, func() { fn(ids) })
		}
	}
	if tx.drDirty {
		ids := sortedKeys(s.responses)
		for _, fn := range s.responseIDListeners.callbacks(collectionKey) {
			fn := fn
			notes = append(notes, func() { fn(ids) })
		}
	}
	if tx.contactsDirty {
		ids := sortedKeys(s.contacts)
		for _, fn := range s.contactListeners.callbacks(collectionKey) {
			fn := fn
			notes = append(notes, func() { fn(ids) })
		}
	}
	return notes
}

func (tx *Tx) skip(kind, id string, err error) {
	tx.skipped++
	logger.Warn("tx_write_skipped", "kind", kind, "id", id, "error", err)
}

// AddUser merges a user write into the cache.
func (tx *Tx) AddUser(u models.User) {
	if err := validation.ValidateUser(u); err != nil {
		tx.skip("user", u.ID, err)
		return
	}
	cur, ok := tx.s.users[u.ID]
	if ok && clock.Compare(u.Clock, cur.Clock) != clock.Greater {
		tx.discarded++
		return
	}
	tx.s.users[u.ID] = u
	tx.dirtyUsers[u.ID] = true
	tx.applied++
}

// AddGroup merges a group write into the cache.
func (tx *Tx) AddGroup(g models.Group) {
	if err := validation.ValidateGroup(g); err != nil {
		tx.skip("group", g.ID, err)
		return
	}
	cur, ok := tx.s.groups[g.ID]
	if ok && clock.Compare(g.Clock, cur.Clock) != clock.Greater {
		tx.discarded++
		return
	}
	tx.s.groups[g.ID] = g
	tx.dirtyGroups[g.ID] = true
	tx.applied++
}

// AddDiscussion merges a discussion write into the cache.
func (tx *Tx) AddDiscussion(d models.Discussion) {
	if err := validation.ValidateDiscussion(d); err != nil {
		tx.skip("discussion", d.ID, err)
		return
	}
	cur, ok := tx.s.discussions[d.ID]
	if ok && clock.Compare(d.Clock, cur.Clock) != clock.Greater {
		tx.discarded++
		return
	}
	tx.s.discussions[d.ID] = d
	tx.dirtyDiscussions[d.ID] = true
	tx.applied++
}

// AddMessage merges a message write and refreshes the derived feed item
// and discussion-response projections for its discussion.
func (tx *Tx) AddMessage(m models.Message) {
	if err := validation.ValidateMessage(m); err != nil {
		tx.skip("message", m.ID, err)
		return
	}
	cur, ok := tx.s.messages[m.ID]
	if ok && clock.Compare(m.Clock, cur.Clock) != clock.Greater {
		tx.discarded++
		return
	}
	tx.s.messages[m.ID] = m
	tx.dirtyMessages[m.ID] = true
	tx.applied++
	tx.touchDiscussionActivity(m)
}

// touchDiscussionActivity rebuilds the denormalized activity data a new
// message implies. Projections are derived, never hand-edited, so this is
// the only place they move.
func (tx *Tx) touchDiscussionActivity(m models.Message) {
	if fi, ok := tx.s.feedItems[m.Discussion]; ok && m.CreatedTS > fi.LastActivityTS {
		fi.LastActivityTS = m.CreatedTS
		if clock.Compare(m.Clock, fi.Clock) == clock.Greater {
			fi.Clock = m.Clock
		}
		tx.s.feedItems[m.Discussion] = fi
		tx.dirtyFeedItems[m.Discussion] = true
		tx.feedDirty = true
	}
	if dr, ok := tx.s.responses[m.Discussion]; ok {
		changed := false
		if !containsString(dr.MessageIDs, m.ID) {
			dr.MessageIDs = append(append([]string(nil), dr.MessageIDs...), m.ID)
			changed = true
		}
		if m.CreatedTS > dr.LastActivityTS {
			dr.LastActivityTS = m.CreatedTS
			changed = true
		}
		if changed {
			if clock.Compare(m.Clock, dr.Clock) == clock.Greater {
				dr.Clock = m.Clock
			}
			tx.s.responses[m.Discussion] = dr
			tx.dirtyResponses[dr.ID] = true
			tx.drDirty = true
		}
	}
}

// AddFeedItem merges a feed item write into the integrated feed.
func (tx *Tx) AddFeedItem(fi models.FeedItem) {
	if err := validation.ValidateFeedItem(fi); err != nil {
		tx.skip("feed_item", fi.ID, err)
		return
	}
	cur, ok := tx.s.feedItems[fi.ID]
	if ok && clock.Compare(fi.Clock, cur.Clock) != clock.Greater {
		tx.discarded++
		return
	}
	tx.s.feedItems[fi.ID] = fi
	tx.dirtyFeedItems[fi.ID] = true
	tx.feedDirty = true
	tx.applied++
}

// AddDiscussionResponse applies a full discussion hydration payload:
// users, group, discussion and messages land in one batch together with
// the discussion-response projection.
func (tx *Tx) AddDiscussionResponse(p models.DiscussionPayload) {
	for _, u := range p.Users {
		tx.AddUser(u)
	}
	if p.Group != nil {
		tx.AddGroup(*p.Group)
	}
	tx.AddDiscussion(p.Discussion)

	dr := models.DiscussionResponse{ID: p.Discussion.ID, Clock: p.Discussion.Clock}
	for _, m := range p.Messages {
		tx.AddMessage(m)
		dr.MessageIDs = append(dr.MessageIDs, m.ID)
		if m.CreatedTS > dr.LastActivityTS {
			dr.LastActivityTS = m.CreatedTS
		}
		if clock.Compare(m.Clock, dr.Clock) == clock.Greater {
			dr.Clock = m.Clock
		}
	}
	cur, ok := tx.s.responses[dr.ID]
	if ok && clock.Compare(dr.Clock, cur.Clock) != clock.Greater {
		tx.discarded++
		return
	}
	tx.s.responses[dr.ID] = dr
	tx.dirtyResponses[dr.ID] = true
	tx.drDirty = true
	tx.applied++
}

// StoreMeResult applies a me response: the authenticated user, the full
// contact set and pending contact requests.
func (tx *Tx) StoreMeResult(r models.MeResult) {
	if r.User.ID == "" {
		tx.skip("me", "", errEmptyID)
		return
	}
	tx.AddUser(r.User)
	tx.s.meID = r.User.ID

	contacts := make(map[string]bool, len(r.Contacts))
	for _, c := range r.Contacts {
		tx.AddUser(c)
		contacts[c.ID] = true
	}
	if !sameStringSet(tx.s.contacts, contacts) {
		tx.s.contacts = contacts
		tx.contactsDirty = true
	}

	requests := make(map[string]models.ContactRequest, len(r.ContactRequests))
	for _, cr := range r.ContactRequests {
		requests[cr.ID] = cr
	}
	if !sameRequestIDs(tx.s.requests, requests) {
		tx.contactsDirty = true
	}
	tx.s.requests = requests
	tx.applied++
}

// RemovePendingContactRequest drops a pending request (accepted or
// dismissed). Unknown ids are ignored.
func (tx *Tx) RemovePendingContactRequest(id string) {
	if _, ok := tx.s.requests[id]; !ok {
		return
	}
	delete(tx.s.requests, id)
	tx.contactsDirty = true
	tx.applied++
}

// AddInviteLinkResponse stores a resolved invite link and the entities it
// references.
func (tx *Tx) AddInviteLinkResponse(r models.InviteLinkResponse) {
	if r.Code == "" {
		tx.skip("invite", "", errEmptyID)
		return
	}
	tx.AddUser(r.Inviter)
	if r.Discussion != nil {
		tx.AddDiscussion(*r.Discussion)
	}
	if r.Group != nil {
		tx.AddGroup(*r.Group)
	}
	tx.s.invites[r.Code] = r
	tx.applied++
}

// SetReadMarker advances the viewer's last-read timestamp for a
// discussion. Markers only move forward.
func (tx *Tx) SetReadMarker(discussionID string, ts int64) {
	if ts <= tx.s.readMarkers[discussionID] {
		return
	}
	tx.s.readMarkers[discussionID] = ts
	tx.feedDirty = true
	tx.markersDirty = true
	tx.applied++
}

// AddUser is a single-write convenience wrapper around Update.
func (s *Store) AddUser(u models.User) { s.Update(func(tx *Tx) { tx.AddUser(u) }) }

// AddGroup is a single-write convenience wrapper around Update.
func (s *Store) AddGroup(g models.Group) { s.Update(func(tx *Tx) { tx.AddGroup(g) }) }

// AddDiscussion is a single-write convenience wrapper around Update.
func (s *Store) AddDiscussion(d models.Discussion) { s.Update(func(tx *Tx) { tx.AddDiscussion(d) }) }

// AddMessage is a single-write convenience wrapper around Update.
func (s *Store) AddMessage(m models.Message) { s.Update(func(tx *Tx) { tx.AddMessage(m) }) }

// AddFeedItem is a single-write convenience wrapper around Update.
func (s *Store) AddFeedItem(fi models.FeedItem) { s.Update(func(tx *Tx) { tx.AddFeedItem(fi) }) }

// AddDiscussionResponse is a single-write convenience wrapper around
// Update.
func (s *Store) AddDiscussionResponse(p models.DiscussionPayload) {
	s.Update(func(tx *Tx) { tx.AddDiscussionResponse(p) })
}

// StoreMeResult is a single-write convenience wrapper around Update.
func (s *Store) StoreMeResult(r models.MeResult) { s.Update(func(tx *Tx) { tx.StoreMeResult(r) }) }

// RemovePendingContactRequest is a single-write convenience wrapper
// around Update.
func (s *Store) RemovePendingContactRequest(id string) {
	s.Update(func(tx *Tx) { tx.RemovePendingContactRequest(id) })
}

// AddInviteLinkResponse is a single-write convenience wrapper around
// Update.
func (s *Store) AddInviteLinkResponse(r models.InviteLinkResponse) {
	s.Update(func(tx *Tx) { tx.AddInviteLinkResponse(r) })
}

// SetReadMarker is a single-write convenience wrapper around Update.
func (s *Store) SetReadMarker(discussionID string, ts int64) {
	s.Update(func(tx *Tx) { tx.SetReadMarker(discussionID, ts) })
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func sameStringSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sameRequestIDs(a, b map[string]models.ContactRequest) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
