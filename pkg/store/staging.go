package store

import (
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
)

// The staging area holds feed items pushed by the network that are
// candidates for the active feed. Staged items never disturb the rendered
// feed: AllFeedItemIDs excludes them until IntegrateIncomingFeed promotes
// them through a normal transaction. There is no automatic timeout; items
// stay staged until the user acts or the session restarts (staging is
// never persisted).

// StageFeedItems merges pushed items into the staging set and notifies
// incoming listeners with the current staged-id set.
func (s *Store) StageFeedItems(items []models.FeedItem) {
	s.mu.Lock()
	changed := false
	for _, fi := range items {
		if fi.ID == "" {
			continue
		}
		if cur, ok := s.staged[fi.ID]; ok {
			// keep the freshest version of an already-staged item
			if merged := mergeStaged(cur, fi); merged.LastActivityTS != cur.LastActivityTS {
				s.staged[fi.ID] = merged
				changed = true
			}
			continue
		}
		s.staged[fi.ID] = fi
		changed = true
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	observeStagedCount(len(s.staged))
	notes := s.incomingNotifications()
	s.mu.Unlock()
	for _, fire := range notes {
		fire()
	}
}

func mergeStaged(cur, incoming models.FeedItem) models.FeedItem {
	if incoming.LastActivityTS > cur.LastActivityTS {
		return incoming
	}
	return cur
}

// IntegrateIncomingFeed moves every staged item into the entity store in
// one transaction, clears the staging set and fires the normal
// feed-collection listeners plus the incoming listeners (now empty).
func (s *Store) IntegrateIncomingFeed() {
	s.mu.Lock()
	if len(s.staged) == 0 {
		s.mu.Unlock()
		return
	}
	items := make([]models.FeedItem, 0, len(s.staged))
	for _, fi := range s.staged {
		items = append(items, fi)
	}
	s.staged = make(map[string]models.FeedItem)
	observeStagedCount(0)
	notes := s.incomingNotifications()
	s.mu.Unlock()

	s.Update(func(tx *Tx) {
		for _, fi := range items {
			tx.AddFeedItem(fi)
		}
	})
	logger.Info("incoming_feed_integrated", "items", len(items))
	for _, fire := range notes {
		fire()
	}
}

// StagedFeedItemIDs returns a copy of the current staged-id set.
func (s *Store) StagedFeedItemIDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stagedSetLocked()
}

// EvictStaleStaged drops staged items whose last activity is older than
// cutoff (ns) and reports how many were dropped. Evicted items are simply
// refetched on the next feed load; integration is never automatic.
func (s *Store) EvictStaleStaged(cutoff int64) int {
	s.mu.Lock()
	evicted := 0
	for id, fi := range s.staged {
		if fi.LastActivityTS < cutoff {
			delete(s.staged, id)
			evicted++
		}
	}
	if evicted == 0 {
		s.mu.Unlock()
		return 0
	}
	observeStagedCount(len(s.staged))
	notes := s.incomingNotifications()
	s.mu.Unlock()
	for _, fire := range notes {
		fire()
	}
	return evicted
}

// ListenIncoming subscribes to the staging area; the callback receives
// the staged-id set on every change.
func (s *Store) ListenIncoming(fn func(map[string]bool)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incomingListeners.add(collectionKey, fn)
}

// RemoveIncomingListener unsubscribes; stale ids are a no-op.
func (s *Store) RemoveIncomingListener(lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomingListeners.remove(collectionKey, lid)
}

func (s *Store) stagedSetLocked() map[string]bool {
	out := make(map[string]bool, len(s.staged))
	for id := range s.staged {
		out[id] = true
	}
	return out
}

func (s *Store) incomingNotifications() []func() {
	set := s.stagedSetLocked()
	cbs := s.incomingListeners.callbacks(collectionKey)
	notes := make([]func(), 0, len(cbs))
	for _, fn := range cbs {
		fn := fn
		notes = append(notes, func() { fn(set) })
	}
	return notes
}
