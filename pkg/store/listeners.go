package store

import (
	"chatcache/pkg/models"
)

// ListenerID is the opaque handle returned on subscription. Its only
// valid use is unsubscription. Handles are generation-checked: a stale or
// double-removed id is a safe no-op and slots are reused without dangling
// callbacks.
type ListenerID struct {
	slot uint32
	gen  uint32
}

// Valid reports whether the id was ever issued.
func (id ListenerID) Valid() bool { return id.gen != 0 }

type slot[T any] struct {
	gen    uint32
	key    string
	fn     func(T)
	active bool
}

// registry is a slot-map of subscriptions for one listener family.
// Per-key callbacks fire in registration order. The zero value is ready
// to use. All access happens under the owning Store's mutex.
type registry[T any] struct {
	slots []slot[T]
	free  []uint32
	byKey map[string][]uint32
}

func (r *registry[T]) add(key string, fn func(T)) ListenerID {
	if r.byKey == nil {
		r.byKey = make(map[string][]uint32)
	}
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		idx = uint32(len(r.slots) - 1)
	}
	sl := &r.slots[idx]
	sl.gen++
	sl.key = key
	sl.fn = fn
	sl.active = true
	r.byKey[key] = append(r.byKey[key], idx)
	return ListenerID{slot: idx, gen: sl.gen}
}

// remove deactivates the subscription. Stale ids (wrong generation,
// already removed, never issued) are ignored.
func (r *registry[T]) remove(key string, id ListenerID) {
	if int(id.slot) >= len(r.slots) {
		return
	}
	sl := &r.slots[id.slot]
	if !sl.active || sl.gen != id.gen || sl.key != key {
		return
	}
	sl.active = false
	sl.fn = nil
	r.free = append(r.free, id.slot)
	order := r.byKey[key]
	for i, idx := range order {
		if idx == id.slot {
			r.byKey[key] = append(order[:i], order[i+1:]...)
			break
		}
	}
	if len(r.byKey[key]) == 0 {
		delete(r.byKey, key)
	}
}

// callbacks snapshots the active callbacks for key in registration order,
// so they can be invoked after the store lock is released.
func (r *registry[T]) callbacks(key string) []func(T) {
	order := r.byKey[key]
	if len(order) == 0 {
		return nil
	}
	out := make([]func(T), 0, len(order))
	for _, idx := range order {
		if sl := &r.slots[idx]; sl.active {
			out = append(out, sl.fn)
		}
	}
	return out
}

// collectionKey indexes listener families that watch a whole collection
// rather than a single entity.
const collectionKey = ""

// ListenUser subscribes to mutations of one user record. The callback
// receives the committed value after each transaction that changed it.
func (s *Store) ListenUser(id string, fn func(models.User)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userListeners.add(id, fn)
}

// RemoveUserListener unsubscribes; removing a stale id is a no-op.
func (s *Store) RemoveUserListener(id string, lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userListeners.remove(id, lid)
}

// ListenMessage subscribes to mutations of one message.
func (s *Store) ListenMessage(id string, fn func(models.Message)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageListeners.add(id, fn)
}

// RemoveMessageListener unsubscribes; removing a stale id is a no-op.
func (s *Store) RemoveMessageListener(id string, lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageListeners.remove(id, lid)
}

// ListenDiscussion subscribes to mutations of one discussion.
func (s *Store) ListenDiscussion(id string, fn func(models.Discussion)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discussionListeners.add(id, fn)
}

// RemoveDiscussionListener unsubscribes; removing a stale id is a no-op.
func (s *Store) RemoveDiscussionListener(id string, lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discussionListeners.remove(id, lid)
}

// ListenGroup subscribes to mutations of one group.
func (s *Store) ListenGroup(id string, fn func(models.Group)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupListeners.add(id, fn)
}

// RemoveGroupListener unsubscribes; removing a stale id is a no-op.
func (s *Store) RemoveGroupListener(id string, lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupListeners.remove(id, lid)
}

// ListenFeedItemIDs subscribes to membership changes of the integrated
// feed-item collection. The callback receives the full sorted id list.
func (s *Store) ListenFeedItemIDs(fn func([]string)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedIDListeners.add(collectionKey, fn)
}

// RemoveFeedItemIDsListener unsubscribes; stale ids are a no-op.
func (s *Store) RemoveFeedItemIDsListener(lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedIDListeners.remove(collectionKey, lid)
}

// ListenDiscussionResponseIDs subscribes to membership changes of the
// stored discussion-response collection.
func (s *Store) ListenDiscussionResponseIDs(fn func([]string)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseIDListeners.add(collectionKey, fn)
}

// RemoveDiscussionResponseIDsListener unsubscribes; stale ids are a no-op.
func (s *Store) RemoveDiscussionResponseIDsListener(lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseIDListeners.remove(collectionKey, lid)
}

// ListenContacts subscribes to changes of the viewer's contact set.
func (s *Store) ListenContacts(fn func([]string)) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contactListeners.add(collectionKey, fn)
}

// RemoveContactsListener unsubscribes; stale ids are a no-op.
func (s *Store) RemoveContactsListener(lid ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contactListeners.remove(collectionKey, lid)
}
