package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"chatcache/pkg/clock"
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
)

// Store is the session-scoped local entity cache. One Store exists per
// authenticated session; it is constructed on sign-in, passed by
// reference to consumers, and closed on sign-out. All mutation goes
// through Update; reads are unrestricted and never fail on absence.
//
// Returned entities are value copies but may share inner maps with the
// cache; callers must treat them as read-only.
type Store struct {
	mu     sync.Mutex
	nodeID string

	users       map[string]models.User
	messages    map[string]models.Message
	discussions map[string]models.Discussion
	groups      map[string]models.Group
	feedItems   map[string]models.FeedItem
	responses   map[string]models.DiscussionResponse

	meID        string
	contacts    map[string]bool
	requests    map[string]models.ContactRequest
	invites     map[string]models.InviteLinkResponse
	readMarkers map[string]int64

	staged map[string]models.FeedItem

	userListeners       registry[models.User]
	messageListeners    registry[models.Message]
	discussionListeners registry[models.Discussion]
	groupListeners      registry[models.Group]
	feedIDListeners     registry[[]string]
	responseIDListeners registry[[]string]
	contactListeners    registry[[]string]
	incomingListeners   registry[map[string]bool]

	db *persistentDB
}

// Options configures a Store.
type Options struct {
	// NodeID identifies this client in logical clocks. Generated when
	// empty.
	NodeID string
	// DBPath enables on-disk persistence of merged entities under the
	// given directory. Empty keeps the cache memory-only.
	DBPath string
}

// New constructs a Store and, when Options.DBPath is set, loads the
// persisted entity snapshot from disk.
func New(opts Options) (*Store, error) {
	nodeID := opts.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	s := &Store{
		nodeID:      nodeID,
		users:       make(map[string]models.User),
		messages:    make(map[string]models.Message),
		discussions: make(map[string]models.Discussion),
		groups:      make(map[string]models.Group),
		feedItems:   make(map[string]models.FeedItem),
		responses:   make(map[string]models.DiscussionResponse),
		contacts:    make(map[string]bool),
		requests:    make(map[string]models.ContactRequest),
		invites:     make(map[string]models.InviteLinkResponse),
		readMarkers: make(map[string]int64),
		staged:      make(map[string]models.FeedItem),
	}
	if opts.DBPath != "" {
		db, err := openDB(opts.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open cache db: %w", err)
		}
		s.db = db
		if err := db.loadInto(s); err != nil {
			db.close()
			return nil, fmt.Errorf("load cache db: %w", err)
		}
		logger.Info("cache_loaded", "path", opts.DBPath,
			"users", len(s.users), "messages", len(s.messages),
			"discussions", len(s.discussions), "feed_items", len(s.feedItems))
	}
	observeEntityCounts(s)
	return s, nil
}

// Close releases the persistence handle, if any. The staging set is
// intentionally not persisted: staged items reset on restart and are
// fetched fresh on next load.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.close()
	s.db = nil
	return err
}

// NodeID returns the clock node id for this session.
func (s *Store) NodeID() string { return s.nodeID }

// NextClock returns a clock that supersedes base for an optimistic local
// write on this node.
func (s *Store) NextClock(base clock.Clock) clock.Clock { return base.Next(s.nodeID) }

// UserByID returns the user and whether it is present. Absence is a
// normal state ("not yet loaded"), never an error.
func (s *Store) UserByID(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// HasUser reports whether the user is cached.
func (s *Store) HasUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

// MessageByID returns the message and whether it is present.
func (s *Store) MessageByID(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

// DiscussionByID returns the discussion and whether it is present.
func (s *Store) DiscussionByID(id string) (models.Discussion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.discussions[id]
	return d, ok
}

// GroupByID returns the group and whether it is present.
func (s *Store) GroupByID(id string) (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	return g, ok
}

// FeedItemByID returns the feed item and whether it is present.
func (s *Store) FeedItemByID(id string) (models.FeedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feedItems[id]
	return f, ok
}

// DiscussionResponseByID returns the stored discussion response
// projection and whether it is present.
func (s *Store) DiscussionResponseByID(id string) (models.DiscussionResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	return r, ok
}

// InviteLinkByCode returns a previously stored invite-link resolution.
func (s *Store) InviteLinkByCode(code string) (models.InviteLinkResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.invites[code]
	return r, ok
}

// Me returns the authenticated user, when a me result has been stored.
func (s *Store) Me() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meID == "" {
		return models.User{}, false
	}
	u, ok := s.users[s.meID]
	return u, ok
}

// AllFeedItemIDs returns the ids of every integrated feed item, sorted
// for determinism. Staged items are excluded until integration.
func (s *Store) AllFeedItemIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.feedItems)
}

// ActiveDiscussionIDs returns the ids of every stored discussion
// response, sorted.
func (s *Store) ActiveDiscussionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.responses)
}

// MyContacts returns the viewer's contact set as sorted user ids.
func (s *Store) MyContacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.contacts)
}

// PendingContactRequests returns pending inbound contact requests.
func (s *Store) PendingContactRequests() []models.ContactRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContactRequest, 0, len(s.requests))
	for _, id := range sortedKeys(s.requests) {
		out = append(out, s.requests[id])
	}
	return out
}

// ReadMarkers returns a copy of the viewer's per-discussion last-read
// timestamps, for feed composition.
func (s *Store) ReadMarkers() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.readMarkers))
	for k, v := range s.readMarkers {
		out[k] = v
	}
	return out
}

// FeedItems returns all integrated feed items, for feed composition.
func (s *Store) FeedItems() []models.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FeedItem, 0, len(s.feedItems))
	for _, id := range sortedKeys(s.feedItems) {
		out = append(out, s.feedItems[id])
	}
	return out
}

// DiscussionResponses returns all stored discussion responses, for
// active-feed composition.
func (s *Store) DiscussionResponses() []models.DiscussionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DiscussionResponse, 0, len(s.responses))
	for _, id := range sortedKeys(s.responses) {
		out = append(out, s.responses[id])
	}
	return out
}

// Counts reports per-kind entity counts, for the debug surface.
func (s *Store) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"users":       len(s.users),
		"messages":    len(s.messages),
		"discussions": len(s.discussions),
		"groups":      len(s.groups),
		"feed_items":  len(s.feedItems),
		"responses":   len(s.responses),
		"contacts":    len(s.contacts),
		"staged":      len(s.staged),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
