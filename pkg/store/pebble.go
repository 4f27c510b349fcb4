package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"chatcache/pkg/logger"
	"chatcache/pkg/models"
)

// Key namespaces for the on-disk entity snapshot. One key per merged
// entity; the value is the entity JSON including its clock, so a reloaded
// cache merges exactly like a live one.
const (
	userPrefix       = "user:"
	msgPrefix        = "msg:"
	discussionPrefix = "discussion:"
	groupPrefix      = "group:"
	feedPrefix       = "feed:"
	drPrefix         = "dr:"

	meKey          = "session:me"
	contactsKey    = "session:contacts"
	requestsKey    = "session:requests"
	readMarkersKey = "session:readmarkers"
)

// persistentDB wraps the pebble handle used for the local entity
// snapshot. The snapshot is disposable: on any failure the cache falls
// back to refetching from the remote service, so writes use NoSync and
// rely on pebble's own WAL.
type persistentDB struct {
	db *pebble.DB
}

func openDB(path string) (*persistentDB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("cache_db_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("cache_db_opened", "path", path)
	return &persistentDB{db: db}, nil
}

func (p *persistentDB) close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err == nil {
		logger.Info("cache_db_closed")
	}
	return err
}

// persistTx writes every entity the transaction touched as one pebble
// batch. Caller holds the store lock.
func (p *persistentDB) persistTx(s *Store, tx *Tx) error {
	wb := p.db.NewBatch()
	for id := range tx.dirtyUsers {
		if err := batchSetJSON(wb, userPrefix+id, s.users[id]); err != nil {
			return err
		}
	}
	for id := range tx.dirtyMessages {
		if err := batchSetJSON(wb, msgPrefix+id, s.messages[id]); err != nil {
			return err
		}
	}
	for id := range tx.dirtyDiscussions {
		if err := batchSetJSON(wb, discussionPrefix+id, s.discussions[id]); err != nil {
			return err
		}
	}
	for id := range tx.dirtyGroups {
		if err := batchSetJSON(wb, groupPrefix+id, s.groups[id]); err != nil {
			return err
		}
	}
	for id := range tx.dirtyFeedItems {
		if err := batchSetJSON(wb, feedPrefix+id, s.feedItems[id]); err != nil {
			return err
		}
	}
	for id := range tx.dirtyResponses {
		if err := batchSetJSON(wb, drPrefix+id, s.responses[id]); err != nil {
			return err
		}
	}
	if tx.contactsDirty {
		if err := batchSetJSON(wb, contactsKey, sortedKeys(s.contacts)); err != nil {
			return err
		}
		if err := batchSetJSON(wb, requestsKey, s.requests); err != nil {
			return err
		}
		if err := wb.Set([]byte(meKey), []byte(s.meID), pebble.NoSync); err != nil {
			return err
		}
	}
	if tx.markersDirty {
		if err := batchSetJSON(wb, readMarkersKey, s.readMarkers); err != nil {
			return err
		}
	}
	if wb.Empty() {
		return wb.Close()
	}
	return p.db.Apply(wb, pebble.NoSync)
}

func batchSetJSON(wb *pebble.Batch, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return wb.Set([]byte(key), data, pebble.NoSync)
}

// loadInto hydrates the store maps from the snapshot. Entries that fail
// to decode are dropped (they will be refetched), keeping the cache
// available under partial corruption.
func (p *persistentDB) loadInto(s *Store) error {
	if err := loadPrefix(p.db, userPrefix, func(id string, data []byte) {
		var u models.User
		if json.Unmarshal(data, &u) == nil && u.ID != "" {
			s.users[u.ID] = u
		}
	}); err != nil {
		return err
	}
	if err := loadPrefix(p.db, msgPrefix, func(id string, data []byte) {
		var m models.Message
		if json.Unmarshal(data, &m) == nil && m.ID != "" {
			s.messages[m.ID] = m
		}
	}); err != nil {
		return err
	}
	if err := loadPrefix(p.db, discussionPrefix, func(id string, data []byte) {
		var d models.Discussion
		if json.Unmarshal(data, &d) == nil && d.ID != "" {
			s.discussions[d.ID] = d
		}
	}); err != nil {
		return err
	}
	if err := loadPrefix(p.db, groupPrefix, func(id string, data []byte) {
		var g models.Group
		if json.Unmarshal(data, &g) == nil && g.ID != "" {
			s.groups[g.ID] = g
		}
	}); err != nil {
		return err
	}
	if err := loadPrefix(p.db, feedPrefix, func(id string, data []byte) {
		var fi models.FeedItem
		if json.Unmarshal(data, &fi) == nil && fi.ID != "" {
			s.feedItems[fi.ID] = fi
		}
	}); err != nil {
		return err
	}
	if err := loadPrefix(p.db, drPrefix, func(id string, data []byte) {
		var dr models.DiscussionResponse
		if json.Unmarshal(data, &dr) == nil && dr.ID != "" {
			s.responses[dr.ID] = dr
		}
	}); err != nil {
		return err
	}

	if v, err := getValue(p.db, meKey); err == nil {
		s.meID = string(v)
	}
	if v, err := getValue(p.db, contactsKey); err == nil {
		var ids []string
		if json.Unmarshal(v, &ids) == nil {
			for _, id := range ids {
				s.contacts[id] = true
			}
		}
	}
	if v, err := getValue(p.db, requestsKey); err == nil {
		var requests map[string]models.ContactRequest
		if json.Unmarshal(v, &requests) == nil && requests != nil {
			s.requests = requests
		}
	}
	if v, err := getValue(p.db, readMarkersKey); err == nil {
		var markers map[string]int64
		if json.Unmarshal(v, &markers) == nil && markers != nil {
			s.readMarkers = markers
		}
	}
	return nil
}

func loadPrefix(db *pebble.DB, prefix string, apply func(id string, data []byte)) error {
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		id := string(iter.Key()[len(pfx):])
		data := append([]byte(nil), iter.Value()...)
		apply(id, data)
	}
	return iter.Error()
}

func getValue(db *pebble.DB, key string) ([]byte, error) {
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}
