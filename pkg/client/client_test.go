package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatcache/pkg/clock"
	"chatcache/pkg/models"
	"chatcache/pkg/store"
)

func clockAt(counter uint64) clock.Clock {
	return clock.Clock{Counter: counter, Node: "srv", TS: int64(counter)}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.Options{NodeID: "test-node"})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func TestFetchDiscussionAppliesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/discussions/d1" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"discussion": map[string]any{"id": "d1", "created_by": "u1", "clock": map[string]any{"counter": 1, "node": "srv", "ts": 1}},
			"messages": []map[string]any{
				{"id": "m1", "discussion_id": "d1", "user_id": "u1", "text": "hi", "created_at": 5, "clock": map[string]any{"counter": 1, "node": "srv", "ts": 5}},
			},
			"users": []map[string]any{
				{"id": "u1", "name": "alice", "clock": map[string]any{"counter": 1, "node": "srv", "ts": 1}},
			},
		})
	}))
	defer srv.Close()

	s := newTestStore(t)
	c := New(s, Options{BaseURL: srv.URL, Token: "tok", RPS: 1000, Burst: 1000})

	if err := c.FetchDiscussion(context.Background(), "d1"); err != nil {
		t.Fatalf("FetchDiscussion: %v", err)
	}
	if _, ok := s.DiscussionByID("d1"); !ok {
		t.Fatalf("discussion not applied")
	}
	if _, ok := s.MessageByID("m1"); !ok {
		t.Fatalf("message not applied")
	}
	if !s.HasUser("u1") {
		t.Fatalf("user not applied")
	}
	if dr, ok := s.DiscussionResponseByID("d1"); !ok || dr.LastActivityTS != 5 {
		t.Fatalf("response projection = %+v, %v", dr, ok)
	}
}

func TestFetchDiscussionCurrentIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current":true}`))
	}))
	defer srv.Close()

	s := newTestStore(t)
	c := New(s, Options{BaseURL: srv.URL, RPS: 1000, Burst: 1000})

	if err := c.FetchDiscussion(context.Background(), "d1"); err != nil {
		t.Fatalf("FetchDiscussion: %v", err)
	}
	if _, ok := s.DiscussionByID("d1"); ok {
		t.Fatalf("no-op fetch wrote to the store")
	}
}

func TestFetchErrorNeverWritesStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestStore(t)
	c := New(s, Options{BaseURL: srv.URL, RPS: 1000, Burst: 1000})

	if err := c.FetchDiscussion(context.Background(), "d1"); err == nil {
		t.Fatalf("expected error from 500 response")
	}
	counts := s.Counts()
	for kind, n := range counts {
		if n != 0 {
			t.Fatalf("failed fetch wrote %d %s entities", n, kind)
		}
	}
}

func TestPrepareFeedStagesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("feed_type"); got != "main" {
			t.Errorf("feed_type = %q", got)
		}
		_ = json.NewEncoder(w).Encode(models.FeedPage{
			Items: []models.FeedItem{
				{ID: "f1", Kind: models.FeedItemDiscussion, DiscussionID: "d1", LastActivityTS: 10},
			},
			Done: true,
		})
	}))
	defer srv.Close()

	s := newTestStore(t)
	c := New(s, Options{BaseURL: srv.URL, RPS: 1000, Burst: 1000})

	page, err := c.PrepareFeed(context.Background(), models.MainFeedQuery{FeedType: "main"}, "")
	if err != nil {
		t.Fatalf("PrepareFeed: %v", err)
	}
	if !page.Done || len(page.Items) != 1 {
		t.Fatalf("page = %+v", page)
	}
	if got := s.AllFeedItemIDs(); len(got) != 0 {
		t.Fatalf("prepare applied items directly: %v", got)
	}
	if !s.StagedFeedItemIDs()["f1"] {
		t.Fatalf("item not staged")
	}
}

func TestFetchFeedAppliesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.FeedPage{
			Items: []models.FeedItem{
				{ID: "f1", Kind: models.FeedItemDiscussion, DiscussionID: "d1", LastActivityTS: 10},
			},
		})
	}))
	defer srv.Close()

	s := newTestStore(t)
	c := New(s, Options{BaseURL: srv.URL, RPS: 1000, Burst: 1000})

	if _, err := c.FetchFeed(context.Background(), models.MainFeedQuery{}, ""); err != nil {
		t.Fatalf("FetchFeed: %v", err)
	}
	if got := s.AllFeedItemIDs(); len(got) != 1 || got[0] != "f1" {
		t.Fatalf("feed = %v", got)
	}
}

func TestTryEnqueueQueueFull(t *testing.T) {
	q := NewPushQueue(1, 0)
	if err := q.TryEnqueue(PushUser, []byte(`{}`)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.TryEnqueue(PushUser, []byte(`{}`)); err != ErrQueueFull {
		t.Fatalf("second enqueue err = %v, want ErrQueueFull", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d", q.Dropped())
	}
}

func TestPushDoneIdempotent(t *testing.T) {
	q := NewPushQueue(1, 0)
	if err := q.TryEnqueue(PushUser, []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	p := <-q.ch
	p.done()
	p.done() // second release must be a no-op

	// a recycled push carries its own payload, not a stale one
	if err := q.TryEnqueue(PushUser, []byte(`{"id":"u2"}`)); err != nil {
		t.Fatalf("enqueue after recycle: %v", err)
	}
	p2 := <-q.ch
	if string(p2.Payload) != `{"id":"u2"}` {
		t.Fatalf("recycled payload = %q", p2.Payload)
	}
	p2.done()
}

func TestPushWorkerRoutesKinds(t *testing.T) {
	s := newTestStore(t)
	c := New(s, Options{})

	userBody, _ := json.Marshal(models.User{ID: "u1", Clock: clockAt(1)})
	feedBody, _ := json.Marshal([]models.FeedItem{
		{ID: "f1", Kind: models.FeedItemDiscussion, DiscussionID: "d1", LastActivityTS: 1, Clock: clockAt(1)},
	})
	if err := c.Pushes.TryEnqueue(PushUser, userBody); err != nil {
		t.Fatalf("enqueue user: %v", err)
	}
	if err := c.Pushes.TryEnqueue(PushFeedItems, feedBody); err != nil {
		t.Fatalf("enqueue feed: %v", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { c.RunPushWorker(stop); close(done) }()

	deadline := time.After(2 * time.Second)
	for {
		if s.HasUser("u1") && s.StagedFeedItemIDs()["f1"] {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("push worker did not drain queue")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// feed pushes must stage, not apply
	if got := s.AllFeedItemIDs(); len(got) != 0 {
		t.Fatalf("push applied feed items directly: %v", got)
	}

	close(stop)
	<-done
}
