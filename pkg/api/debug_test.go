package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatcache/pkg/clock"
	"chatcache/pkg/models"
	"chatcache/pkg/store"
)

func newTestHandler(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	s, err := store.New(store.Options{NodeID: "debug-node"})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s, Handler(s)
}

func get(t *testing.T, h http.Handler, path string, out any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s = %d", path, rec.Code)
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestHealthz(t *testing.T) {
	_, h := newTestHandler(t)
	var body map[string]string
	get(t, h, "/healthz", &body)
	if body["status"] != "ok" {
		t.Fatalf("health = %v", body)
	}
}

func TestStoreStats(t *testing.T) {
	s, h := newTestHandler(t)
	s.AddUser(models.User{ID: "u1", Clock: clock.Clock{Counter: 1, Node: "n", TS: 1}})

	var body struct {
		NodeID string         `json:"node_id"`
		Counts map[string]int `json:"counts"`
	}
	get(t, h, "/debug/store", &body)
	if body.NodeID != "debug-node" {
		t.Fatalf("node_id = %q", body.NodeID)
	}
	if body.Counts["users"] != 1 {
		t.Fatalf("counts = %v", body.Counts)
	}
}

func TestStagingEndpoint(t *testing.T) {
	s, h := newTestHandler(t)
	s.StageFeedItems([]models.FeedItem{
		{ID: "f1", Kind: models.FeedItemDiscussion, DiscussionID: "d1", LastActivityTS: 1},
	})

	var body struct {
		Count int      `json:"count"`
		IDs   []string `json:"ids"`
	}
	get(t, h, "/debug/staging", &body)
	if body.Count != 1 || len(body.IDs) != 1 || body.IDs[0] != "f1" {
		t.Fatalf("staging = %+v", body)
	}
}

func TestFeedPreview(t *testing.T) {
	s, h := newTestHandler(t)
	s.AddFeedItem(models.FeedItem{ID: "d1", Kind: models.FeedItemDiscussion, DiscussionID: "d1", LastActivityTS: 5, Clock: clock.Clock{Counter: 1, Node: "n", TS: 5}})
	s.AddFeedItem(models.FeedItem{ID: "d2", Kind: models.FeedItemDiscussion, DiscussionID: "d2", LastActivityTS: 10, Clock: clock.Clock{Counter: 1, Node: "n", TS: 10}})

	var body struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	get(t, h, "/debug/feed?feed_type=main", &body)
	if len(body.Items) != 2 || body.Items[0].ID != "d2" {
		t.Fatalf("preview = %+v", body.Items)
	}
}
