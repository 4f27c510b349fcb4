// Package api exposes a local-only introspection HTTP server. It serves
// health, Prometheus metrics and read-only views of the store and the
// staging area, for debugging a running session. It never mutates
// entities and is disabled unless a debug address is configured.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatcache/pkg/feed"
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/store"
)

type server struct {
	store *store.Store
}

// Handler builds the debug router over the given store.
func Handler(s *store.Store) http.Handler {
	srv := &server{store: s}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", srv.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/debug/store", srv.storeStats).Methods(http.MethodGet)
	r.HandleFunc("/debug/staging", srv.staging).Methods(http.MethodGet)
	r.HandleFunc("/debug/contacts", srv.contacts).Methods(http.MethodGet)
	r.HandleFunc("/debug/feed", srv.feedPreview).Methods(http.MethodGet)
	logger.Info("debug_routes_registered")
	return r
}

// Serve starts the debug server on addr. Callers stop it by closing the
// returned server.
func Serve(addr string, s *store.Store) *http.Server {
	hs := &http.Server{
		Addr:              addr,
		Handler:           Handler(s),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("debug_server_listening", "addr", addr)
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("debug_server_failed", "addr", addr, "error", err)
		}
	}()
	return hs
}

func (srv *server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"chatcache"}`))
}

func (srv *server) storeStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		NodeID string         `json:"node_id"`
		Counts map[string]int `json:"counts"`
	}{NodeID: srv.store.NodeID(), Counts: srv.store.Counts()})
}

func (srv *server) staging(w http.ResponseWriter, r *http.Request) {
	ids := srv.store.StagedFeedItemIDs()
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	writeJSON(w, struct {
		Count int      `json:"count"`
		IDs   []string `json:"ids"`
	}{Count: len(out), IDs: out})
}

func (srv *server) contacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Contacts []string                `json:"contacts"`
		Pending  []models.ContactRequest `json:"pending"`
	}{Contacts: srv.store.MyContacts(), Pending: srv.store.PendingContactRequests()})
}

// feedPreview composes the feed exactly as a UI caller would, from the
// current store snapshot. Query params mirror the remote feed endpoint.
func (srv *server) feedPreview(w http.ResponseWriter, r *http.Request) {
	q := models.MainFeedQuery{
		FeedType:   models.FeedType(r.URL.Query().Get("feed_type")),
		Scope:      models.FeedScope(r.URL.Query().Get("type")),
		GroupID:    r.URL.Query().Get("group_id"),
		ContactID:  r.URL.Query().Get("contact_id"),
		LocationID: r.URL.Query().Get("location_id"),
		Hidden:     strings.EqualFold(r.URL.Query().Get("hidden"), "true"),
	}

	var viewerID string
	if me, ok := srv.store.Me(); ok {
		viewerID = me.ID
	}
	items := srv.store.FeedItems()
	discussions := make(map[string]models.Discussion, len(items))
	for _, fi := range items {
		if _, seen := discussions[fi.DiscussionID]; seen {
			continue
		}
		if d, ok := srv.store.DiscussionByID(fi.DiscussionID); ok {
			discussions[fi.DiscussionID] = d
		}
	}

	payloads := feed.ToSortedFeedItems(viewerID, q, items, discussions, srv.store.ReadMarkers())
	writeJSON(w, struct {
		Query models.MainFeedQuery `json:"query"`
		Items []feed.Payload       `json:"items"`
		Rows  []feed.Row           `json:"rows"`
	}{Query: q, Items: payloads, Rows: feed.ToFullFeed(payloads)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("debug_encode_failed", "error", err)
	}
}
