package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	txTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_transactions_total",
		Help: "Committed store transactions.",
	})
	writesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_tx_writes_applied_total",
		Help: "Entity writes applied by transactions.",
	})
	writesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_tx_writes_discarded_total",
		Help: "Entity writes discarded for carrying a lower-or-equal clock.",
	})
	writesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_tx_writes_skipped_total",
		Help: "Malformed entity writes skipped inside transactions.",
	})
	notificationsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcache_listener_notifications_total",
		Help: "Listener callbacks fired after commits.",
	})
	stagedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatcache_staged_feed_items",
		Help: "Feed items currently held in the staging area.",
	})
	entityGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatcache_entities",
		Help: "Cached entities by kind.",
	}, []string{"kind"})
)

func recordTransaction(tx *Tx, notifications int) {
	txTotal.Inc()
	writesApplied.Add(float64(tx.applied))
	writesDiscarded.Add(float64(tx.discarded))
	writesSkipped.Add(float64(tx.skipped))
	notificationsFired.Add(float64(notifications))
}

func observeStagedCount(n int) {
	stagedGauge.Set(float64(n))
}

// observeEntityCounts refreshes the per-kind gauges. Caller holds the
// store lock (or the store is not yet shared).
func observeEntityCounts(s *Store) {
	entityGauge.WithLabelValues("users").Set(float64(len(s.users)))
	entityGauge.WithLabelValues("messages").Set(float64(len(s.messages)))
	entityGauge.WithLabelValues("discussions").Set(float64(len(s.discussions)))
	entityGauge.WithLabelValues("groups").Set(float64(len(s.groups)))
	entityGauge.WithLabelValues("feed_items").Set(float64(len(s.feedItems)))
	entityGauge.WithLabelValues("responses").Set(float64(len(s.responses)))
}
