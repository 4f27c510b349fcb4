// Package sweep runs the optional staged-feed eviction scheduler. It is
// off by default: staged items normally live until the user integrates
// or discards them, and the sweep only drops entries whose activity
// timestamp has fallen behind the configured max age.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatcache/pkg/config"
	"chatcache/pkg/logger"
	"chatcache/pkg/store"
)

// Start starts the eviction scheduler when enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config, s *store.Store) (context.CancelFunc, error) {
	sw := cfg.Staging.Sweep

	if !sw.Enabled {
		logger.Info("staging_sweep_disabled")
		return func() {}, nil
	}

	maxAge := sw.MaxAge.Duration()
	if maxAge <= 0 {
		return nil, fmt.Errorf("staging sweep enabled without max_age")
	}

	// empty cron defaults to hourly
	cronExpr := sw.Cron
	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("staging_sweep_invalid_cron", "cron", sw.Cron)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", sw.Cron)
	}

	logger.Info("staging_sweep_enabled", "cron", cronExpr, "max_age", maxAge)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, s, cronExpr, maxAge)
	return cancel, nil
}

// RunOnce evicts staged items older than maxAge and reports the count.
func RunOnce(s *store.Store, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge).UnixNano()
	n := s.EvictStaleStaged(cutoff)
	if n > 0 {
		logger.Info("staging_sweep_evicted", "count", n, "max_age", maxAge)
	}
	return n
}

// runScheduler computes the next tick with gronx and sleeps until then,
// supporting full cron syntax.
func runScheduler(ctx context.Context, s *store.Store, cronExpr string, maxAge time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("staging_sweep_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("staging_sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			RunOnce(s, maxAge)
			// small sleep to avoid a tight loop around the tick
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			RunOnce(s, maxAge)
		case <-ctx.Done():
			logger.Info("staging_sweep_stopping")
			return
		}
	}
}
