// Package app wires one session together: config, cache dirs, the
// entity store, the remote client and the optional debug server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"chatcache/internal/sweep"
	"chatcache/pkg/api"
	"chatcache/pkg/client"
	"chatcache/pkg/config"
	"chatcache/pkg/logger"
	"chatcache/pkg/state"
	"chatcache/pkg/store"
	"chatcache/pkg/validation"
)

// App encapsulates the session components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	store  *store.Store
	client *client.Client

	debug       *http.Server
	sweepCancel context.CancelFunc
	pushStop    chan struct{}
}

// New initializes everything that does not need a running context: env,
// config validation, cache dirs, the store (with its persisted snapshot)
// and the remote client. Call Run to start the background workers.
func New(cfg *config.Config, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	initValidation(cfg)

	nodeID := cfg.Session.NodeID
	if cfg.Session.CacheDir != "" {
		if err := state.EnsureCacheDirs(cfg.Session.CacheDir); err != nil {
			return nil, fmt.Errorf("cache dirs: %w", err)
		}
		if nodeID == "" {
			id, err := state.LoadOrCreateNodeID(cfg.Session.CacheDir, uuid.NewString())
			if err != nil {
				return nil, err
			}
			nodeID = id
		}
	}

	s, err := store.New(store.Options{NodeID: nodeID, DBPath: cfg.DBPath()})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.DBPath(), err)
	}

	c := client.New(s, client.Options{
		BaseURL:              cfg.Remote.BaseURL,
		Token:                cfg.Remote.Token,
		Timeout:              cfg.Remote.Timeout.Duration(),
		RPS:                  cfg.Remote.RateLimit.RPS,
		Burst:                cfg.Remote.RateLimit.Burst,
		PushQueueCapacity:    cfg.Remote.PushQueue.Capacity,
		MaxPooledBufferBytes: cfg.Remote.PushQueue.MaxPooledBuffer.Int(),
	})

	return &App{cfg: cfg, version: version, store: s, client: c}, nil
}

// Store returns the session store.
func (a *App) Store() *store.Store { return a.store }

// Client returns the remote client.
func (a *App) Client() *client.Client { return a.client }

// Run starts the push worker, the staging sweep and the debug server,
// then blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	a.pushStop = make(chan struct{})
	go a.client.RunPushWorker(a.pushStop)

	cancel, err := sweep.Start(ctx, a.cfg, a.store)
	if err != nil {
		return err
	}
	a.sweepCancel = cancel

	if a.cfg.Debug.Addr != "" {
		a.debug = api.Serve(a.cfg.Debug.Addr, a.store)
	}

	logger.Info("session_started", "node", a.store.NodeID(), "version", a.version)
	<-ctx.Done()
	return a.shutdown()
}

// shutdown stops workers and releases the store. Order matters: the
// push worker stops before the store closes so no transaction races a
// closed pebble handle.
func (a *App) shutdown() error {
	if a.pushStop != nil {
		close(a.pushStop)
	}
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	if a.debug != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.debug.Shutdown(ctx)
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	logger.Info("session_stopped", "node", a.store.NodeID())
	return nil
}

// initValidation applies configured limits over the defaults.
func initValidation(cfg *config.Config) {
	vr := validation.DefaultRules()
	if cfg.Validation.MaxTextLen > 0 {
		vr.MaxTextLen = cfg.Validation.MaxTextLen
	}
	if cfg.Validation.MaxMediaItems > 0 {
		vr.MaxMediaItems = cfg.Validation.MaxMediaItems
	}
	if cfg.Validation.MaxNameLen > 0 {
		vr.MaxNameLen = cfg.Validation.MaxNameLen
	}
	validation.SetRules(vr)
}
