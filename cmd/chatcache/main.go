package main

import (
	"context"

	"github.com/joho/godotenv"

	"chatcache/internal/app"
	"chatcache/pkg/banner"
	"chatcache/pkg/config"
	"chatcache/pkg/logger"
	"chatcache/pkg/shutdown"
)

func main() {
	// build metadata - set via ldflags during build/release
	var version = "dev"

	_ = godotenv.Load(".env")
	flags := config.ParseConfigFlags()

	cfgPath := config.ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		shutdown.Abort("failed to load config", err, "", 0)
	}

	// explicit flags win over config/env
	if flags.Set["cache"] || cfg.Session.CacheDir == "" {
		cfg.Session.CacheDir = flags.CacheDir
	}
	if flags.Set["url"] {
		cfg.Remote.BaseURL = flags.BaseURL
	}

	logger.InitWithLevel(cfg.Logging.Level)

	a, err := app.New(cfg, version)
	if err != nil {
		shutdown.Abort("session startup failed", err, cfg.Session.CacheDir, 0)
	}

	source := "config"
	if envUsed {
		source = "config+env"
	}
	banner.Print(cfg, a.Store().NodeID(), source, version)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("session_run_failed", "error", err)
	}
}
