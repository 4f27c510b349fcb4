package banner

import (
	"fmt"

	"chatcache/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗ ██████╗ █████╗  ██████╗██╗  ██╗███████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██╔══██╗██╔════╝██║  ██║██╔════╝
██║     ███████║███████║   ██║   ██║     ███████║██║     ███████║█████╗
██║     ██╔══██║██╔══██║   ██║   ██║     ██╔══██║██║     ██╔══██║██╔══╝
╚██████╗██║  ██║██║  ██║   ██║   ╚██████╗██║  ██║╚██████╗██║  ██║███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝
`

// Print renders the startup banner with the effective session settings.
func Print(cfg *config.Config, nodeID, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Session ====================================================")
	fmt.Printf("Node:      %s\n", nodeID)
	if cfg.Session.CacheDir != "" {
		fmt.Printf("Cache:     %s\n", cfg.Session.CacheDir)
	} else {
		fmt.Println("Cache:     memory-only (no cache dir configured)")
	}
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config:    %s\n", source)
	}

	fmt.Println("\n== Remote =====================================================")
	if cfg.Remote.BaseURL != "" {
		fmt.Printf("Service:   %s\n", cfg.Remote.BaseURL)
	} else {
		fmt.Println("Service:   not configured (offline; cached data only)")
	}
	if cfg.Remote.Token != "" {
		fmt.Println("Auth:      token set")
	} else {
		fmt.Println("Auth:      MISSING (required for fetches)")
	}

	if cfg.Staging.Sweep.Enabled {
		fmt.Printf("Sweep:     enabled (cron=%s max_age=%s)\n", cfg.Staging.Sweep.Cron, cfg.Staging.Sweep.MaxAge.Duration())
	} else {
		fmt.Println("Sweep:     disabled")
	}

	if cfg.Debug.Addr != "" {
		fmt.Println("\n== Debug ======================================================")
		fmt.Printf("curl 'http://%s/debug/store'\n", cfg.Debug.Addr)
		fmt.Printf("curl 'http://%s/debug/feed?feed_type=main'\n", cfg.Debug.Addr)
		fmt.Printf("curl 'http://%s/metrics'\n", cfg.Debug.Addr)
	}

	fmt.Println("\n== Logs: ======================================================")
}
