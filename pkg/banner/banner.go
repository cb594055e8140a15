// Package banner prints the startup summary to stdout.
package banner

import (
	"fmt"

	"parley/pkg/config"
)

const banner = `
██████╗  █████╗ ██████╗ ██╗     ███████╗██╗   ██╗
██╔══██╗██╔══██╗██╔══██╗██║     ██╔════╝╚██╗ ██╔╝
██████╔╝███████║██████╔╝██║     █████╗   ╚████╔╝
██╔═══╝ ██╔══██║██╔══██╗██║     ██╔══╝    ╚██╔╝
██║     ██║  ██║██║  ██║███████╗███████╗   ██║
╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚══════╝   ╚═╝
`

// Print renders the effective configuration at boot.
func Print(eff config.Effective, version string) {
	cfg := eff.Config
	addr := eff.Addr
	if addr == "" && cfg != nil {
		addr = cfg.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && cfg != nil {
		dbPath = cfg.DB.Path
	}
	src := eff.Source
	if src == "" {
		src = "defaults"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)
	if cfg != nil {
		if cfg.Server.Beacon.Addr != "" {
			fmt.Printf("Beacon:   %s (%s)\n", cfg.Server.Beacon.Addr, cfg.Server.Beacon.Engine)
		} else {
			fmt.Println("Beacon:   disabled")
		}
		fmt.Printf("Mass mentions: %v\n", cfg.Features.MassMentionsEnabled)
		if cfg.Features.GenerateEmbeds && cfg.Embeds.ServiceURL != "" {
			fmt.Printf("Embed generation: %s\n", cfg.Embeds.ServiceURL)
		} else {
			fmt.Println("Embed generation: disabled")
		}
		if cfg.Retention.Enabled {
			fmt.Printf("Retention: enabled (cron=%s grace=%s)\n", cfg.Retention.Cron, cfg.Retention.AttachmentGrace.Duration())
		} else {
			fmt.Println("Retention: disabled")
		}
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST   /channels/{channel}/messages - send a message")
	fmt.Println("GET    /channels/{channel}/messages - channel history")
	fmt.Println("PATCH  /channels/{channel}/messages/{message} - edit")
	fmt.Println("PUT    /channels/{channel}/messages/{message}/reactions/{emoji} - react")
	fmt.Println("GET    /events/ws?channels=... - realtime stream")
	fmt.Println("POST   /beacon?channel=...&user=... - typing indicator (beacon listener)")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/channels/<id>/messages' -H 'X-Parley-Actor: <user>' -d '{\"content\":\"hello\"}'\n", suffixPort(addr))
	fmt.Printf("curl 'http://localhost%s/channels/<id>/messages?limit=10' -H 'X-Parley-Actor: <user>'\n", suffixPort(addr))

	fmt.Println("\n== Logs =======================================================")
}

// suffixPort reduces "0.0.0.0:8787" to ":8787" for copy-pasteable
// examples.
func suffixPort(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return addr
}
