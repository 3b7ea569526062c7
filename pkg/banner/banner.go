package banner

import (
	"fmt"

	"chatrelay/pkg/config"
	"chatrelay/pkg/security"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
██║     ███████║███████║   ██║   ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
██║     ██╔══██║██╔══██║   ██║   ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██║███████╗███████╗██║  ██║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// Print prints the startup banner with runtime info.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:      %s\n", cfg.Addr())
	fmt.Printf("DB Path:     %s\n", cfg.Server.DBPath)
	if version != "" {
		fmt.Printf("Version:     %s\n", version)
	}
	enc := "disabled (legacy plaintext mode)"
	if security.Enabled() {
		enc = "enabled (AES-256-GCM at rest)"
	}
	fmt.Printf("Encryption:  %s\n", enc)
	storage := cfg.Storage.Provider
	if storage == "" {
		storage = "none"
	}
	fmt.Printf("Storage:     %s\n", storage)
	fmt.Printf("Sweep:       %v\n", cfg.Presence.Sweep.Enabled)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/chat/history        - Fetch thread history (marks read)")
	fmt.Println("POST /v1/chat/send           - Send a message")
	fmt.Println("GET  /v1/chat/stream         - Websocket event stream")
	fmt.Println("POST /v1/attachments/upload-url - Reserve an upload slot")
	fmt.Println("GET  /v1/admin/clients       - Admin inbox (thread summaries)")
	fmt.Println("GET  /metrics                - Prometheus metrics")
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set security.encryption.secret to encrypt message bodies at rest")
	fmt.Println("Point security.redis.addr at Redis for multi-instance rate limits")
}
