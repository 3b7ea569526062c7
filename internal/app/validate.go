package app

import (
	"fmt"
	"os"

	"chatrelay/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the configuration
// before starting long-running services. Keep checks light and focused so
// callers can surface user-friendly errors.
func validateConfig(cfg *config.Config) error {
	if cfg.Server.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, CHATRELAY_DB_PATH env, or server.db_path in config")
	}
	if cfg.Security.JWTSecret == "" {
		return fmt.Errorf("jwt secret is empty: set CHATRELAY_JWT_SECRET env or security.jwt_secret in config")
	}
	if cfg.Security.AdminEmail == "" {
		return fmt.Errorf("admin email is empty: set CHATRELAY_ADMIN_EMAIL env or security.admin_email in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	switch cfg.Storage.Provider {
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required with the s3 provider")
		}
	case "local":
		if cfg.Storage.Local.Dir == "" {
			return fmt.Errorf("storage.local.dir is required with the local provider")
		}
		if cfg.Storage.Local.Secret == "" {
			return fmt.Errorf("storage.local.secret is required: set CHATRELAY_SIGNING_SECRET env or storage.local.secret in config")
		}
	}

	if cfg.Notify.Enabled && cfg.Notify.SMTPAddr == "" {
		return fmt.Errorf("notify.smtp_addr is required when notifications are enabled")
	}
	return nil
}
