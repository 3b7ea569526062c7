package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config file at path (optional) and applies
// environment overrides. Secrets are expected via environment in
// production; the file keeps structural settings.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return &cfg, nil
}

// SplitAddr parses a host:port listen address.
func SplitAddr(addr string) (host string, port int, ok bool) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 || n > 65535 {
		return "", 0, false
	}
	return h, n, true
}

// applyEnv overlays CHATRELAY_* environment variables onto cfg. Env wins
// over the file for secrets and deploy-specific values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATRELAY_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CHATRELAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CHATRELAY_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CHATRELAY_JWT_SECRET"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("CHATRELAY_ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := os.Getenv("CHATRELAY_ENCRYPTION_SECRET"); v != "" {
		cfg.Security.Encryption.Secret = v
	}
	if v := os.Getenv("CHATRELAY_REDIS_ADDR"); v != "" {
		cfg.Security.Redis.Addr = v
	}
	if v := os.Getenv("CHATRELAY_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv("CHATRELAY_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.SecretAccessKey = v
	}
	if v := os.Getenv("CHATRELAY_SIGNING_SECRET"); v != "" {
		cfg.Storage.Local.Secret = v
	}
	if v := os.Getenv("CHATRELAY_SMTP_PASSWORD"); v != "" {
		cfg.Notify.Password = v
	}
	if v := os.Getenv("CHATRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
