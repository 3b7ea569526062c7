package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify"`
	Presence PresenceConfig `yaml:"presence"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", c.Server.Address, port)
}

// SecurityConfig holds auth, CORS, encryption and rate limit settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
		// AllowLocalhost additionally admits localhost origins on any
		// port, for development.
		AllowLocalhost bool `yaml:"allow_localhost"`
	} `yaml:"cors"`
	// JWTSecret verifies bearer credentials (HS256).
	JWTSecret string `yaml:"jwt_secret"`
	// AdminEmail is the single admin identity; every other authenticated
	// identity resolves to the client role.
	AdminEmail string `yaml:"admin_email"`
	Encryption struct {
		// Secret feeds the PBKDF2 derivation of the at-rest key. Empty
		// disables encryption (legacy plaintext mode).
		Secret string `yaml:"secret"`
	} `yaml:"encryption"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
}

// RateLimitConfig holds fixed-window ceilings per endpoint class. Zero
// values fall back to the built-in defaults.
type RateLimitConfig struct {
	Window  Duration `yaml:"window"`
	Admin   int      `yaml:"admin"`
	Auth    int      `yaml:"auth"`
	Public  int      `yaml:"public"`
	Chat    int      `yaml:"chat"`
	Webhook int      `yaml:"webhook"`
}

// RedisConfig selects the external rate-limit store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig holds blob storage and signed-URL settings.
type StorageConfig struct {
	// Provider is "s3" or "local".
	Provider string        `yaml:"provider"`
	S3       S3Config      `yaml:"s3"`
	Local    LocalConfig   `yaml:"local"`
	UploadTTL Duration     `yaml:"upload_url_ttl"`
	ReadTTL   Duration     `yaml:"read_url_ttl"`
	MaxUpload SizeBytes    `yaml:"max_upload_size"`
}

// S3Config holds S3 (or S3-compatible) presigning settings.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// LocalConfig holds the HMAC-signed local blob store settings.
type LocalConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
	Secret  string `yaml:"secret"`
}

// NotifyConfig holds best-effort transactional email settings.
type NotifyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SMTPAddr string   `yaml:"smtp_addr"`
	From     string   `yaml:"from"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	// Throttle bounds notifications per thread (default 2h).
	Throttle Duration `yaml:"throttle"`
}

// PresenceConfig holds heartbeat expectations and the staleness sweep.
type PresenceConfig struct {
	// HeartbeatInterval is the expected client-side cadence.
	HeartbeatInterval Duration    `yaml:"heartbeat_interval"`
	Sweep             SweepConfig `yaml:"sweep"`
}

// SweepConfig gates the server-side staleness sweep.
type SweepConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Cron       string   `yaml:"cron"`
	StaleAfter Duration `yaml:"stale_after"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	AuditDir string `yaml:"audit_dir"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "25MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "10m" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Or returns the duration, or fallback when unset.
func (d Duration) Or(fallback time.Duration) time.Duration {
	if time.Duration(d) == 0 {
		return fallback
	}
	return time.Duration(d)
}
