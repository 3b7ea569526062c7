package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"chatrelay/internal/presence"
	"chatrelay/pkg/blob"
	"chatrelay/pkg/bus"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/notify"
	"chatrelay/pkg/ratelimit"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/security"
	"chatrelay/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	svc     *relay.Service
	limiter *ratelimit.Limiter

	srv         *http.Server
	sweepCancel context.CancelFunc
}

// New validates configuration, opens the store and builds every component
// that does not need a running context. Call Run to start the sweep
// scheduler and the HTTP server.
func New(cfg *config.Config, version string) (*App, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	security.SetSecret(cfg.Security.Encryption.Secret)

	if cfg.Logging.AuditDir != "" {
		if err := logger.AttachAuditFileSink(cfg.Logging.AuditDir); err != nil {
			logger.Warn("audit_sink_unavailable", "dir", cfg.Logging.AuditDir, "error", err)
		}
	}

	if err := store.Open(cfg.Server.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Server.DBPath, err)
	}

	signer, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}

	svc := relay.New(bus.New(), signer, buildNotifier(cfg))
	svc.UploadTTL = cfg.Storage.UploadTTL.Or(10 * time.Minute)
	svc.ReadTTL = cfg.Storage.ReadTTL.Or(30 * time.Minute)
	svc.MaxUpload = cfg.Storage.MaxUpload.Int64()

	return &App{
		cfg:     cfg,
		version: version,
		svc:     svc,
		limiter: buildLimiter(cfg),
	}, nil
}

// Run starts the presence sweep and the HTTP server, and blocks until ctx
// is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancel, err := presence.Start(ctx, a.cfg.Presence)
	if err != nil {
		return err
	}
	a.sweepCancel = cancel

	a.printBanner()

	errCh := a.startHTTP()
	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (a *App) shutdown() error {
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_incomplete", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Warn("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
	return nil
}

func buildSigner(cfg *config.Config) (blob.Signer, error) {
	switch cfg.Storage.Provider {
	case "s3":
		return blob.NewS3Signer(cfg.Storage.S3)
	case "local":
		base := cfg.Storage.Local.BaseURL
		if base == "" {
			base = "http://" + cfg.Addr()
		}
		return blob.NewLocalSigner(cfg.Storage.Local.Dir, base, cfg.Storage.Local.Secret)
	case "":
		logger.Warn("blob_storage_not_configured")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.Storage.Provider)
	}
}

func buildNotifier(cfg *config.Config) *notify.Notifier {
	var sender notify.Sender
	if cfg.Notify.Enabled && cfg.Notify.SMTPAddr != "" {
		sender = &notify.SMTPSender{
			Addr:     cfg.Notify.SMTPAddr,
			From:     cfg.Notify.From,
			Username: cfg.Notify.Username,
			Password: cfg.Notify.Password,
		}
	}
	return notify.New(sender, cfg.Security.AdminEmail, cfg.Notify.Throttle.Duration())
}

func buildLimiter(cfg *config.Config) *ratelimit.Limiter {
	var st ratelimit.Store
	if cfg.Security.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Security.Redis.Addr,
			Password: cfg.Security.Redis.Password,
			DB:       cfg.Security.Redis.DB,
		})
		st = ratelimit.NewRedisStore(rdb)
		logger.Info("rate_limit_store", "backend", "redis", "addr", cfg.Security.Redis.Addr)
	} else {
		st = ratelimit.NewMemoryStore()
	}
	rl := cfg.Security.RateLimit
	overrides := map[ratelimit.Class]int{
		ratelimit.ClassAdmin:   rl.Admin,
		ratelimit.ClassAuth:    rl.Auth,
		ratelimit.ClassPublic:  rl.Public,
		ratelimit.ClassChat:    rl.Chat,
		ratelimit.ClassWebhook: rl.Webhook,
	}
	return ratelimit.New(st, rl.Window.Or(time.Minute), overrides)
}
