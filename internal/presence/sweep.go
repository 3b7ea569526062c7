package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/store"
)

// Heartbeats arrive on a fixed client cadence; a client is considered
// stale after missing two and a half of them. The sweep flips stale
// online flags so crashed clients do not appear online forever.

// Start launches the presence sweep scheduler. Returns a cancel func.
func Start(ctx context.Context, cfg config.PresenceConfig) (context.CancelFunc, error) {
	if !cfg.Sweep.Enabled {
		logger.Info("presence_sweep_disabled")
		return func() {}, nil
	}

	cronExpr := cfg.Sweep.Cron
	if cronExpr == "" {
		cronExpr = "* * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("presence_sweep_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid presence sweep cron expression: %s", cronExpr)
	}

	stale := cfg.Sweep.StaleAfter.Or(75 * time.Second)

	logger.Info("presence_sweep_enabled", "cron", cronExpr, "stale_after", stale.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, stale)
	return cancel, nil
}

func runScheduler(ctx context.Context, cronExpr string, stale time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("presence_sweep_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("presence_sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
		case <-ctx.Done():
			logger.Info("presence_sweep_stopping")
			return
		}

		RunOnce(stale)
	}
}

// RunOnce sweeps stale presence immediately. Exposed for tests and admin
// triggers.
func RunOnce(stale time.Duration) {
	cutoff := time.Now().UTC().Add(-stale).UnixNano()
	swept, err := store.SweepStalePresence(cutoff)
	if err != nil {
		logger.Error("presence_sweep_failed", "error", err)
		return
	}
	if swept > 0 {
		logger.Info("presence_swept", "count", swept)
	}
}
