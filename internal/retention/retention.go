// Package retention runs the scheduled maintenance sweeps: attachment
// records flagged deleted past their grace window are purged for good,
// and the idempotency guard drops expired keys.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"parley/pkg/config"
	"parley/pkg/idempotency"
	"parley/pkg/logger"
	"parley/pkg/state"
	"parley/pkg/store"
)

// Sweeper executes retention passes against the store and guard.
type Sweeper struct {
	cfg   *config.Config
	st    *store.Store
	guard *idempotency.Guard
}

func NewSweeper(cfg *config.Config, st *store.Store, guard *idempotency.Guard) *Sweeper {
	return &Sweeper{cfg: cfg, st: st, guard: guard}
}

// Start launches the scheduler when retention is enabled and returns a
// cancel func that stops it.
func (s *Sweeper) Start(ctx context.Context) (context.CancelFunc, error) {
	ret := s.cfg.Retention
	if !ret.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	// lock and bookkeeping artifacts live under <data>/state/retention
	retentionPath := state.PathsVar.Retention
	if err := os.MkdirAll(retentionPath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", retentionPath, "error", err)
		return nil, err
	}

	cronExpr := ret.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", ret.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", ret.Cron)
	}

	logger.Info("retention_enabled",
		"cron", cronExpr,
		"grace", ret.AttachmentGrace.Duration().String(),
		"path", retentionPath,
	)
	ctx2, cancel := context.WithCancel(ctx)
	go s.runScheduler(ctx2, retentionPath, cronExpr)
	return cancel, nil
}

// runScheduler computes each next tick with gronx and sleeps until it
// arrives, so full cron syntax works without a polling loop.
func (s *Sweeper) runScheduler(ctx context.Context, retentionPath, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			// due now-ish; run and back off briefly to avoid a tight loop
			if err := s.RunOnce(ctx, retentionPath); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("retention_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			if err := s.RunOnce(ctx, retentionPath); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

type runRecord struct {
	Time              string `json:"time"`
	PurgedAttachments int    `json:"purged_attachments"`
	SweptKeys         int    `json:"swept_keys"`
	TookMS            int64  `json:"took_ms"`
}

// RunOnce performs a single sweep and records the outcome under the
// retention path for operators to inspect.
func (s *Sweeper) RunOnce(ctx context.Context, retentionPath string) error {
	start := time.Now().UTC()
	cutoff := start.Add(-s.cfg.Retention.AttachmentGrace.Duration())

	purged, err := s.st.PurgeDeletedAttachments(ctx, cutoff)
	if err != nil {
		logger.Error("attachment_purge_failed", "error", err)
		return err
	}
	swept := s.guard.Sweep()

	took := time.Since(start)
	logger.Info("retention_run_complete",
		"purged_attachments", purged,
		"swept_keys", swept,
		"took", took.String(),
	)
	writeRunRecord(retentionPath, runRecord{
		Time:              start.Format(time.RFC3339),
		PurgedAttachments: purged,
		SweptKeys:         swept,
		TookMS:            took.Milliseconds(),
	})
	return nil
}

// writeRunRecord lands last-run.json atomically; failures only log,
// the sweep itself already succeeded.
func writeRunRecord(dir string, rec runRecord) {
	tmp, err := os.CreateTemp(dir, ".run-*.tmp")
	if err != nil {
		logger.Warn("retention_record_failed", "error", err)
		return
	}
	name := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		logger.Warn("retention_record_failed", "error", err)
		return
	}
	_ = tmp.Sync()
	_ = tmp.Close()
	if err := os.Rename(name, filepath.Join(dir, "last-run.json")); err != nil {
		_ = os.Remove(name)
		logger.Warn("retention_record_failed", "error", err)
	}
}
