// Package housekeeping runs the periodic pruning jobs that bound the
// bridge's in-memory state: session records, processed authorization-code
// markers, and seen logout event IDs. All three maps are correctness-safe
// without pruning (stale entries decide conservatively); the jobs exist
// purely to bound memory on long-running processes.
package housekeeping

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/broker"
	"github.com/flowgate-io/flowgate/internal/session"
)

// Config controls the pruning cadence and retention horizons.
type Config struct {
	// Interval is how often the pruning pass runs. Defaults to 10 minutes.
	Interval time.Duration

	// SessionMaxAge is how long a session record is kept after its last
	// write. Defaults to 24 hours.
	SessionMaxAge time.Duration

	// ProcessedCodeMaxAge is how long a redeemed authorization code stays
	// marked. Codes expire at the provider within minutes; one hour is
	// already generous. Defaults to 1 hour.
	ProcessedCodeMaxAge time.Duration

	// EventMaxAge is how long logout event IDs are remembered for
	// idempotency. Defaults to 24 hours.
	EventMaxAge time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = 24 * time.Hour
	}
	if c.ProcessedCodeMaxAge <= 0 {
		c.ProcessedCodeMaxAge = time.Hour
	}
	if c.EventMaxAge <= 0 {
		c.EventMaxAge = 24 * time.Hour
	}
}

// Housekeeper owns the gocron scheduler running the pruning jobs.
// The zero value is not usable — create instances with New.
type Housekeeper struct {
	cron     gocron.Scheduler
	sessions *session.Store
	locks    *session.Locks
	logouts  *broker.LogoutReconciler
	cfg      Config
	logger   *zap.Logger
}

// New creates a Housekeeper. Call Start to begin pruning.
func New(sessions *session.Store, locks *session.Locks, logouts *broker.LogoutReconciler, cfg Config, logger *zap.Logger) (*Housekeeper, error) {
	cfg.applyDefaults()

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Housekeeper{
		cron:     s,
		sessions: sessions,
		locks:    locks,
		logouts:  logouts,
		cfg:      cfg,
		logger:   logger.Named("housekeeping"),
	}, nil
}

// Start schedules the pruning pass and starts the scheduler.
func (h *Housekeeper) Start() error {
	_, err := h.cron.NewJob(
		gocron.DurationJob(h.cfg.Interval),
		gocron.NewTask(h.prune),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("gocron.NewJob failed for pruning pass: %w", err)
	}

	h.cron.Start()
	h.logger.Info("housekeeping started", zap.Duration("interval", h.cfg.Interval))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running pass to
// complete.
func (h *Housekeeper) Stop() error {
	if err := h.cron.Shutdown(); err != nil {
		return fmt.Errorf("housekeeping shutdown error: %w", err)
	}
	h.logger.Info("housekeeping stopped")
	return nil
}

// prune is the periodic pass. Exposed indirectly through Start; tests call
// the underlying prune targets directly.
func (h *Housekeeper) prune() {
	sessions := h.sessions.PruneOlderThan(h.cfg.SessionMaxAge)
	codes := h.locks.PruneProcessed(h.cfg.ProcessedCodeMaxAge)
	events := h.logouts.PruneSeen(h.cfg.EventMaxAge)

	if sessions+codes+events > 0 {
		h.logger.Info("pruned stale state",
			zap.Int("session_records", sessions),
			zap.Int("processed_codes", codes),
			zap.Int("logout_events", events),
		)
	}
}
