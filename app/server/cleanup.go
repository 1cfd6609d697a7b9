package server

import (
	"context"
	"time"

	log "github.com/go-pkgz/lgr"
)

// PreferenceCleaner removes preferences not updated for a while.
type PreferenceCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanerConfig holds configuration for the preference cleaner.
type CleanerConfig struct {
	Interval time.Duration // how often to look for stale preferences
	MaxAge   time.Duration // preferences not updated for longer are removed
}

// Cleaner periodically removes stale visitor preferences, so abandoned visitor ids don't pile up.
type Cleaner struct {
	store PreferenceCleaner
	cfg   CleanerConfig
}

// NewCleaner creates a new Cleaner instance.
func NewCleaner(st PreferenceCleaner, cfg CleanerConfig) *Cleaner {
	return &Cleaner{store: st, cfg: cfg}
}

// Run removes stale preferences every interval and blocks until context is canceled.
func (c *Cleaner) Run(ctx context.Context) {
	log.Printf("[INFO] starting preference cleaner, interval=%v, max age=%v", c.cfg.Interval, c.cfg.MaxAge)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] preference cleaner stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	n, err := c.store.Cleanup(ctx, c.cfg.MaxAge)
	if err != nil {
		log.Printf("[WARN] failed to clean up preferences: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[DEBUG] removed %d stale preferences", n)
	}
}
