package cache

import (
	"context"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

// Sweeper deletes expired semantic-tier points on a fixed interval.
// The exact tier expires through the key/value store's own TTL.
type Sweeper struct {
	log      *logger.Logger
	semantic *SemanticTier
	interval time.Duration
}

func NewSweeper(log *logger.Logger, semantic *SemanticTier, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		log:      log.With("component", "CacheSweeper"),
		semantic: semantic,
		interval: interval,
	}
}

// Start runs until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.semantic == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				if err := s.semantic.Sweep(sweepCtx); err != nil {
					s.log.Warn("semantic sweep failed", "error", err)
				}
				cancel()
			}
		}
	}()
}
