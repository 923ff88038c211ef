package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiredSessionStore deletes sessions whose absolute expiry has passed.
type ExpiredSessionStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunSessionPurge deletes expired sessions every interval until ctx is
// cancelled.  Expired rows are already rejected by every check, so a
// failed pass is only logged.
func RunSessionPurge(ctx context.Context, store ExpiredSessionStore, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purgeOnce(ctx, store, time.Now().UTC())
		case <-ctx.Done():
			return
		}
	}
}

func purgeOnce(ctx context.Context, store ExpiredSessionStore, now time.Time) {
	n, err := store.PurgeExpired(ctx, now)
	if err != nil {
		log.Warn().Err(err).Msg("session purge failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("expired sessions purged")
	}
}
