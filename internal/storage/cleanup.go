package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupPartials periodically removes partial files left behind by
// interrupted transfers.
func (stg *Store) CleanupPartials(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := stg.log.With(slog.String("action", "cleanup_partials"), slog.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			stg.RemoveStalePartials(ctx, time.Now())
		case <-ctx.Done():
			log.Info("cleanup partials stopped")

			return
		}
	}
}

// RemoveStalePartials deletes partial files older than the configured TTL
// and returns how many were removed.
func (stg *Store) RemoveStalePartials(ctx context.Context, now time.Time) int {
	log := stg.log

	entries, err := os.ReadDir(stg.dir)
	if err != nil {
		log.ErrorContext(ctx, "read download dir", slog.Any("error", err))

		return 0
	}

	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, partialSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) < stg.partialTTL {
			continue
		}

		err = os.Remove(filepath.Join(stg.dir, name))
		if err != nil {
			log.ErrorContext(ctx, "failed to delete partial file", slog.String("filename", name), slog.Any("error", err))

			continue
		}

		removed++

		log.DebugContext(ctx, "deleted partial file", slog.String("filename", name))
	}

	if removed > 0 {
		log.InfoContext(ctx, "removed stale partial files", slog.Int("count", removed))
		stg.metrics.RecordCleanup(removed)
	}

	return removed
}
