package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IncrementRateLimit atomically reads-then-writes a key's fixed
// one-minute bucket: if count >= limit it rejects without incrementing,
// otherwise it increments and allows. The upsert is expressed as a single
// statement so the check-then-act is race-free under concurrent callers
// for the same key, without needing an explicit row lock.
func (s *Store) IncrementRateLimit(ctx context.Context, apiKey string, now time.Time, limit int) (allowed bool, windowStart time.Time, err error) {
	windowStart = now.UTC().Truncate(time.Minute)

	const q = `
		INSERT INTO rate_limits (api_key, window_start_minute, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (api_key, window_start_minute) DO UPDATE
			SET count = rate_limits.count + 1
			WHERE rate_limits.count < $3
		RETURNING count`

	var count int
	err = s.db.QueryRowContext(ctx, q, apiKey, windowStart, limit).Scan(&count)
	if err == sql.ErrNoRows {
		// The WHERE guard on the UPDATE branch failed (bucket already at
		// the limit), so no row was touched or returned — rejected.
		return false, windowStart, nil
	}
	if err != nil {
		return false, windowStart, storageErr(fmt.Errorf("rate limit: %w", err))
	}
	return count <= limit, windowStart, nil
}

// GCStaleRateWindows deletes buckets older than horizon, the periodic
// cleanup named in the data model ("stale buckets older than N hours are
// garbage-collected").
func (s *Store) GCStaleRateWindows(ctx context.Context, horizon time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-horizon)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE window_start_minute < $1`, cutoff)
	if err != nil {
		return 0, storageErr(fmt.Errorf("gc rate windows: %w", err))
	}
	n, _ := res.RowsAffected()
	return n, nil
}
